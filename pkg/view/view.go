// Package view projects an already loaded collection by search text,
// category and ordering key. Every function is pure: inputs are never
// mutated and the returned slice is always a fresh copy.
package view

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"imgfetch/pkg/models"
)

// Order is a sort key
type Order string

const (
	// OrderRelevance keeps server order
	OrderRelevance Order = "relevance"
	OrderTitle     Order = "title"
	OrderNewest    Order = "newest"
	OrderOldest    Order = "oldest"
	OrderName      Order = "name"
)

// ImageOrders lists the orders accepted by Images
var ImageOrders = []Order{OrderRelevance, OrderTitle, OrderNewest, OrderOldest}

// CategoryOrders lists the orders accepted by Categories
var CategoryOrders = []Order{OrderNewest, OrderOldest, OrderName}

// ImageQuery selects and orders images
type ImageQuery struct {
	Text       string
	Categories []string
	Order      Order
	Fuzzy      bool
}

// CategoryQuery selects and orders categories
type CategoryQuery struct {
	Text     string
	Selected []string
	Order    Order
}

// ParseOrder validates s against the allowed orders, case-insensitively
func ParseOrder(s string, allowed []Order) (Order, bool) {
	for _, o := range allowed {
		if strings.EqualFold(s, string(o)) {
			return o, true
		}
	}
	return "", false
}

// Images filters by text and category then sorts by q.Order. The text
// matches the title or the category; an unknown order keeps server order.
func Images(images []models.Image, q ImageQuery) []models.Image {
	selected := toSet(q.Categories)
	out := make([]models.Image, 0, len(images))
	for _, img := range images {
		if len(selected) > 0 && !selected[img.Category] {
			continue
		}
		if !matchText(q.Text, q.Fuzzy, img.Title, img.Category) {
			continue
		}
		out = append(out, img)
	}

	switch q.Order {
	case OrderTitle:
		c := newCollator()
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].Title, out[j].Title) < 0
		})
	case OrderOldest:
		c := newCollator(collate.Numeric)
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].ID, out[j].ID) < 0
		})
	case OrderNewest:
		c := newCollator(collate.Numeric)
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].ID, out[j].ID) > 0
		})
	}
	return out
}

// Categories filters by name text and selection then sorts by q.Order.
// Newest and oldest compare gallery URLs; the default is newest.
func Categories(categories []models.Category, q CategoryQuery) []models.Category {
	selected := toSet(q.Selected)
	out := make([]models.Category, 0, len(categories))
	for _, cat := range categories {
		if len(selected) > 0 && !selected[cat.Name] {
			continue
		}
		if !matchText(q.Text, false, cat.Name) {
			continue
		}
		out = append(out, cat)
	}

	c := newCollator(collate.Numeric)
	switch q.Order {
	case OrderName:
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].Name, out[j].Name) < 0
		})
	case OrderOldest:
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].GalleryURL, out[j].GalleryURL) < 0
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].GalleryURL, out[j].GalleryURL) > 0
		})
	}
	return out
}

// DistinctCategories returns the category names present in images, in
// first-seen order
func DistinctCategories(images []models.Image) []string {
	seen := make(map[string]bool)
	var names []string
	for _, img := range images {
		if img.Category == "" || seen[img.Category] {
			continue
		}
		seen[img.Category] = true
		names = append(names, img.Category)
	}
	return names
}

// Toggle adds name to selection or removes it when already present
func Toggle(selection []string, name string) []string {
	out := make([]string, 0, len(selection)+1)
	found := false
	for _, s := range selection {
		if s == name {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, name)
	}
	return out
}

func matchText(text string, useFuzzy bool, fields ...string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	needle := strings.ToLower(text)
	for _, f := range fields {
		if useFuzzy {
			if fuzzy.MatchFold(text, f) {
				return true
			}
			continue
		}
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func newCollator(opts ...collate.Option) *collate.Collator {
	return collate.New(language.English, append([]collate.Option{collate.IgnoreCase}, opts...)...)
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
