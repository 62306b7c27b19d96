package view

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"imgfetch/pkg/models"
)

func images() []models.Image {
	return []models.Image{
		{ID: "2", Title: "Tabby", Category: "cats"},
		{ID: "10", Title: "beagle", Category: "dogs"},
		{ID: "1", Title: "Siamese", Category: "cats"},
		{ID: "3", Title: "Parrot", Category: "birds"},
	}
}

func ids(in []models.Image) []string {
	out := make([]string, len(in))
	for i, img := range in {
		out[i] = img.ID
	}
	return out
}

func names(in []models.Category) []string {
	out := make([]string, len(in))
	for i, c := range in {
		out[i] = c.Name
	}
	return out
}

func TestImagesOrder(t *testing.T) {
	tests := []struct {
		order Order
		want  []string
	}{
		{OrderRelevance, []string{"2", "10", "1", "3"}},
		{"", []string{"2", "10", "1", "3"}},
		{OrderTitle, []string{"10", "3", "1", "2"}},
		{OrderOldest, []string{"1", "2", "3", "10"}},
		{OrderNewest, []string{"10", "3", "2", "1"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Images(images(), ImageQuery{Order: tt.order})))
		})
	}
}

func TestImagesFilter(t *testing.T) {
	in := images()

	assert.Equal(t, []string{"2", "1"}, ids(Images(in, ImageQuery{Text: "CAT"})))
	assert.Equal(t, []string{"10"}, ids(Images(in, ImageQuery{Text: "eag"})))
	assert.Equal(t, []string{"3"}, ids(Images(in, ImageQuery{Categories: []string{"birds"}})))
	assert.Equal(t, []string{"1"}, ids(Images(in, ImageQuery{Text: "siam", Categories: []string{"cats", "dogs"}})))
	assert.Empty(t, Images(in, ImageQuery{Text: "zebra"}))
}

func TestImagesFuzzy(t *testing.T) {
	in := images()

	assert.Empty(t, Images(in, ImageQuery{Text: "tby"}))
	assert.Equal(t, []string{"2"}, ids(Images(in, ImageQuery{Text: "tby", Fuzzy: true})))
}

func TestImagesDoesNotMutateInput(t *testing.T) {
	in := images()
	before := ids(in)

	out := Images(in, ImageQuery{Order: OrderNewest})
	out[0].Title = "changed"

	assert.Equal(t, before, ids(in))
	assert.Equal(t, "Tabby", in[0].Title)
}

func TestImagesStableOrder(t *testing.T) {
	in := []models.Image{
		{ID: "a", Title: "same"},
		{ID: "b", Title: "Same"},
		{ID: "c", Title: "same"},
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids(Images(in, ImageQuery{Order: OrderTitle})))
}

func TestCategories(t *testing.T) {
	cats := []models.Category{
		{Name: "dogs", GalleryURL: "/gallery/2"},
		{Name: "cats", GalleryURL: "/gallery/1"},
		{Name: "birds", GalleryURL: "/gallery/3"},
	}

	assert.Equal(t, []string{"birds", "dogs", "cats"}, names(Categories(cats, CategoryQuery{})))
	assert.Equal(t, []string{"birds", "dogs", "cats"}, names(Categories(cats, CategoryQuery{Order: OrderNewest})))
	assert.Equal(t, []string{"cats", "dogs", "birds"}, names(Categories(cats, CategoryQuery{Order: OrderOldest})))
	assert.Equal(t, []string{"birds", "cats", "dogs"}, names(Categories(cats, CategoryQuery{Order: OrderName})))
	assert.Equal(t, []string{"dogs"}, names(Categories(cats, CategoryQuery{Text: "OG"})))
	assert.Equal(t, []string{"birds", "cats"}, names(Categories(cats, CategoryQuery{Selected: []string{"cats", "birds"}, Order: OrderName})))
	assert.Equal(t, "dogs", cats[0].Name)
}

func TestParseOrder(t *testing.T) {
	o, ok := ParseOrder("Title", ImageOrders)
	assert.True(t, ok)
	assert.Equal(t, OrderTitle, o)

	_, ok = ParseOrder("name", ImageOrders)
	assert.False(t, ok)

	o, ok = ParseOrder("name", CategoryOrders)
	assert.True(t, ok)
	assert.Equal(t, OrderName, o)
}

func TestDistinctCategories(t *testing.T) {
	assert.Equal(t, []string{"cats", "dogs", "birds"}, DistinctCategories(images()))
	assert.Nil(t, DistinctCategories([]models.Image{{ID: "1"}}))
}

func TestToggle(t *testing.T) {
	sel := Toggle(nil, "cats")
	assert.Equal(t, []string{"cats"}, sel)

	sel = Toggle(sel, "dogs")
	assert.Equal(t, []string{"cats", "dogs"}, sel)

	assert.Equal(t, []string{"dogs"}, Toggle(sel, "cats"))
	assert.Equal(t, []string{"cats", "dogs"}, sel)
}
