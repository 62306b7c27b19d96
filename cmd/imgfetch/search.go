package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"imgfetch/pkg/view"
)

var (
	// Search command flags
	searchPageSize int
	searchPages    int
	searchAll      bool
	searchOrder    string
	searchFilter   string
	searchFuzzy    bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search images already stored on the server",
	Long: `Search the server's local image store page by page.

The first page replaces any previous results; further pages are appended
until the requested page count is reached or the server runs out. Results
can be filtered and reordered locally without another request.`,
	Example: `  # First page of results
  imgfetch search sunset

  # Load three pages of 24 and sort by title
  imgfetch search sunset --pages 3 --page-size 24 --order title

  # Load everything and keep titles loosely matching "bch"
  imgfetch search sunset --all --filter bch --fuzzy`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchPageSize, "page-size", 0, "items per page (default from config)")
	searchCmd.Flags().IntVar(&searchPages, "pages", 1, "number of pages to load")
	searchCmd.Flags().BoolVar(&searchAll, "all", false, "load pages until the server runs out")
	searchCmd.Flags().StringVar(&searchOrder, "order", string(view.OrderRelevance), "order: relevance, title, newest, oldest")
	searchCmd.Flags().StringVar(&searchFilter, "filter", "", "only show images whose title or category matches")
	searchCmd.Flags().BoolVar(&searchFuzzy, "fuzzy", false, "match the filter fuzzily")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))

	order, ok := view.ParseOrder(searchOrder, view.ImageOrders)
	if !ok {
		return fmt.Errorf("unknown order %q", searchOrder)
	}

	flags := globalFlags(cmd)
	if searchPageSize > 0 {
		flags["page-size"] = searchPageSize
	}

	a, err := loadApp(flags)
	if err != nil {
		return err
	}

	sess, err := a.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	return a.run(cmd.Context(), func(ctx context.Context) error {
		if err := sess.Search.Search(ctx, query); err != nil {
			return err
		}

		for loaded := 1; searchAll || loaded < searchPages; loaded++ {
			if !sess.Search.Snapshot().HasMore || ctx.Err() != nil {
				break
			}
			if _, err := sess.Search.LoadNext(ctx); err != nil {
				return err
			}
		}

		snap := sess.Search.Snapshot()
		printImages(view.Images(snap.Items, view.ImageQuery{
			Text:  searchFilter,
			Order: order,
			Fuzzy: searchFuzzy,
		}))

		more := "no more pages"
		if snap.HasMore {
			more = fmt.Sprintf("next page %d", snap.Cursor)
		}
		printInfo("Loaded", fmt.Sprintf("%d images, %s", len(snap.Items), more))
		return nil
	})
}
