package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"imgfetch/pkg/view"
)

var (
	// Gallery command flags
	galleryOrder    string
	galleryFilter   string
	galleryFuzzy    bool
	galleryOnly     []string
	galleryDownload bool
	galleryOutput   string
)

// galleryCmd represents the gallery command
var galleryCmd = &cobra.Command{
	Use:   "gallery <category>...",
	Short: "Browse the images of one or more categories",
	Long: `List every image of the given categories. The list can be narrowed
to a subset of the categories, filtered by text and reordered locally.
With --download each listed image is saved to the output directory.`,
	Example: `  # Everything in two categories, newest first
  imgfetch gallery cats dogs --order newest

  # Only the dogs, titles containing "pup", saved to ./pups
  imgfetch gallery cats dogs --only dogs --filter pup --download -o ./pups`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGallery,
}

func init() {
	rootCmd.AddCommand(galleryCmd)

	galleryCmd.Flags().StringVar(&galleryOrder, "order", string(view.OrderRelevance), "order: relevance, title, newest, oldest")
	galleryCmd.Flags().StringVar(&galleryFilter, "filter", "", "only show images whose title or category matches")
	galleryCmd.Flags().BoolVar(&galleryFuzzy, "fuzzy", false, "match the filter fuzzily")
	galleryCmd.Flags().StringSliceVar(&galleryOnly, "only", nil, "restrict to these categories")
	galleryCmd.Flags().BoolVar(&galleryDownload, "download", false, "save the listed images")
	galleryCmd.Flags().StringVarP(&galleryOutput, "output", "o", "", "output directory for downloads")
}

func runGallery(cmd *cobra.Command, args []string) error {
	order, ok := view.ParseOrder(galleryOrder, view.ImageOrders)
	if !ok {
		return fmt.Errorf("unknown order %q", galleryOrder)
	}

	flags := globalFlags(cmd)
	if galleryOutput != "" {
		flags["output"] = galleryOutput
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
		images, err := sess.Gallery(ctx, args)
		if err != nil {
			return err
		}

		shown := view.Images(images, view.ImageQuery{
			Text:       galleryFilter,
			Categories: galleryOnly,
			Order:      order,
			Fuzzy:      galleryFuzzy,
		})
		printImages(shown)
		printInfo("Categories", fmt.Sprintf("%v", view.DistinctCategories(images)))
		printInfo("Showing", fmt.Sprintf("%d of %d images", len(shown), len(images)))

		if !galleryDownload {
			return nil
		}

		failed := 0
		for i, img := range shown {
			if ctx.Err() != nil {
				failed += len(shown) - i
				break
			}
			if _, err := sess.Exporter.ExportImage(ctx, img); err != nil {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("failed to download %d images", failed)
		}
		return nil
	})
}
