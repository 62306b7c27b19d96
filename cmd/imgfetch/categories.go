package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"imgfetch/pkg/view"
)

var (
	// Categories command flags
	categoriesFilter   string
	categoriesSelected []string
	categoriesOrder    string
)

// categoriesCmd represents the categories command
var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories known to the server",
	Long: `List every category on the server. By default the most recently
added categories come first. When categories are selected only those are
listed, marked with *.`,
	Example: `  # All categories, alphabetically
  imgfetch categories --order name

  # Categories matching "ca"
  imgfetch categories --filter ca`,
	Args: cobra.NoArgs,
	RunE: runCategories,
}

func init() {
	rootCmd.AddCommand(categoriesCmd)

	categoriesCmd.Flags().StringVar(&categoriesFilter, "filter", "", "only show categories whose name matches")
	categoriesCmd.Flags().StringSliceVar(&categoriesSelected, "select", nil, "only list these categories")
	categoriesCmd.Flags().StringVar(&categoriesOrder, "order", string(view.OrderNewest), "order: newest, oldest, name")
}

func runCategories(cmd *cobra.Command, args []string) error {
	order, ok := view.ParseOrder(categoriesOrder, view.CategoryOrders)
	if !ok {
		return fmt.Errorf("unknown order %q", categoriesOrder)
	}

	a, err := loadApp(globalFlags(cmd))
	if err != nil {
		return err
	}

	sess, err := a.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	return a.run(cmd.Context(), func(ctx context.Context) error {
		categories, err := sess.Categories(ctx)
		if err != nil {
			return err
		}

		selected := make(map[string]bool, len(categoriesSelected))
		for _, name := range categoriesSelected {
			selected[name] = true
		}

		printCategories(view.Categories(categories, view.CategoryQuery{
			Text:     categoriesFilter,
			Selected: categoriesSelected,
			Order:    order,
		}), selected)
		return nil
	})
}
