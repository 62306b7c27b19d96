package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"imgfetch/pkg/batch"
	"imgfetch/pkg/models"
	"imgfetch/pkg/notify"
	"imgfetch/pkg/tui"
)

var (
	// Download command flags
	downloadCount      int
	downloadCadence    time.Duration
	downloadAutoExport bool
	downloadExport     bool
	downloadOutput     string
	downloadTUI        bool
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download <query>",
	Short: "Fetch a batch of random images for a query",
	Long: `Ask the server to gather images for a query, then fetch one random
image per tick until the requested count has been collected.

Failed fetches are reported and retried on the next tick. Press Ctrl+C to
stop early; images collected so far are kept and can still be exported.`,
	Example: `  # Fetch ten cat pictures, one per second
  imgfetch download cats -n 10

  # Fetch faster and write every image to ./out when done
  imgfetch download "red cars" -n 5 --cadence 250ms --export -o ./out

  # Export automatically as soon as the batch completes
  imgfetch download dogs --auto-export

  # Follow progress in an interactive view
  imgfetch download cats -n 20 --tui`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().IntVarP(&downloadCount, "count", "n", 0, "number of images to fetch (default from config)")
	downloadCmd.Flags().DurationVar(&downloadCadence, "cadence", 0, "delay between fetches (default from config)")
	downloadCmd.Flags().BoolVar(&downloadAutoExport, "auto-export", false, "export every image as soon as the batch completes")
	downloadCmd.Flags().BoolVar(&downloadExport, "export", false, "export the collected images when the command ends")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output directory for exports")
	downloadCmd.Flags().BoolVar(&downloadTUI, "tui", false, "show an interactive progress view")
}

func runDownload(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))

	flags := globalFlags(cmd)
	if downloadOutput != "" {
		flags["output"] = downloadOutput
	}
	if downloadCadence > 0 {
		flags["cadence"] = downloadCadence
	}
	if cmd.Flags().Changed("auto-export") {
		flags["auto-export"] = downloadAutoExport
	}

	a, err := loadApp(flags)
	if err != nil {
		return err
	}

	count := downloadCount
	if count == 0 {
		count = a.cfg.Batch.DefaultCount
	}

	var ui *tui.TUI
	if downloadTUI {
		ui = tui.New(query, a.notifier)
		a.notifier = ui
	}

	sess, err := a.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	if ui == nil {
		printInfo("Query", query)
		printInfo("Target", fmt.Sprintf("%d images every %s", count, a.cfg.Batch.Cadence))
	}

	return a.run(cmd.Context(), func(ctx context.Context) error {
		done := make(chan batch.Snapshot, 1)
		sess.Batch.OnSnapshot(func(s batch.Snapshot) {
			if ui != nil {
				ui.Snapshot(s)
			} else if s.Status == models.StatusRunning {
				printProgress(s)
			}
			if s.Status.Terminal() {
				select {
				case done <- s:
				default:
				}
			}
		})

		closeUI := func() {}
		if ui != nil {
			ui.Start(sess.Batch.Cancel)
			closeUI = sync.OnceFunc(func() {
				ui.Stop()
				if _, err := ui.Wait(); err != nil {
					a.log.WithError(err).Warn("interactive view failed")
				}
			})
		}
		defer closeUI()

		if err := sess.Download(ctx, query, count); err != nil {
			return err
		}

		var final batch.Snapshot
		select {
		case final = <-done:
		case <-ctx.Done():
			sess.Batch.Cancel()
			final = sess.Batch.Snapshot()
		}
		sess.Batch.Wait()
		closeUI()
		if ui == nil {
			fmt.Println()
		}

		printInfo("Status", string(final.Status))
		printInfo("Fetched", fmt.Sprintf("%d of %d (%d failed attempts)", final.FetchedCount, final.TargetCount, final.Failures))

		if downloadExport && !a.cfg.Batch.AutoExport && len(final.Items) > 0 {
			summary := sess.Exporter.ExportAll(context.WithoutCancel(cmd.Context()), final.Items)
			for _, p := range summary.Paths {
				fmt.Println(notify.Dim("  " + p))
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d exports failed", summary.Failed, len(final.Items))
			}
		}
		return nil
	})
}

func printProgress(s batch.Snapshot) {
	width := 30
	filled := 0
	if s.TargetCount > 0 {
		filled = s.FetchedCount * width / s.TargetCount
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	fmt.Printf("\r%s %s %d/%d", notify.Cyan("Fetching"), bar, s.FetchedCount, s.TargetCount)
}
