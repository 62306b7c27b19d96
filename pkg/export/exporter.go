// Package export saves acquired items to the local output directory.
package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"imgfetch/pkg/errors"
	"imgfetch/pkg/logger"
	"imgfetch/pkg/metrics"
	"imgfetch/pkg/models"
	"imgfetch/pkg/notify"
	"imgfetch/pkg/storage"
)

// DefaultExtension is used when the payload type has no known extension
const DefaultExtension = ".jpg"

// Summary is the outcome of an ExportAll run
type Summary struct {
	Saved  int
	Failed int
	Paths  []string
	Errors []error
}

// Manager exports items one at a time into a storage.Manager
type Manager struct {
	source   Source
	images   ImageDownloader
	sink     *storage.Manager
	notifier notify.Notifier
	logger   logger.Logger
	metrics  *metrics.Metrics
}

// NewManager creates an exporter reading from source and writing to sink
func NewManager(source Source, sink *storage.Manager, notifier notify.Notifier, log logger.Logger) *Manager {
	return &Manager{
		source:   source,
		sink:     sink,
		notifier: notify.OrNop(notifier),
		logger:   logger.OrDefault(log).WithComponent("export"),
	}
}

// SetDownloader enables ExportImage
func (m *Manager) SetDownloader(d ImageDownloader) {
	m.images = d
}

// SetMetrics enables export counters
func (m *Manager) SetMetrics(mt *metrics.Metrics) {
	m.metrics = mt
}

// FileName returns the export name of an item: {query}-{sequence+1}{ext}
func FileName(item models.AcquiredItem, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	return fmt.Sprintf("%s-%d%s", item.Query, item.Sequence+1, ext)
}

// ExportAll saves every item in order. Failures are independent; the run
// never stops early except on context cancellation, where the remaining
// items are counted as failed.
func (m *Manager) ExportAll(ctx context.Context, items []models.AcquiredItem) Summary {
	var summary Summary

	if len(items) == 0 {
		m.notifier.Notify(notify.Info("Export", "No images to export."))
		return summary
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Errorf("item %d: %w", item.Sequence+1, err))
			continue
		}

		path, err := m.export(item)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, err)
			continue
		}
		summary.Saved++
		summary.Paths = append(summary.Paths, path)
	}

	m.logger.InfoWithFields("export finished", map[string]interface{}{
		"saved":  summary.Saved,
		"failed": summary.Failed,
		"dir":    m.sink.GetOutputDir(),
	})

	if summary.Failed == 0 {
		m.notifier.Notify(notify.Success("Success", "Exported %d images to %s.", summary.Saved, m.sink.GetOutputDir()))
	} else {
		m.notifier.Notify(notify.Error("Error", "Exported %d of %d images, %d failed.", summary.Saved, len(items), summary.Failed))
	}
	return summary
}

// ExportOne saves a single item and returns the written path
func (m *Manager) ExportOne(ctx context.Context, item models.AcquiredItem) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := m.export(item)
	if err != nil {
		m.notifier.Notify(notify.Error("Error", "Failed to export image %d: %v", item.Sequence+1, err))
		return "", err
	}
	m.notifier.Notify(notify.Success("Success", "Saved %s.", path))
	return path, nil
}

func (m *Manager) export(item models.AcquiredItem) (string, error) {
	r, info, err := m.source.Open(item.Handle)
	if err != nil {
		m.metrics.IncExport(false)
		return "", fmt.Errorf("item %d: %w", item.Sequence+1, err)
	}

	path, err := m.sink.Save(r, FileName(item, info.Extension))
	if err != nil {
		m.metrics.IncExport(false)
		m.logger.WithError(err).WarnWithFields("failed to export item", map[string]interface{}{
			"query":    item.Query,
			"sequence": item.Sequence,
		})
		return "", fmt.Errorf("item %d: %w", item.Sequence+1, err)
	}

	m.metrics.IncExport(true)
	m.logger.DebugWithFields("item exported", map[string]interface{}{
		"path": path,
		"size": info.Size,
	})
	return path, nil
}

// ExportImage downloads a server-side image and saves it as {title}{ext}
func (m *Manager) ExportImage(ctx context.Context, image models.Image) (string, error) {
	if m.images == nil {
		return "", fmt.Errorf("export: no image downloader configured")
	}

	data, err := m.images.DownloadImage(ctx, image.URL)
	if err != nil {
		m.metrics.IncExport(false)
		itemErr := &errors.ItemNetworkError{Op: "download image", Err: err}
		m.notifier.Notify(notify.Error("Error", "Failed to download %s.", displayName(image)))
		m.logger.WithError(err).WarnWithFields("failed to download image", map[string]interface{}{
			"id":  image.ID,
			"url": image.URL,
		})
		return "", itemErr
	}

	ext := mimetype.Detect(data).Extension()
	if ext == "" {
		ext = DefaultExtension
	}

	path, err := m.sink.Save(bytes.NewReader(data), displayName(image)+ext)
	if err != nil {
		m.metrics.IncExport(false)
		m.notifier.Notify(notify.Error("Error", "Failed to save %s: %v", displayName(image), err))
		return "", err
	}

	m.metrics.IncExport(true)
	m.notifier.Notify(notify.Success("Success", "Saved %s.", path))
	return path, nil
}

func displayName(image models.Image) string {
	if image.Title != "" {
		return image.Title
	}
	return image.ID
}
