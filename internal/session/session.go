// Package session wires one scoped set of collaborators: the API client,
// the resource registry, both acquisition controllers and the exporter.
// Closing the session tears down the controllers and releases every handle
// still registered.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"imgfetch/pkg/api"
	"imgfetch/pkg/batch"
	"imgfetch/pkg/config"
	"imgfetch/pkg/errors"
	"imgfetch/pkg/export"
	"imgfetch/pkg/logger"
	"imgfetch/pkg/metrics"
	"imgfetch/pkg/models"
	"imgfetch/pkg/notify"
	"imgfetch/pkg/pagination"
	"imgfetch/pkg/registry"
	"imgfetch/pkg/storage"
)

// Options carries the collaborators that outlive a session
type Options struct {
	Notifier  notify.Notifier
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	NewTicker batch.TickerFunc
}

// Session is the scope owning every local handle created while it is open
type Session struct {
	ID       string
	Client   *api.Client
	Registry *registry.Registry
	Batch    *batch.Controller
	Search   *pagination.Controller
	Exporter *export.Manager
	Notifier notify.Notifier

	cfg       *config.Config
	logger    logger.Logger
	closeOnce sync.Once
}

// New opens a session configured by cfg
func New(cfg *config.Config, opts Options) (*Session, error) {
	id := uuid.NewString()
	log := logger.OrDefault(opts.Logger).WithField("session", id)
	notifier := notify.OrNop(opts.Notifier)

	sink, err := storage.NewManager(cfg.Output.BaseDirectory, cfg.Output.OverwriteExisting)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare output directory: %w", err)
	}

	client := api.NewClient(cfg.Server.BaseURL, cfg.Server.Timeout, log)
	client.SetMetrics(opts.Metrics)

	reg := registry.New(log, opts.Metrics)

	exporter := export.NewManager(reg, sink, notifier, log)
	exporter.SetDownloader(client)
	exporter.SetMetrics(opts.Metrics)

	s := &Session{
		ID:       id,
		Client:   client,
		Registry: reg,
		Exporter: exporter,
		Notifier: notifier,
		cfg:      cfg,
		logger:   log,
	}

	s.Batch = batch.New(client, reg, batch.Options{
		Cadence:    cfg.Batch.Cadence,
		AutoExport: cfg.Batch.AutoExport,
		Exporter:   exporter,
		NewTicker:  opts.NewTicker,
		Notifier:   notifier,
		Logger:     log,
		Metrics:    opts.Metrics,
	})
	s.Search = pagination.New(client, pagination.Options{
		PageSize: cfg.Search.PageSize,
		Notifier: notifier,
		Logger:   log,
		Metrics:  opts.Metrics,
	})

	logger.LogComponentStart(log, "session", map[string]interface{}{
		"base_url":   client.BaseURL(),
		"output_dir": sink.GetOutputDir(),
	})
	return s, nil
}

// Download starts a batch job after checking the configured count ceiling
func (s *Session) Download(ctx context.Context, query string, count int) error {
	if limit := s.cfg.Batch.MaxCount; limit > 0 && count > limit {
		err := &errors.ValidationError{Field: "count", Reason: fmt.Sprintf("must be at most %d", limit)}
		s.Notifier.Notify(notify.Error("Error", "You can download at most %d images at once.", limit))
		return err
	}
	return s.Batch.Start(ctx, query, count)
}

// Gallery lists the images of the given categories
func (s *Session) Gallery(ctx context.Context, categories []string) ([]models.Image, error) {
	images, err := s.Client.Gallery(ctx, categories)
	if err != nil {
		s.logger.WithError(err).Warn("failed to fetch gallery")
		s.Notifier.Notify(notify.Error("Error", "Failed to fetch images. Please try again."))
		return nil, &errors.StartupNetworkError{Op: "gallery", Err: err}
	}
	return images, nil
}

// Categories lists every category on the server
func (s *Session) Categories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.Client.Categories(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("failed to fetch categories")
		s.Notifier.Notify(notify.Error("Error", "Failed to fetch categories. Please try again."))
		return nil, &errors.StartupNetworkError{Op: "categories", Err: err}
	}
	return categories, nil
}

// Close stops both controllers and releases every live handle. It is safe
// to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		live := s.Registry.Len()
		s.Batch.Close()
		s.Search.Close()
		s.Registry.Close()
		logger.LogComponentStop(s.logger, "session", fmt.Sprintf("closed with %d live handles", live))
	})
	return nil
}
