package batch

import (
	"context"

	"imgfetch/pkg/export"
	"imgfetch/pkg/models"
	"imgfetch/pkg/registry"
)

// Fetcher is the remote side of a batch job
type Fetcher interface {
	StartDownload(ctx context.Context, query string, count int) error
	FetchImage(ctx context.Context, category string) ([]byte, error)
}

// Store holds the payloads of acquired items
type Store interface {
	Register(data []byte) (registry.Handle, registry.Info)
	Release(h registry.Handle)
	ReleaseAll(hs []registry.Handle) int
}

// Exporter receives the final items of a completed job when auto export is on
type Exporter interface {
	ExportAll(ctx context.Context, items []models.AcquiredItem) export.Summary
}
