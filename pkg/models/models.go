package models

import "imgfetch/pkg/registry"

// JobStatus is the lifecycle state of a batch acquisition job
type JobStatus string

const (
	StatusIdle      JobStatus = "idle"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCanceled  JobStatus = "canceled"
)

// Terminal reports whether no further fetches will be issued for the status
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// AcquiredItem is one fetched payload owned by the job that created it
type AcquiredItem struct {
	Handle      registry.Handle `json:"handle"`
	Query       string          `json:"query"`
	Sequence    int             `json:"sequence"`
	Size        int             `json:"size"`
	ContentType string          `json:"content_type"`
}

// DownloadRequest is the body of POST /api/download
type DownloadRequest struct {
	Query string `json:"query" validate:"required"`
	Count int    `json:"count" validate:"gt=0"`
}

// SearchRequest is the body of POST /api/search_local
type SearchRequest struct {
	Query string `json:"query" validate:"required"`
	Page  int    `json:"page" validate:"gte=1"`
	Limit int    `json:"limit" validate:"gt=0"`
}

// Image is a server-side image reference. Category is only set by the
// gallery endpoint.
type Image struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
}

// ImagesResponse is returned by search_local and gallery
type ImagesResponse struct {
	Images []Image `json:"images"`
}

// Category is one entry of GET /api/categories
type Category struct {
	Name           string `json:"name"`
	GalleryURL     string `json:"gallery_url"`
	RandomImageURL string `json:"random_image_url"`
}

// CategoriesResponse is returned by GET /api/categories
type CategoriesResponse struct {
	Categories []Category `json:"categories"`
}
