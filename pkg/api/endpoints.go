package api

import (
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is used when no base URL is configured
	DefaultBaseURL = "http://localhost:5000"

	// DownloadEndpoint acknowledges the start of a batch job
	DownloadEndpoint = "/api/download"

	// FetchImageEndpoint returns one binary image payload per call
	FetchImageEndpoint = "/api/fetch_image"

	// SearchLocalEndpoint returns one page of search results
	SearchLocalEndpoint = "/api/search_local"

	// GalleryEndpoint lists the images of one or more categories
	GalleryEndpoint = "/api/gallery"

	// CategoriesEndpoint lists every category
	CategoriesEndpoint = "/api/categories"

	// ImagesPrefix is where image files referenced by Image.URL are served
	ImagesPrefix = "/images"
)

// NormalizeBaseURL trims trailing slashes and falls back to DefaultBaseURL
func NormalizeBaseURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return DefaultBaseURL
	}
	return base
}

// FetchImageURL builds the single-item fetch URL for a query
func FetchImageURL(base, category string) string {
	params := url.Values{}
	params.Set("category", category)
	return base + FetchImageEndpoint + "?" + params.Encode()
}

// GalleryURL builds the gallery URL for the given categories. Names are
// comma-joined into one parameter.
func GalleryURL(base string, categories []string) string {
	params := url.Values{}
	params.Set("category", strings.Join(categories, ","))
	return base + GalleryEndpoint + "?" + params.Encode()
}

// ImageFileURL resolves an Image.URL path against the server's image root
func ImageFileURL(base, imagePath string) string {
	if strings.HasPrefix(imagePath, "http://") || strings.HasPrefix(imagePath, "https://") {
		return imagePath
	}
	if !strings.HasPrefix(imagePath, "/") {
		imagePath = "/" + imagePath
	}
	return base + ImagesPrefix + imagePath
}
