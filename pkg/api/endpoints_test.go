package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, NormalizeBaseURL(""))
	assert.Equal(t, DefaultBaseURL, NormalizeBaseURL("   "))
	assert.Equal(t, "http://images.test:8080", NormalizeBaseURL("http://images.test:8080//"))
}

func TestFetchImageURL(t *testing.T) {
	assert.Equal(t, "http://h/api/fetch_image?category=red+panda", FetchImageURL("http://h", "red panda"))
}

func TestGalleryURL(t *testing.T) {
	assert.Equal(t, "http://h/api/gallery?category=cats%2Cdogs", GalleryURL("http://h", []string{"cats", "dogs"}))
}

func TestImageFileURL(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/cats/1.jpg", "http://h/images/cats/1.jpg"},
		{"cats/1.jpg", "http://h/images/cats/1.jpg"},
		{"https://cdn.test/1.jpg", "https://cdn.test/1.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ImageFileURL("http://h", tt.path))
		})
	}
}
