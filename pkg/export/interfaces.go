package export

import (
	"context"
	"io"

	"imgfetch/pkg/registry"
)

// Source dereferences local handles
type Source interface {
	Open(h registry.Handle) (io.Reader, registry.Info, error)
}

// ImageDownloader fetches a server-side image file by its Image.URL
type ImageDownloader interface {
	DownloadImage(ctx context.Context, imagePath string) ([]byte, error)
}
