// Package fetcher downloads the BLS release page and extracts its tables.
package fetcher

import (
	"context"
	"io"
)

// Document is a downloaded response body and the media type the server
// declared for it.
type Document struct {
	io.ReadCloser
	ContentType string
}

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (*Document, error)
}
