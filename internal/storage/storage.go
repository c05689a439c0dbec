package storage

import (
	"context"
	"errors"
	"io"
)

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("image storage is not configured")

// Image is an uploaded object and the URL it is served from.
type Image struct {
	Key string
	URL string
}

// ImageStore keeps blog images in remote object storage.
type ImageStore interface {
	Upload(ctx context.Context, body io.Reader, contentType, ext string) (*Image, error)
	Delete(ctx context.Context, key string) error
	// KeyForURL returns the object key of a URL handed out by Upload.
	KeyForURL(rawURL string) (string, bool)
}
