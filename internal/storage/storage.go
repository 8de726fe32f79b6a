package storage

import (
	"context"
	"io"
)

// ImageStore is the hosting surface product images need: upload a
// blob and get back a public URL, delete by that URL later. The
// MinIO backend implements it; tests substitute an in-memory fake.
type ImageStore interface {
	Upload(ctx context.Context, r io.Reader, size int64, contentType string) (url string, err error)
	Delete(ctx context.Context, url string) error
}
