// Package blob stores drawing files and their extracted text by key.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = errors.New("blob not found")

// Store is satisfied by Local and by s3storage.Storage.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
