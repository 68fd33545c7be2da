package network

import (
	"context"
	"io"
)

// BlobStore reads and writes files by id. The local file store and
// the durable store that holds preserved copies both implement it.
//
// Get returns an error wrapping constants.ErrFileNotFound when the
// store has no file with the specified id. Callers must close the
// reader.
type BlobStore interface {
	Get(ctx context.Context, id string) (io.ReadCloser, error)
	Put(ctx context.Context, id string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	// Location returns a human-readable description of where the
	// file lives, for logs and alerts.
	Location(id string) string
}
