// Package storage defines the blob store contract used to persist export
// archives. Implementations live in the local, gcs, and memory subpackages.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by GetObject when no object exists at the path.
var ErrNotFound = errors.New("object not found")

// BlobStore persists and retrieves opaque objects by path.
type BlobStore interface {
	// PutObject writes the object and returns a URI describing its location.
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
	// GetObject opens the object for reading. Callers close the reader.
	GetObject(ctx context.Context, path string) (io.ReadCloser, error)
}
