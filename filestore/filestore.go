// Package filestore provides byte-blob persistence keyed by path, with
// in-memory and local-disk implementations. It underlies session event and
// state persistence; it has no knowledge of the event/state schemas it
// stores.
package filestore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read and Delete when path does not exist.
var ErrNotFound = errors.New("filestore: not found")

// FileStore is a small, synchronous blob store. Implementations do not
// provide a locking contract: concurrent writes to the same path are
// undefined and callers must serialize them.
type FileStore interface {
	// Write stores data at path, replacing any prior content.
	Write(ctx context.Context, path string, data []byte) error
	// Read returns the content at path, or ErrNotFound if absent.
	Read(ctx context.Context, path string) ([]byte, error)
	// List returns every path beginning with prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes path, or ErrNotFound if absent.
	Delete(ctx context.Context, path string) error
}
