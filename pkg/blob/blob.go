// Package blob provides the byte-addressable storage sink behind the
// binary registry. Content is written once under a key derived from
// its fingerprint; the returned locator is opaque to callers and is
// the only handle needed to read the bytes back.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound means the locator no longer resolves to stored bytes.
var ErrNotFound = errors.New("blob not found")

// Store is a content-addressed blob store. Implementations must treat
// Put as idempotent for a given key: writing the same content under
// the same key twice is allowed and leaves one copy.
type Store interface {
	// Put persists the stream under the given content key and returns
	// an opaque locator for later retrieval.
	Put(ctx context.Context, key string, size int64, r io.Reader) (string, error)

	// Get opens the stored bytes for a locator returned by Put.
	Get(ctx context.Context, locator string) (io.ReadCloser, error)

	// Delete removes the stored bytes. Used only to roll back a write
	// whose registry record could not be created.
	Delete(ctx context.Context, locator string) error
}
