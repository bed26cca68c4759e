package store

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/zots0127/dedupstore/pkg/blob"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	blobs, err := blob.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create blob store: %v", err)
	}

	s, err := Open(filepath.Join(t.TempDir(), "store.db"), blobs)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

// countingBlobStore counts Put calls so tests can assert content is
// written at most once per fingerprint.
type countingBlobStore struct {
	blob.Store
	mu   sync.Mutex
	puts int
}

func (c *countingBlobStore) Put(ctx context.Context, key string, size int64, r io.Reader) (string, error) {
	c.mu.Lock()
	c.puts++
	c.mu.Unlock()
	return c.Store.Put(ctx, key, size, r)
}

func (c *countingBlobStore) putCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}
