package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DiskStore stores blobs on the local filesystem, sharded two levels
// deep by fingerprint prefix to keep directory fan-out bounded.
type DiskStore struct {
	basePath string
}

// NewDiskStore creates a disk-backed blob store rooted at basePath.
func NewDiskStore(basePath string) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "tmp"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &DiskStore{basePath: basePath}, nil
}

// Put writes the stream to a temp file and renames it into its
// content-addressed location. The rename makes the write atomic: a
// reader never observes a partially written blob. If the target
// already exists the incoming copy is discarded, the bytes are
// identical by construction.
func (s *DiskStore) Put(ctx context.Context, key string, size int64, r io.Reader) (string, error) {
	locator := s.shardPath(key)
	targetPath := filepath.Join(s.basePath, locator)

	if _, err := os.Stat(targetPath); err == nil {
		return locator, nil
	}

	tmpPath := filepath.Join(s.basePath, "tmp", "upload-"+uuid.NewString())
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpPath)

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to flush content: %w", err)
	}
	if size >= 0 && written != size {
		return "", fmt.Errorf("content length mismatch: expected %d bytes, wrote %d", size, written)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create shard directory: %w", err)
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		return "", fmt.Errorf("failed to place content: %w", err)
	}

	return locator, nil
}

// Get opens the blob for reading.
func (s *DiskStore) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.basePath, locator))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	return f, nil
}

// Delete removes the blob. Missing blobs are not an error.
func (s *DiskStore) Delete(ctx context.Context, locator string) error {
	if err := os.Remove(filepath.Join(s.basePath, locator)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove content: %w", err)
	}
	return nil
}

func (s *DiskStore) shardPath(key string) string {
	return filepath.Join(key[:2], key[2:4], key)
}
