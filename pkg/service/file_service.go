// Package service orchestrates the upload pipeline and the download
// gatekeeper on top of the store and blob packages.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/zots0127/dedupstore/pkg/blob"
	"github.com/zots0127/dedupstore/pkg/hasher"
	"github.com/zots0127/dedupstore/pkg/store"
	"github.com/zots0127/dedupstore/pkg/types"
)

// FileService ties hashing, the binary registry, the file catalog and
// the blob store into the user-facing upload/download operations.
type FileService struct {
	store  *store.Store
	blobs  blob.Store
	logger *log.Logger
	audit  *log.Logger
}

// NewFileService creates a file service over an opened store and its
// blob backend.
func NewFileService(st *store.Store, blobs blob.Store) *FileService {
	return &FileService{
		store:  st,
		blobs:  blobs,
		logger: log.New(os.Stdout, "[FileService] ", log.LstdFlags),
		audit:  log.New(os.Stdout, "[Audit] ", log.LstdFlags),
	}
}

// Upload ingests one file: fingerprint the content, resolve or create
// its Binary, then append the logical File record. The second and
// later uploads of identical bytes are reported as deduplicated.
func (s *FileService) Upload(ctx context.Context, originalName, contentType string, content io.ReadSeeker) (*types.UploadResult, error) {
	if content == nil {
		return nil, types.ErrNoContent
	}

	fingerprint, size, err := hasher.Sum(content)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint content: %w", err)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	binary, created, err := s.store.ResolveOrCreate(ctx, fingerprint, size, content)
	if err != nil {
		return nil, err
	}

	file, err := s.store.RecordFile(ctx, binary, originalName, contentType, size)
	if err != nil {
		// Undo the create/increment so the failed upload leaves no
		// partial binary state.
		if relErr := s.store.ReleaseBinary(ctx, fingerprint); relErr != nil {
			s.logger.Printf("Warning: failed to release binary %s after record failure: %v", fingerprint, relErr)
		}
		return nil, err
	}

	s.logger.Printf("Stored %q as file %d (sha256=%s, deduplicated=%t)",
		originalName, file.ID, fingerprint, !created)

	return &types.UploadResult{
		ID:               file.ID,
		OriginalFilename: file.OriginalFilename,
		Size:             file.Size,
		SHA256:           fingerprint,
		Deduplicated:     !created,
	}, nil
}

// Download resolves a file id to its binary content. The returned
// metadata carries the File's own name and content type, not the
// Binary's, since records sharing a Binary may differ in both. Each
// access is written to the audit log with the opaque caller identity;
// authorization itself happens upstream.
func (s *FileService) Download(ctx context.Context, caller string, fileID int64) (io.ReadCloser, *types.File, error) {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}

	binary, err := s.store.GetBinary(ctx, file.BinaryID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Get(ctx, binary.Locator)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: binary %s", types.ErrContentMissing, binary.SHA256)
		}
		return nil, nil, fmt.Errorf("failed to load content: %w", err)
	}

	s.audit.Printf("entry=%s caller=%q accessed file_id=%d (%q)",
		uuid.NewString(), caller, fileID, file.OriginalFilename)

	return rc, file, nil
}

// List returns catalog records matching the filter.
func (s *FileService) List(ctx context.Context, filter *types.FileFilter) ([]*types.File, error) {
	return s.store.ListFiles(ctx, filter)
}

// Savings reports the aggregate dedup efficiency.
func (s *FileService) Savings(ctx context.Context) (*types.Savings, error) {
	return s.store.ComputeSavings(ctx)
}
