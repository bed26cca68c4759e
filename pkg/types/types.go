package types

import (
	"errors"
	"time"
)

// Sentinel errors shared across the store. Callers match them with
// errors.Is; the HTTP layer maps them onto status codes.
var (
	// ErrNoContent means the caller supplied no content stream.
	ErrNoContent = errors.New("no content provided")

	// ErrNotFound means no File record exists for the given id.
	ErrNotFound = errors.New("file not found")

	// ErrContentMissing means the File record exists but its binary
	// content can no longer be loaded from the blob store.
	ErrContentMissing = errors.New("file content missing")
)

// Binary is a unique stored byte sequence, identified by the SHA-256
// of its content. Many File records may reference one Binary.
type Binary struct {
	ID        int64     `json:"id"`
	SHA256    string    `json:"sha256"`
	Size      int64     `json:"size"`
	Locator   string    `json:"locator"`
	RefCount  int64     `json:"ref_count"`
	CreatedAt time.Time `json:"created_at"`
}

// File is a logical upload record pointing at one Binary. Size is
// denormalized from the Binary so listings and savings aggregation
// never need a join.
type File struct {
	ID               int64     `json:"id"`
	BinaryID         int64     `json:"binary_id"`
	SHA256           string    `json:"sha256"`
	OriginalFilename string    `json:"original_filename"`
	ContentType      string    `json:"content_type"`
	Size             int64     `json:"size"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// FileFilter represents filtering and ordering criteria for file listings
type FileFilter struct {
	Name           string     `json:"name"`
	ContentTypes   []string   `json:"content_types"`
	MinSize        *int64     `json:"min_size"`
	MaxSize        *int64     `json:"max_size"`
	UploadedAfter  *time.Time `json:"uploaded_after"`
	UploadedBefore *time.Time `json:"uploaded_before"`
	OrderBy        string     `json:"order_by"`  // "uploaded_at", "size", "original_filename"
	OrderDir       string     `json:"order_dir"` // "ASC" or "DESC"
	Limit          int        `json:"limit"`
	Offset         int        `json:"offset"`
}

// UploadResult is returned to the caller after a successful upload
type UploadResult struct {
	ID               int64  `json:"id"`
	OriginalFilename string `json:"original_filename"`
	Size             int64  `json:"size"`
	SHA256           string `json:"sha256"`
	Deduplicated     bool   `json:"deduplicated"`
}

// Savings reports aggregate deduplication efficiency
type Savings struct {
	BytesSaved        int64   `json:"bytes_saved"`
	TotalUniqueBytes  int64   `json:"total_unique_bytes"`
	TotalLogicalBytes int64   `json:"total_logical_bytes"`
	PercentSaved      float64 `json:"percent_saved"`
}

// APIResponse represents a standard API error response
type APIResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
