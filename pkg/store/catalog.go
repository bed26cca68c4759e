package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zots0127/dedupstore/pkg/types"
)

// Columns the file listing may be ordered by. Anything else falls back
// to the default ordering.
var orderColumns = map[string]string{
	"uploaded_at":       "uploaded_at",
	"size":              "size",
	"original_filename": "original_filename",
}

// RecordFile appends a logical file record pointing at an already
// persisted Binary and returns it with its fresh id. Reference counts
// are not touched here; that transition belongs to ResolveOrCreate.
func (s *Store) RecordFile(ctx context.Context, binary *types.Binary, originalName, contentType string, size int64) (*types.File, error) {
	uploadedAt := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO files (binary_id, original_filename, content_type, size, uploaded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		binary.ID, originalName, contentType, size, uploadedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record file: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read file id: %w", err)
	}

	return &types.File{
		ID:               id,
		BinaryID:         binary.ID,
		SHA256:           binary.SHA256,
		OriginalFilename: originalName,
		ContentType:      contentType,
		Size:             size,
		UploadedAt:       uploadedAt,
	}, nil
}

// GetFile returns the file record for the given id.
func (s *Store) GetFile(ctx context.Context, id int64) (*types.File, error) {
	var f types.File
	err := s.db.QueryRowContext(ctx,
		`SELECT f.id, f.binary_id, b.sha256, f.original_filename, f.content_type, f.size, f.uploaded_at
		 FROM files f JOIN binaries b ON b.id = f.binary_id
		 WHERE f.id = ?`, id,
	).Scan(&f.ID, &f.BinaryID, &f.SHA256, &f.OriginalFilename, &f.ContentType, &f.Size, &f.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return &f, nil
}

// ListFiles returns file records matching the filter, newest first
// unless the filter orders otherwise.
func (s *Store) ListFiles(ctx context.Context, filter *types.FileFilter) ([]*types.File, error) {
	if filter == nil {
		filter = &types.FileFilter{}
	}

	query := `SELECT f.id, f.binary_id, b.sha256, f.original_filename, f.content_type, f.size, f.uploaded_at
		FROM files f JOIN binaries b ON b.id = f.binary_id WHERE 1=1`
	args := []interface{}{}

	if filter.Name != "" {
		query += " AND f.original_filename LIKE ?"
		args = append(args, "%"+filter.Name+"%")
	}

	if len(filter.ContentTypes) == 1 {
		query += " AND f.content_type = ?"
		args = append(args, filter.ContentTypes[0])
	} else if len(filter.ContentTypes) > 1 {
		query += " AND f.content_type IN (?" + repeatPlaceholder(len(filter.ContentTypes)-1) + ")"
		for _, ct := range filter.ContentTypes {
			args = append(args, ct)
		}
	}

	if filter.MinSize != nil {
		query += " AND f.size >= ?"
		args = append(args, *filter.MinSize)
	}

	if filter.MaxSize != nil {
		query += " AND f.size <= ?"
		args = append(args, *filter.MaxSize)
	}

	if filter.UploadedAfter != nil {
		query += " AND f.uploaded_at >= ?"
		args = append(args, filter.UploadedAfter.UTC())
	}

	if filter.UploadedBefore != nil {
		query += " AND f.uploaded_at <= ?"
		args = append(args, filter.UploadedBefore.UTC())
	}

	if col, ok := orderColumns[filter.OrderBy]; ok {
		query += " ORDER BY f." + col
		if filter.OrderDir == "ASC" {
			query += " ASC"
		} else {
			query += " DESC"
		}
	} else {
		query += " ORDER BY f.uploaded_at DESC"
	}

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// sqlite rejects OFFSET without a LIMIT clause; -1 means unbounded.
		query += " LIMIT -1"
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []*types.File
	for rows.Next() {
		var f types.File
		err := rows.Scan(&f.ID, &f.BinaryID, &f.SHA256, &f.OriginalFilename, &f.ContentType, &f.Size, &f.UploadedAt)
		if err != nil {
			return nil, err
		}
		files = append(files, &f)
	}

	return files, rows.Err()
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
