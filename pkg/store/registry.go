package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/zots0127/dedupstore/pkg/types"
)

// ResolveOrCreate resolves the fingerprint to its Binary, creating it
// on first sight. Returns the Binary and whether this call created it.
//
// The create/increment decision and the row mutation happen inside a
// single transaction guarded by the UNIQUE constraint on sha256: when
// two callers race on a fresh fingerprint, one insert wins and the
// loser's insert affects zero rows, which routes it onto the
// increment path. The race is absorbed here and never surfaces to the
// caller. Under N concurrent calls for the same content exactly one
// row exists afterwards with ref_count N.
//
// Content is written to the blob store before the row is inserted, so
// a committed Binary always has readable content. The blob write is
// content-addressed and therefore idempotent when racing callers both
// write it.
func (s *Store) ResolveOrCreate(ctx context.Context, fingerprint string, size int64, r io.Reader) (*types.Binary, bool, error) {
	// Dedup fast path: an existing binary means the content is already
	// stored and must not be re-written.
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM binaries WHERE sha256 = ?)", fingerprint,
	).Scan(&exists)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up binary: %w", err)
	}

	var locator string
	wrote := false
	if !exists {
		locator, err = s.blobs.Put(ctx, fingerprint, size, r)
		if err != nil {
			return nil, false, fmt.Errorf("failed to store content: %w", err)
		}
		wrote = true
	}

	binary, created, err := s.upsertBinary(ctx, fingerprint, size, locator, wrote)
	if err != nil {
		if wrote {
			// Drop the fresh blob unless a racing winner committed a
			// row that now references it.
			var claimed bool
			if scanErr := s.db.QueryRowContext(ctx,
				"SELECT EXISTS(SELECT 1 FROM binaries WHERE sha256 = ?)", fingerprint,
			).Scan(&claimed); scanErr == nil && !claimed {
				_ = s.blobs.Delete(ctx, locator)
			}
		}
		return nil, false, err
	}

	return binary, created, nil
}

// upsertBinary runs the atomic create-or-increment transition. The
// first statement in the transaction is a write, so sqlite takes the
// write lock up front and racing transactions queue on busy_timeout
// instead of deadlocking on a read-to-write upgrade.
func (s *Store) upsertBinary(ctx context.Context, fingerprint string, size int64, locator string, mayCreate bool) (*types.Binary, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	created := false
	if mayCreate {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO binaries (sha256, size, locator, ref_count, created_at)
			 VALUES (?, ?, ?, 1, ?)
			 ON CONFLICT(sha256) DO NOTHING`,
			fingerprint, size, locator, time.Now().UTC(),
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to create binary: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, false, err
		}
		created = rows > 0
	}

	if !created {
		// Someone else holds this fingerprint; take the increment path.
		res, err := tx.ExecContext(ctx,
			"UPDATE binaries SET ref_count = ref_count + 1 WHERE sha256 = ?", fingerprint,
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to increment ref count: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return nil, false, err
		}
		if rows == 0 {
			return nil, false, fmt.Errorf("binary %s vanished during resolve", fingerprint)
		}
	}

	binary, err := scanBinary(tx.QueryRowContext(ctx,
		"SELECT id, sha256, size, locator, ref_count, created_at FROM binaries WHERE sha256 = ?",
		fingerprint,
	))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read binary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}

	return binary, created, nil
}

// ReleaseBinary undoes one ResolveOrCreate transition after a later
// step of the upload failed. The ref count drops by exactly 1; a
// count that reaches zero means no File ever bound to the Binary, so
// the row and its stored content are removed. This keeps a failed
// upload from leaving partial binary state behind.
func (s *Store) ReleaseBinary(ctx context.Context, fingerprint string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE binaries SET ref_count = ref_count - 1 WHERE sha256 = ?", fingerprint,
	); err != nil {
		return fmt.Errorf("failed to release ref count: %w", err)
	}

	var locator string
	var refCount int64
	err = tx.QueryRowContext(ctx,
		"SELECT locator, ref_count FROM binaries WHERE sha256 = ?", fingerprint,
	).Scan(&locator, &refCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read binary: %w", err)
	}

	if refCount <= 0 {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM binaries WHERE sha256 = ?", fingerprint,
		); err != nil {
			return fmt.Errorf("failed to remove binary: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	if refCount <= 0 {
		_ = s.blobs.Delete(ctx, locator)
	}

	return nil
}

// GetBinary returns the Binary row for a registry id.
func (s *Store) GetBinary(ctx context.Context, id int64) (*types.Binary, error) {
	binary, err := scanBinary(s.db.QueryRowContext(ctx,
		"SELECT id, sha256, size, locator, ref_count, created_at FROM binaries WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read binary: %w", err)
	}
	return binary, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBinary(row rowScanner) (*types.Binary, error) {
	var b types.Binary
	err := row.Scan(&b.ID, &b.SHA256, &b.Size, &b.Locator, &b.RefCount, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
