// Package store persists the binary registry and the file catalog in
// sqlite. The registry owns the find-or-create transition for content
// fingerprints; the catalog is an append-only log of logical uploads.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zots0127/dedupstore/pkg/blob"
	_ "modernc.org/sqlite"
)

// Store wraps the sqlite database and the blob store the registry
// writes content into.
type Store struct {
	db    *sql.DB
	blobs blob.Store
}

// Open opens (or creates) the database at dbPath and prepares the
// schema. The busy_timeout pragma makes concurrent write
// transactions queue instead of failing with SQLITE_BUSY.
func Open(dbPath string, blobs blob.Store) (*Store, error) {
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := &Store{
		db:    db,
		blobs: blobs,
	}

	if err := s.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS binaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sha256 TEXT NOT NULL UNIQUE,
		size INTEGER NOT NULL DEFAULT 0,
		locator TEXT NOT NULL,
		ref_count INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		binary_id INTEGER NOT NULL REFERENCES binaries(id),
		original_filename TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
		size INTEGER NOT NULL DEFAULT 0,
		uploaded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_files_uploaded_at ON files(uploaded_at);
	CREATE INDEX IF NOT EXISTS idx_files_size ON files(size);
	CREATE INDEX IF NOT EXISTS idx_files_original_filename ON files(original_filename);
	`

	_, err := s.db.Exec(schema)
	return err
}
