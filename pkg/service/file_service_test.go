package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/zots0127/dedupstore/pkg/blob"
	"github.com/zots0127/dedupstore/pkg/hasher"
	"github.com/zots0127/dedupstore/pkg/store"
	"github.com/zots0127/dedupstore/pkg/types"
)

func newTestService(t *testing.T) (*FileService, string, string) {
	t.Helper()

	blobDir := t.TempDir()
	blobs, err := blob.NewDiskStore(blobDir)
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "store.db")
	st, err := store.Open(dbPath, blobs)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return NewFileService(st, blobs), blobDir, dbPath
}

func TestUploadDedup(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	data := []byte("identical payload")

	first, err := svc.Upload(ctx, "one.txt", "text/plain", bytes.NewReader(data))
	require.NoError(t, err)
	assert.False(t, first.Deduplicated)
	assert.Equal(t, int64(len(data)), first.Size)

	second, err := svc.Upload(ctx, "two.txt", "text/plain", bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.SHA256, second.SHA256)
	assert.NotEqual(t, first.ID, second.ID)

	// Two logical records, one shared binary: half the bytes saved.
	savings, err := svc.Savings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), savings.BytesSaved)
	assert.Equal(t, int64(2*len(data)), savings.TotalLogicalBytes)
	assert.Equal(t, 50.00, savings.PercentSaved)
}

func TestUploadNoContent(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), "ghost.txt", "text/plain", nil)
	assert.ErrorIs(t, err, types.ErrNoContent)
}

func TestUploadDefaultContentType(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Upload(ctx, "mystery", "", bytes.NewReader([]byte("bytes")))
	require.NoError(t, err)

	_, file, err := svc.Download(ctx, "tester", result.ID)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", file.ContentType)
}

func TestDownloadRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	data := []byte("round trip me")

	result, err := svc.Upload(ctx, "trip.bin", "application/octet-stream", bytes.NewReader(data))
	require.NoError(t, err)

	rc, file, err := svc.Download(ctx, "tester", result.ID)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "trip.bin", file.OriginalFilename)

	// The fetched bytes must hash to the recorded fingerprint.
	fp, _, err := hasher.Sum(bytes.NewReader(got))
	require.NoError(t, err)
	assert.Equal(t, result.SHA256, fp)
}

func TestDownloadKeepsPerFileMetadata(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	data := []byte("shared bytes, different names")

	first, err := svc.Upload(ctx, "alpha.txt", "text/plain", bytes.NewReader(data))
	require.NoError(t, err)
	second, err := svc.Upload(ctx, "beta.csv", "text/csv", bytes.NewReader(data))
	require.NoError(t, err)

	_, fileA, err := svc.Download(ctx, "tester", first.ID)
	require.NoError(t, err)
	_, fileB, err := svc.Download(ctx, "tester", second.ID)
	require.NoError(t, err)

	assert.Equal(t, "alpha.txt", fileA.OriginalFilename)
	assert.Equal(t, "text/plain", fileA.ContentType)
	assert.Equal(t, "beta.csv", fileB.OriginalFilename)
	assert.Equal(t, "text/csv", fileB.ContentType)
}

func TestDownloadUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.Download(context.Background(), "tester", 424242)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDownloadContentMissing(t *testing.T) {
	svc, blobDir, _ := newTestService(t)
	ctx := context.Background()
	data := []byte("soon to vanish")

	result, err := svc.Upload(ctx, "gone.bin", "application/octet-stream", bytes.NewReader(data))
	require.NoError(t, err)

	// Pull the blob out from under the record.
	locator := filepath.Join(result.SHA256[:2], result.SHA256[2:4], result.SHA256)
	require.NoError(t, os.Remove(filepath.Join(blobDir, locator)))

	_, _, err = svc.Download(ctx, "tester", result.ID)
	assert.ErrorIs(t, err, types.ErrContentMissing)
	assert.NotErrorIs(t, err, types.ErrNotFound)
}

func TestUploadRecordFailureLeavesNoBinary(t *testing.T) {
	svc, blobDir, dbPath := newTestService(t)
	ctx := context.Background()

	// Break the catalog table underneath the service so RecordFile
	// fails after the binary has been registered.
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=busy_timeout(10000)")
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("ALTER TABLE files RENAME TO files_broken")
	require.NoError(t, err)

	data := []byte("never recorded")
	_, err = svc.Upload(ctx, "orphan.bin", "application/octet-stream", bytes.NewReader(data))
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM binaries").Scan(&count))
	assert.Zero(t, count, "failed upload must leave no binary row")

	fp, _, err := hasher.Sum(bytes.NewReader(data))
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(blobDir, fp[:2], fp[2:4], fp))
	assert.True(t, os.IsNotExist(statErr), "failed upload must leave no stored content")
}

func TestListDelegatesFilter(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "keep.txt", "text/plain", bytes.NewReader([]byte("keep")))
	require.NoError(t, err)
	_, err = svc.Upload(ctx, "skip.jpg", "image/jpeg", bytes.NewReader([]byte("skip")))
	require.NoError(t, err)

	files, err := svc.List(ctx, &types.FileFilter{ContentTypes: []string{"text/plain"}})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "keep.txt", files[0].OriginalFilename)
}
