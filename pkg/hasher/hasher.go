package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// chunkSize is the read buffer used while streaming content through
// the digest. The fingerprint does not depend on this value.
const chunkSize = 64 * 1024

// Sum streams rs through SHA-256 in fixed-size chunks and returns the
// hex fingerprint plus the number of bytes read. The stream is never
// held in memory whole. After hashing, rs is seeked back to its start
// so the storage writer can consume it again.
func Sum(rs io.ReadSeeker) (string, int64, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", 0, fmt.Errorf("failed to rewind content: %w", err)
	}

	h := sha256.New()
	buf := make([]byte, chunkSize)
	var size int64

	for {
		n, err := rs.Read(buf)
		if n > 0 {
			size += int64(n)
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("failed to read content: %w", err)
		}
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", 0, fmt.Errorf("failed to rewind content: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}
