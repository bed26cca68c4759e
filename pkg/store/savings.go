package store

import (
	"context"
	"fmt"
	"math"

	"github.com/zots0127/dedupstore/pkg/types"
)

// ComputeSavings reports aggregate dedup efficiency. Both sums are
// read by one statement, so the result is a consistent snapshot even
// with uploads in flight. Empty tables yield all zeros.
func (s *Store) ComputeSavings(ctx context.Context) (*types.Savings, error) {
	var logical, unique int64
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COALESCE(SUM(size), 0) FROM files),
			(SELECT COALESCE(SUM(size), 0) FROM binaries)`,
	).Scan(&logical, &unique)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sizes: %w", err)
	}

	saved := logical - unique
	if saved < 0 {
		saved = 0
	}

	pct := 0.0
	if logical > 0 {
		pct = math.Round(float64(saved)/float64(logical)*100*100) / 100
	}

	return &types.Savings{
		BytesSaved:        saved,
		TotalUniqueBytes:  unique,
		TotalLogicalBytes: logical,
		PercentSaved:      pct,
	}, nil
}
