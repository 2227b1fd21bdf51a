package statestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
)

// GetBranchRegion resolves branchID to the region label attached to
// samples for that branch's devices. An unknown branch yields an empty
// region rather than an error: label enrichment must never block a
// sample write.
func (s *CNPGStore) GetBranchRegion(ctx context.Context, branchID string) (string, error) {
	var region string

	err := s.pool.QueryRow(ctx, `SELECT region FROM branches WHERE id = $1`, branchID).Scan(&region)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", errkind.New(errkind.Internal, fmt.Errorf("statestore: branch region: %w", err))
	}

	return region, nil
}
