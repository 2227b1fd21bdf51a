package statestore

import (
	"context"
	"fmt"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// RecordPingResult writes one optional, short-lived reachability row.
// Best-effort: callers must not treat a
// failure here as a reason to skip the TSDB write or state-machine
// update.
func (s *CNPGStore) RecordPingResult(ctx context.Context, r *models.PingResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ping_results (device_id, reachable, avg_rtt_ms, loss_ratio, recorded_at)
		VALUES ($1,$2,$3,$4,$5)`,
		r.DeviceID, r.Reachable, r.AvgRTTMs, r.LossRatio, r.Timestamp)
	if err != nil {
		return errkind.New(errkind.Internal, fmt.Errorf("statestore: record ping result: %w", err))
	}

	return nil
}

// DeletePingResultsBefore prunes rows older than cutoff (default
// PING_RETENTION_DAYS = 30).
func (s *CNPGStore) DeletePingResultsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ping_results WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, errkind.New(errkind.Internal, fmt.Errorf("statestore: delete old ping results: %w", err))
	}

	return int(tag.RowsAffected()), nil
}
