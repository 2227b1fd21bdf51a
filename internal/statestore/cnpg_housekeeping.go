package statestore

import (
	"context"
	"fmt"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
)

// KillIdleTransactions terminates any backend whose current
// transaction has sat idle longer than maxIdle (IDLE_TX_MAX, default
// 60s), returning the number of backends killed so the caller
// can advance the db_idle_tx_killed_total counter.
func (s *CNPGStore) KillIdleTransactions(ctx context.Context, maxIdle time.Duration) (int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE state = 'idle in transaction'
		  AND pid <> pg_backend_pid()
		  AND state_change < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(maxIdle.Seconds())))
	if err != nil {
		return 0, errkind.New(errkind.Internal, fmt.Errorf("statestore: kill idle transactions: %w", err))
	}
	defer rows.Close()

	killed := 0

	for rows.Next() {
		var ok bool
		if err := rows.Scan(&ok); err != nil {
			return killed, errkind.New(errkind.Internal, fmt.Errorf("statestore: scan terminate result: %w", err))
		}

		if ok {
			killed++
		}
	}

	return killed, rows.Err()
}

// VacuumTables runs VACUUM/ANALYZE against the tables that see heavy
// churn from the Housekeeper's retention deletes. Each statement
// runs outside a transaction block, which pgx's simple Exec satisfies
// since VACUUM cannot run inside one.
func (s *CNPGStore) VacuumTables(ctx context.Context) error {
	for _, table := range []string{"alert_history", "interfaces"} {
		if _, err := s.pool.Exec(ctx, "VACUUM (ANALYZE) "+table); err != nil {
			return errkind.New(errkind.Internal, fmt.Errorf("statestore: vacuum %s: %w", table, err))
		}
	}

	return nil
}
