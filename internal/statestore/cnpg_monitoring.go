package statestore

import (
	"context"
	"fmt"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// ListAppliedItems returns deviceID's enabled MonitoringItems, the OID
// set the SNMP Batch Worker polls for this device.
func (s *CNPGStore) ListAppliedItems(ctx context.Context, deviceID string) ([]models.AppliedItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT device_id, name, oid, interval_seconds, value_type, units, enabled
		FROM monitoring_items WHERE device_id = $1 AND enabled = TRUE`, deviceID)
	if err != nil {
		return nil, errkind.New(errkind.Internal, fmt.Errorf("statestore: list applied items: %w", err))
	}
	defer rows.Close()

	var items []models.AppliedItem

	for rows.Next() {
		ai := models.AppliedItem{}

		if err := rows.Scan(&ai.DeviceID, &ai.Item.Name, &ai.Item.OID, &ai.Item.IntervalSeconds,
			&ai.Item.ValueType, &ai.Item.Units, &ai.Item.Enabled); err != nil {
			return nil, errkind.New(errkind.Internal, fmt.Errorf("statestore: scan applied item: %w", err))
		}

		items = append(items, ai)
	}

	return items, rows.Err()
}
