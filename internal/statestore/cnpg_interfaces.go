package statestore

import (
	"context"
	"fmt"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// UpsertInterface upserts one discovered interface row keyed by
// (device_id, if_index). Two enqueued discover-interfaces tasks
// for the same device therefore converge on one row, never duplicate
// inserts.
func (s *CNPGStore) UpsertInterface(ctx context.Context, iface *models.Interface) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO interfaces (
			device_id, if_index, if_name, if_alias, if_descr, if_type, interface_type,
			admin_status, oper_status, speed_bps, is_critical, is_isp, isp_provider, last_seen
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (device_id, if_index) DO UPDATE SET
			if_name = EXCLUDED.if_name,
			if_alias = EXCLUDED.if_alias,
			if_descr = EXCLUDED.if_descr,
			if_type = EXCLUDED.if_type,
			interface_type = EXCLUDED.interface_type,
			admin_status = EXCLUDED.admin_status,
			oper_status = EXCLUDED.oper_status,
			speed_bps = EXCLUDED.speed_bps,
			is_critical = EXCLUDED.is_critical,
			is_isp = EXCLUDED.is_isp,
			isp_provider = EXCLUDED.isp_provider,
			last_seen = EXCLUDED.last_seen`,
		iface.DeviceID, iface.IfIndex, iface.IfName, iface.IfAlias, iface.IfDescr, iface.IfType, iface.InterfaceType,
		iface.AdminStatus, iface.OperStatus, iface.SpeedBps, iface.IsCritical, iface.IsISP, nullableString(iface.ISPProvider), iface.LastSeen,
	)
	if err != nil {
		return errkind.New(errkind.Internal, fmt.Errorf("statestore: upsert interface: %w", err))
	}

	return nil
}

// DeleteStaleInterfaces removes rows whose last_seen predates
// olderThan, returning the number removed so the Housekeeper
// can log it and decide whether to VACUUM/ANALYZE.
func (s *CNPGStore) DeleteStaleInterfaces(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM interfaces WHERE last_seen < $1`, olderThan)
	if err != nil {
		return 0, errkind.New(errkind.Internal, fmt.Errorf("statestore: delete stale interfaces: %w", err))
	}

	return int(tag.RowsAffected()), nil
}

// ListCriticalByDevice returns deviceID's interfaces flagged is_critical
// OR is_isp, the scope the SNMP Batch Worker collects counters for
//.
func (s *CNPGStore) ListCriticalByDevice(ctx context.Context, deviceID string) ([]*models.Interface, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT device_id, if_index, if_name, if_alias, if_descr, if_type, interface_type,
		       admin_status, oper_status, speed_bps, is_critical, is_isp, COALESCE(isp_provider, ''), last_seen
		FROM interfaces WHERE device_id = $1 AND (is_critical OR is_isp)`, deviceID)
	if err != nil {
		return nil, errkind.New(errkind.Internal, fmt.Errorf("statestore: list critical interfaces: %w", err))
	}
	defer rows.Close()

	var ifaces []*models.Interface

	for rows.Next() {
		iface := &models.Interface{}

		if err := rows.Scan(&iface.DeviceID, &iface.IfIndex, &iface.IfName, &iface.IfAlias, &iface.IfDescr, &iface.IfType,
			&iface.InterfaceType, &iface.AdminStatus, &iface.OperStatus, &iface.SpeedBps, &iface.IsCritical, &iface.IsISP,
			&iface.ISPProvider, &iface.LastSeen); err != nil {
			return nil, errkind.New(errkind.Internal, fmt.Errorf("statestore: scan interface: %w", err))
		}

		ifaces = append(ifaces, iface)
	}

	return ifaces, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}

	return s
}
