package statestore

import (
	"context"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// DeviceStore is the relational surface for device records and their
// state-machine fields.
type DeviceStore interface {
	CountEnabledDevices(ctx context.Context) (int, error)
	// EnabledDeviceIDs returns every enabled device's id, for the
	// Batcher to split into batches.
	EnabledDeviceIDs(ctx context.Context) ([]string, error)
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	GetDevicesByIDs(ctx context.Context, deviceIDs []string) ([]*models.Device, error)
	// WithDeviceLock serializes per-device reads/writes via row-level
	// locking: fn receives the locked current row and its
	// return value is persisted in the same short transaction.
	WithDeviceLock(ctx context.Context, deviceID string, fn func(d *models.Device) (*models.Device, error)) error
	// SetDeviceVendor records the SNMP Batch Worker's vendor
	// auto-detection result for a device that previously had none.
	SetDeviceVendor(ctx context.Context, deviceID, vendor string) error
	// AddDeviceTag appends tag to deviceID's tag set if not already
	// present, used by the Discovery Worker's IP-octet ISP heuristic
	// (the heuristic only ever adds this tag, never overwrites or
	// removes an operator-set one).
	AddDeviceTag(ctx context.Context, deviceID, tag string) error
}

// BranchSource resolves a device's branch to the region label required
// on every emitted sample.
type BranchSource interface {
	GetBranchRegion(ctx context.Context, branchID string) (string, error)
}

// InterfaceStore is the relational surface for discovered interfaces.
type InterfaceStore interface {
	UpsertInterface(ctx context.Context, iface *models.Interface) error
	DeleteStaleInterfaces(ctx context.Context, olderThan time.Time) (int, error)
	// ListCriticalByDevice returns deviceID's interfaces flagged
	// is_critical OR is_isp, the counter-collection scope for the SNMP
	// Batch Worker.
	ListCriticalByDevice(ctx context.Context, deviceID string) ([]*models.Interface, error)
}

// MonitoringStore is the relational surface for per-device applied
// MonitoringItems, the OID source list for the SNMP Batch Worker
//.
type MonitoringStore interface {
	ListAppliedItems(ctx context.Context, deviceID string) ([]models.AppliedItem, error)
}

// PingResultStore is the relational surface for the optional,
// short-lived PingResult rows. Never load-
// bearing: absence of a row never blocks TSDB or state-machine writes.
type PingResultStore interface {
	RecordPingResult(ctx context.Context, r *models.PingResult) error
	DeletePingResultsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// AlertStore is the relational surface for alert rules and history.
type AlertStore interface {
	ListEnabledRules(ctx context.Context) ([]*models.AlertRule, error)
	GetOpenAlert(ctx context.Context, deviceID, ruleName string) (*models.AlertHistory, error)
	GetLastResolvedAlert(ctx context.Context, deviceID, ruleName string) (*models.AlertHistory, error)
	CreateAlert(ctx context.Context, alert *models.AlertHistory) error
	ResolveAlert(ctx context.Context, alertID string, resolvedAt time.Time, reason string) error
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Store aggregates the relational surfaces the monitoring core needs.
type Store interface {
	DeviceStore
	InterfaceStore
	AlertStore
	MonitoringStore
	PingResultStore
}
