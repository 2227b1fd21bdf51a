package statestore

import (
	"context"
	"sync"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// MemStore is an in-memory Store used by tests and local development.
type MemStore struct {
	mu          sync.Mutex
	devices     map[string]*models.Device
	interfaces  map[string]*models.Interface
	rules       []*models.AlertRule
	alerts      map[string]*models.AlertHistory
	creds       map[string]*models.EncryptedSNMPCredential
	items       map[string][]models.AppliedItem
	pingResults []*models.PingResult
	branches    map[string]string
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		devices:    make(map[string]*models.Device),
		interfaces: make(map[string]*models.Interface),
		alerts:     make(map[string]*models.AlertHistory),
		creds:      make(map[string]*models.EncryptedSNMPCredential),
		items:      make(map[string][]models.AppliedItem),
		branches:   make(map[string]string),
	}
}

// PutBranch seeds a branch's region label.
func (m *MemStore) PutBranch(branchID, region string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.branches[branchID] = region
}

// GetBranchRegion resolves branchID to its region label; unknown
// branches yield an empty region.
func (m *MemStore) GetBranchRegion(_ context.Context, branchID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.branches[branchID], nil
}

// PutAppliedItems seeds deviceID's applied MonitoringItems.
func (m *MemStore) PutAppliedItems(deviceID string, items []models.AppliedItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[deviceID] = items
}

// PutDevice seeds or replaces a device.
func (m *MemStore) PutDevice(d *models.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.devices[d.ID] = d
}

func (m *MemStore) PutRule(r *models.AlertRule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rules = append(m.rules, r)
}

func (m *MemStore) PutCredential(c *models.EncryptedSNMPCredential) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creds[c.DeviceID] = c
}

func (m *MemStore) CountEnabledDevices(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0

	for _, d := range m.devices {
		if d.Enabled {
			n++
		}
	}

	return n, nil
}

func (m *MemStore) EnabledDeviceIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string

	for id, d := range m.devices {
		if d.Enabled {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

func (m *MemStore) GetDevice(_ context.Context, deviceID string) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[deviceID]
	if !ok {
		return nil, errkind.New(errkind.NotFound, errDeviceNotFound)
	}

	cp := *d

	return &cp, nil
}

func (m *MemStore) GetDevicesByIDs(_ context.Context, deviceIDs []string) ([]*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Device, 0, len(deviceIDs))

	for _, id := range deviceIDs {
		if d, ok := m.devices[id]; ok {
			cp := *d
			out = append(out, &cp)
		}
	}

	return out, nil
}

// WithDeviceLock emulates row-level locking with the store's single mutex,
// sufficient for single-process tests exercising the state machine's
// serialization contract.
func (m *MemStore) WithDeviceLock(_ context.Context, deviceID string, fn func(d *models.Device) (*models.Device, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.devices[deviceID]
	if !ok {
		return errkind.New(errkind.NotFound, errDeviceNotFound)
	}

	cp := *current

	updated, err := fn(&cp)
	if err != nil {
		return err
	}

	if updated != nil {
		m.devices[deviceID] = updated
	}

	return nil
}

// SetDeviceVendor implements DeviceStore for MemStore-backed tests.
func (m *MemStore) SetDeviceVendor(_ context.Context, deviceID, vendor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[deviceID]
	if !ok {
		return errkind.New(errkind.NotFound, errDeviceNotFound)
	}

	d.Vendor = vendor

	return nil
}

// AddDeviceTag implements DeviceStore for MemStore-backed tests.
func (m *MemStore) AddDeviceTag(_ context.Context, deviceID, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[deviceID]
	if !ok {
		return errkind.New(errkind.NotFound, errDeviceNotFound)
	}

	if d.HasTag(tag) {
		return nil
	}

	d.Tags = append(d.Tags, tag)

	return nil
}

func (m *MemStore) UpsertInterface(_ context.Context, iface *models.Interface) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := iface.DeviceID + "#" + itoa(iface.IfIndex)
	cp := *iface
	m.interfaces[key] = &cp

	return nil
}

func (m *MemStore) DeleteStaleInterfaces(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0

	for k, iface := range m.interfaces {
		if iface.LastSeen.Before(olderThan) {
			delete(m.interfaces, k)
			removed++
		}
	}

	return removed, nil
}

// ListCriticalByDevice implements InterfaceStore for MemStore-backed tests.
func (m *MemStore) ListCriticalByDevice(_ context.Context, deviceID string) ([]*models.Interface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Interface

	for _, iface := range m.interfaces {
		if iface.DeviceID == deviceID && (iface.IsCritical || iface.IsISP) {
			cp := *iface
			out = append(out, &cp)
		}
	}

	return out, nil
}

// ListAppliedItems implements MonitoringStore for MemStore-backed tests.
func (m *MemStore) ListAppliedItems(_ context.Context, deviceID string) ([]models.AppliedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.items[deviceID], nil
}

// Interfaces returns a snapshot of all stored interfaces, for test assertions.
func (m *MemStore) Interfaces() []*models.Interface {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Interface, 0, len(m.interfaces))
	for _, iface := range m.interfaces {
		cp := *iface
		out = append(out, &cp)
	}

	return out
}

func (m *MemStore) ListEnabledRules(_ context.Context) ([]*models.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.AlertRule

	for _, r := range m.rules {
		if r.Enabled {
			cp := *r
			out = append(out, &cp)
		}
	}

	return out, nil
}

func alertKey(deviceID, ruleName string) string { return deviceID + "#" + ruleName }

func (m *MemStore) GetOpenAlert(_ context.Context, deviceID, ruleName string) (*models.AlertHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[alertKey(deviceID, ruleName)]
	if !ok || !a.Open() {
		return nil, nil
	}

	cp := *a

	return &cp, nil
}

func (m *MemStore) GetLastResolvedAlert(_ context.Context, deviceID, ruleName string) (*models.AlertHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[alertKey(deviceID, ruleName)]
	if !ok || a.Open() {
		return nil, nil
	}

	cp := *a

	return &cp, nil
}

func (m *MemStore) CreateAlert(_ context.Context, alert *models.AlertHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *alert
	m.alerts[alertKey(alert.DeviceID, alert.RuleName)] = &cp

	return nil
}

func (m *MemStore) ResolveAlert(_ context.Context, alertID string, resolvedAt time.Time, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.ID == alertID && a.Open() {
			t := resolvedAt
			a.ResolvedAt = &t

			if a.Context == nil {
				a.Context = map[string]string{}
			}

			a.Context["resolution_reason"] = reason
		}
	}

	return nil
}

func (m *MemStore) DeleteResolvedBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0

	for k, a := range m.alerts {
		if a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff) {
			delete(m.alerts, k)
			removed++
		}
	}

	return removed, nil
}

// AllAlerts returns a snapshot of all alert rows, for test assertions.
func (m *MemStore) AllAlerts() []*models.AlertHistory {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.AlertHistory, 0, len(m.alerts))
	for _, a := range m.alerts {
		cp := *a
		out = append(out, &cp)
	}

	return out
}

func (m *MemStore) GetEncryptedCredential(_ context.Context, deviceID string) (*models.EncryptedSNMPCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.creds[deviceID]
	if !ok {
		return nil, nil
	}

	cp := *c

	return &cp, nil
}

func (m *MemStore) RecordPingResult(_ context.Context, r *models.PingResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	m.pingResults = append(m.pingResults, &cp)

	return nil
}

func (m *MemStore) DeletePingResultsBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.pingResults[:0]
	removed := 0

	for _, r := range m.pingResults {
		if r.Timestamp.Before(cutoff) {
			removed++
			continue
		}

		kept = append(kept, r)
	}

	m.pingResults = kept

	return removed, nil
}

// PingResults returns a snapshot of all stored ping results, for test assertions.
func (m *MemStore) PingResults() []*models.PingResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.PingResult, 0, len(m.pingResults))
	for _, r := range m.pingResults {
		cp := *r
		out = append(out, &cp)
	}

	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	neg := n < 0
	if neg {
		n = -n
	}

	var buf [20]byte

	i := len(buf)

	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}

	if neg {
		i--
		buf[i] = '-'
	}

	return string(buf[i:])
}
