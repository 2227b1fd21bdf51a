package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/snmpclient"
)

type fakeVault struct {
	creds map[string]*models.SNMPCredential
}

func (f *fakeVault) Decrypt(_ context.Context, deviceID string) (*models.SNMPCredential, error) {
	return f.creds[deviceID], nil
}

type fakeMonitoringItems struct {
	items map[string][]models.AppliedItem
}

func (f *fakeMonitoringItems) ListAppliedItems(_ context.Context, deviceID string) ([]models.AppliedItem, error) {
	return f.items[deviceID], nil
}

type fakeCriticalIfaces struct {
	ifaces map[string][]*models.Interface
}

func (f *fakeCriticalIfaces) ListCriticalByDevice(_ context.Context, deviceID string) ([]*models.Interface, error) {
	return f.ifaces[deviceID], nil
}

type fakeVendorSetter struct {
	set map[string]string
}

func (f *fakeVendorSetter) SetDeviceVendor(_ context.Context, deviceID, vendor string) error {
	if f.set == nil {
		f.set = map[string]string{}
	}

	f.set[deviceID] = vendor

	return nil
}

type fakeSession struct {
	values map[string]interface{}
}

func (f *fakeSession) Connect() error { return nil }
func (f *fakeSession) Close() error   { return nil }

func (f *fakeSession) Get(_ context.Context, oids []string) ([]snmpclient.OIDResult, error) {
	out := make([]snmpclient.OIDResult, 0, len(oids))

	for _, oid := range oids {
		v, ok := f.values[oid]
		if !ok {
			out = append(out, snmpclient.OIDResult{OID: oid, Err: snmpclient.ErrNoSuchObject})
			continue
		}

		out = append(out, snmpclient.OIDResult{OID: oid, Value: v})
	}

	return out, nil
}

func TestSNMPWorkerRunBatchPollsMonitoringItemsAndInterfaceCounters(t *testing.T) {
	d := &models.Device{ID: "d1", Name: "edge-rtr", IP: "10.0.0.2", Vendor: "cisco"}
	devices := &fakeDeviceFetcher{devices: map[string]*models.Device{"d1": d}}

	vault := &fakeVault{creds: map[string]*models.SNMPCredential{"d1": {DeviceID: "d1", Version: models.SNMPv2c, Community: "public"}}}

	items := &fakeMonitoringItems{items: map[string][]models.AppliedItem{
		"d1": {{DeviceID: "d1", Item: models.MonitoringItem{Name: "cpu", OID: "1.3.6.1.4.1.9.9.109.1.1.1.1.5.1", ValueType: models.ValueGauge, Enabled: true}}},
	}}

	ifaces := &fakeCriticalIfaces{ifaces: map[string][]*models.Interface{
		"d1": {{DeviceID: "d1", IfIndex: 1, IfName: "GigabitEthernet0/1", IsCritical: true, IsISP: true, ISPProvider: "Magti"}},
	}}

	vendor := &fakeVendorSetter{}
	writer := &fakeWriter{}

	session := &fakeSession{values: map[string]interface{}{
		"1.3.6.1.4.1.9.9.109.1.1.1.1.5.1": uint(42),
		oidIfHCInOctets + ".1":            uint64(1000),
		oidIfHCOutOctets + ".1":           uint64(2000),
		oidIfInErrors + ".1":              uint32(1),
		oidIfOutErrors + ".1":             uint32(0),
		oidIfInDiscards + ".1":            uint32(0),
		oidIfOutDiscards + ".1":           uint32(0),
		oidIfAdminStatus + ".1":           1,
		oidIfOperStatus + ".1":            1,
	}}

	factory := func(_ string, _ *models.SNMPCredential) (SNMPSession, error) { return session, nil }

	w := NewSNMPWorker(devices, items, ifaces, vault, vendor, writer, factory, 10, logger.New(logger.Config{}))

	report, err := w.RunBatch(context.Background(), []string{"d1"}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Probed)
	assert.Len(t, writer.samples, 9) // 1 monitoring item + 8 interface metrics
	assert.Empty(t, vendor.set, "vendor already known, detection must not run")

	var itemSample, ifaceSample *models.Sample

	for i := range writer.samples {
		switch writer.samples[i].Metric {
		case "snmp_cpu":
			itemSample = &writer.samples[i]
		case models.MetricIfHCInOctets:
			ifaceSample = &writer.samples[i]
		}
	}

	require.NotNil(t, itemSample)
	assert.Equal(t, "1.3.6.1.4.1.9.9.109.1.1.1.1.5.1", itemSample.Labels["oid"])

	require.NotNil(t, ifaceSample)
	assert.Equal(t, "1", ifaceSample.Labels["if_index"])
	assert.Equal(t, "GigabitEthernet0/1", ifaceSample.Labels["if_name"])
	assert.Equal(t, "Magti", ifaceSample.Labels["isp_provider"])
}

func TestSNMPWorkerDetectsVendorOnFirstContact(t *testing.T) {
	d := &models.Device{ID: "d2", Name: "new-device", IP: "10.0.0.3"}
	devices := &fakeDeviceFetcher{devices: map[string]*models.Device{"d2": d}}

	vault := &fakeVault{creds: map[string]*models.SNMPCredential{"d2": {DeviceID: "d2", Version: models.SNMPv2c, Community: "public"}}}
	items := &fakeMonitoringItems{items: map[string][]models.AppliedItem{}}
	ifaces := &fakeCriticalIfaces{ifaces: map[string][]*models.Interface{}}
	vendor := &fakeVendorSetter{}
	writer := &fakeWriter{}

	session := &fakeSession{values: map[string]interface{}{
		oidSysDescr:    "Cisco IOS Software",
		oidSysObjectID: "1.3.6.1.4.1.9.1.1",
	}}

	factory := func(_ string, _ *models.SNMPCredential) (SNMPSession, error) { return session, nil }

	w := NewSNMPWorker(devices, items, ifaces, vault, vendor, writer, factory, 10, logger.New(logger.Config{}))

	_, err := w.RunBatch(context.Background(), []string{"d2"}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "cisco", vendor.set["d2"])
}
