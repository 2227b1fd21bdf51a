package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/snmpclient"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/statestore"
)

type fakeDeviceFetcher struct {
	devices map[string]*models.Device
}

func (f *fakeDeviceFetcher) GetDevicesByIDs(_ context.Context, ids []string) ([]*models.Device, error) {
	out := make([]*models.Device, 0, len(ids))
	for _, id := range ids {
		if d, ok := f.devices[id]; ok {
			out = append(out, d)
		}
	}

	return out, nil
}

type fakeVault struct{}

func (fakeVault) Decrypt(_ context.Context, deviceID string) (*models.SNMPCredential, error) {
	return &models.SNMPCredential{DeviceID: deviceID, Version: models.SNMPv2c, Community: "public"}, nil
}

type fakeWalkSession struct {
	byRoot map[string][]snmpclient.OIDResult
}

func (f *fakeWalkSession) Connect() error { return nil }
func (f *fakeWalkSession) Close() error   { return nil }

func (f *fakeWalkSession) GetBulkWalk(rootOID string, _ uint8) ([]snmpclient.OIDResult, error) {
	return f.byRoot[rootOID], nil
}

func TestWorkerRunBatchWalksAndUpsertsClassifiedInterfaces(t *testing.T) {
	d := &models.Device{ID: "d1", Name: "edge", IP: "10.0.0.10"}
	devices := &fakeDeviceFetcher{devices: map[string]*models.Device{"d1": d}}

	session := &fakeWalkSession{byRoot: map[string][]snmpclient.OIDResult{
		oidIfDescr:       {{OID: oidIfDescr + ".1", Value: "GigabitEthernet0/1"}},
		oidIfType:        {{OID: oidIfType + ".1", Value: 6}},
		oidIfSpeed:       {{OID: oidIfSpeed + ".1", Value: uint(1000000000)}},
		oidIfAdminStatus: {{OID: oidIfAdminStatus + ".1", Value: 1}},
		oidIfOperStatus:  {{OID: oidIfOperStatus + ".1", Value: 1}},
		oidIfName:        {{OID: oidIfName + ".1", Value: "Gi0/1"}},
		oidIfAlias:       {{OID: oidIfAlias + ".1", Value: "Comcast ISP Uplink"}},
		oidIfHighSpeed:   {{OID: oidIfHighSpeed + ".1", Value: uint(1000)}},
	}}

	factory := func(_ string, _ *models.SNMPCredential) (WalkSession, error) { return session, nil }

	store := statestore.NewMemStore()
	store.PutDevice(d)

	w := NewWorker(devices, fakeVault{}, store, store, factory, 10, logger.New(logger.Config{}))

	report, err := w.RunBatch(context.Background(), []string{"d1"}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Completed)

	ifaces := store.Interfaces()
	require.Len(t, ifaces, 1)
	assert.Equal(t, models.IfISP, ifaces[0].InterfaceType)
	assert.Equal(t, "Comcast", ifaces[0].ISPProvider)
	assert.True(t, ifaces[0].IsCritical)
	assert.Equal(t, uint64(1000)*highSpeedMultiplier, ifaces[0].SpeedBps)
}

func TestWorkerAppliesISPUplinkHeuristicWhenNoExplicitTag(t *testing.T) {
	d := &models.Device{ID: "d2", Name: "uplink", IP: "10.0.0.5"}
	devices := &fakeDeviceFetcher{devices: map[string]*models.Device{"d2": d}}

	session := &fakeWalkSession{byRoot: map[string][]snmpclient.OIDResult{}}
	factory := func(_ string, _ *models.SNMPCredential) (WalkSession, error) { return session, nil }

	store := statestore.NewMemStore()
	store.PutDevice(d)

	w := NewWorker(devices, fakeVault{}, store, store, factory, 10, logger.New(logger.Config{}))

	_, err := w.RunBatch(context.Background(), []string{"d2"}, time.Second)
	require.NoError(t, err)

	got, err := store.GetDevice(context.Background(), "d2")
	require.NoError(t, err)
	assert.True(t, got.HasTag(RoleISPUplink))
}
