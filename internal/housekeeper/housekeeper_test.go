package housekeeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/statestore"
)

type fakeIdleTxKiller struct {
	killed int
}

func (f *fakeIdleTxKiller) KillIdleTransactions(_ context.Context, _ time.Duration) (int, error) {
	return f.killed, nil
}

type fakeVacuumer struct {
	calls int32
}

func (f *fakeVacuumer) VacuumTables(_ context.Context) error {
	atomic.AddInt32(&f.calls, 1)
	return nil
}

type fakeHeartbeatReader struct {
	values map[string][]InstantValue
}

func (f *fakeHeartbeatReader) QueryInstant(_ context.Context, promQL string) ([]InstantValue, error) {
	return f.values[promQL], nil
}

func sequentialID(prefix string) func() string {
	var n int32
	return func() string {
		n++
		return prefix + "-" + string(rune('0'+n))
	}
}

func TestCleanupStaleInterfacesPrunesBothTables(t *testing.T) {
	store := statestore.NewMemStore()
	now := time.Now()

	store.UpsertInterface(context.Background(), &models.Interface{DeviceID: "d1", IfIndex: 1, LastSeen: now.Add(-10 * 24 * time.Hour)})
	store.RecordPingResult(context.Background(), &models.PingResult{DeviceID: "d1", Timestamp: now.Add(-40 * 24 * time.Hour)})

	vac := &fakeVacuumer{}
	hk := New(store, store, store, nil, vac, nil, nil, nil, sequentialID("a"), logger.New(logger.Config{}))

	err := hk.CleanupStaleInterfaces(context.Background(), now, 7*24*time.Hour, 30*24*time.Hour)
	require.NoError(t, err)

	assert.Empty(t, store.Interfaces())
	assert.Empty(t, store.PingResults())
	assert.Equal(t, int32(1), vac.calls)
}

func TestCleanupResolvedAlertsDeletesOldRowsOnly(t *testing.T) {
	store := statestore.NewMemStore()
	now := time.Now()

	oldResolved := now.Add(-10 * 24 * time.Hour)
	require.NoError(t, store.CreateAlert(context.Background(), &models.AlertHistory{
		ID: "a1", RuleID: "r1", RuleName: "Device Down", DeviceID: "d1",
		Severity: models.SeverityHigh, TriggeredAt: oldResolved,
	}))
	require.NoError(t, store.ResolveAlert(context.Background(), "a1", oldResolved, "condition-cleared"))

	require.NoError(t, store.CreateAlert(context.Background(), &models.AlertHistory{
		ID: "a2", RuleID: "r1", RuleName: "Device Down", DeviceID: "d2",
		Severity: models.SeverityHigh, TriggeredAt: now,
	}))

	hk := New(nil, store, nil, nil, nil, nil, nil, nil, sequentialID("a"), logger.New(logger.Config{}))

	err := hk.CleanupResolvedAlerts(context.Background(), now, 7*24*time.Hour)
	require.NoError(t, err)

	alerts := store.AllAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "a2", alerts[0].ID)
}

func TestVacuumIdleTxReturnsKillCount(t *testing.T) {
	hk := New(nil, nil, nil, &fakeIdleTxKiller{killed: 3}, nil, nil, nil, nil, sequentialID("a"), logger.New(logger.Config{}))

	killed, err := hk.VacuumIdleTx(context.Background(), 60*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, killed)
}

func TestVacuumIdleTxNoopWithoutDependency(t *testing.T) {
	hk := New(nil, nil, nil, nil, nil, nil, nil, nil, sequentialID("a"), logger.New(logger.Config{}))

	killed, err := hk.VacuumIdleTx(context.Background(), 60*time.Second)
	require.NoError(t, err)
	assert.Zero(t, killed)
}

func TestCheckWorkerHealthOpensAlertWhenHeartbeatMissing(t *testing.T) {
	store := statestore.NewMemStore()
	now := time.Now()

	reader := &fakeHeartbeatReader{values: map[string][]InstantValue{
		`worker_heartbeat{worker_class="monitoring"}`: nil,
	}}

	hk := New(nil, nil, nil, nil, nil, nil, reader, store, sequentialID("a"), logger.New(logger.Config{}))

	err := hk.CheckWorkerHealth(context.Background(), now, []models.TaskClass{models.ClassMonitoring}, 5*time.Minute)
	require.NoError(t, err)

	alerts := store.AllAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.RuleWorkerMissing, alerts[0].RuleName)
	assert.True(t, alerts[0].Open())
}

func TestCheckWorkerHealthResolvesAlertWhenHeartbeatResumes(t *testing.T) {
	store := statestore.NewMemStore()
	now := time.Now()

	deviceID := workerDeviceID(models.ClassMonitoring)
	require.NoError(t, store.CreateAlert(context.Background(), &models.AlertHistory{
		ID: "wm1", RuleID: builtinIDWorkerMissing, RuleName: models.RuleWorkerMissing,
		DeviceID: deviceID, Severity: models.SeverityCritical, TriggeredAt: now.Add(-time.Hour),
	}))

	reader := &fakeHeartbeatReader{values: map[string][]InstantValue{
		`worker_heartbeat{worker_class="monitoring"}`: {{Value: float64(now.Unix())}},
	}}

	hk := New(nil, nil, nil, nil, nil, nil, reader, store, sequentialID("a"), logger.New(logger.Config{}))

	err := hk.CheckWorkerHealth(context.Background(), now, []models.TaskClass{models.ClassMonitoring}, 5*time.Minute)
	require.NoError(t, err)

	alerts := store.AllAlerts()
	require.Len(t, alerts, 1)
	assert.False(t, alerts[0].Open())
}

func TestWriteHeartbeatIsNoopWithoutWriter(t *testing.T) {
	hk := New(nil, nil, nil, nil, nil, nil, nil, nil, sequentialID("a"), logger.New(logger.Config{}))

	err := hk.WriteHeartbeat(context.Background(), models.ClassMonitoring, time.Now())
	require.NoError(t, err)
}
