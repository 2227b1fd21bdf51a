package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/require"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
	}

	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, func() bool {
		return srv.JetStreamEnabled()
	}, 5*time.Second, 50*time.Millisecond, "embedded NATS server not ready for JetStream")

	return srv
}

func TestQueueEnqueueAndFetchRoundTrips(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv := runJetStreamServer(t)
	t.Cleanup(srv.Shutdown)

	cfg := DefaultConfig()
	cfg.URL = srv.ClientURL()
	cfg.StreamName = "TESTQ"

	q, err := Connect(ctx, cfg)
	require.NoError(t, err)

	t.Cleanup(q.Close)

	task := models.Task{Task: models.TaskPingBatch, DeviceIDs: []string{"dev-1", "dev-2"}, EnqueuedAt: time.Unix(0, 0)}
	require.NoError(t, q.Enqueue(ctx, models.ClassMonitoring, task))

	consumer, err := q.NewConsumer(ctx, models.ClassMonitoring)
	require.NoError(t, err)

	deliveries, err := consumer.Fetch(ctx, 10, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)

	got := deliveries[0]
	require.Equal(t, models.TaskPingBatch, got.Task.Task)
	require.Equal(t, []string{"dev-1", "dev-2"}, got.Task.DeviceIDs)
	require.EqualValues(t, 1, got.NumDelivered)
	require.NoError(t, got.Ack())
}

func TestQueueEnqueueRejectsOversizedPayload(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv := runJetStreamServer(t)
	t.Cleanup(srv.Shutdown)

	cfg := DefaultConfig()
	cfg.URL = srv.ClientURL()
	cfg.StreamName = "TESTQ2"

	q, err := Connect(ctx, cfg)
	require.NoError(t, err)

	t.Cleanup(q.Close)

	oversized := make([]string, models.MaxTaskPayloadBytes)
	for i := range oversized {
		oversized[i] = "x"
	}

	task := models.Task{Task: models.TaskPollBatch, DeviceIDs: oversized}
	err = q.Enqueue(ctx, models.ClassSNMP, task)
	require.Error(t, err)
}

func TestSubjectNamingIsStablePerClass(t *testing.T) {
	t.Parallel()

	require.Equal(t, "WARDFLUX_TASKS.monitoring", subject("WARDFLUX_TASKS", models.ClassMonitoring))
	require.Equal(t, "WARDFLUX_TASKS.snmp", subject("WARDFLUX_TASKS", models.ClassSNMP))
	require.Equal(t, "WARDFLUX_TASKS.alerts", subject("WARDFLUX_TASKS", models.ClassAlerts))
	require.Equal(t, "WARDFLUX_TASKS.maintenance", subject("WARDFLUX_TASKS", models.ClassMaintenance))
}
