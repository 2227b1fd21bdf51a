package batcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

func TestBatchSizeTable(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{0, 25}, {100, 25}, {101, 50}, {500, 50}, {501, 100},
		{1000, 100}, {1001, 200}, {5000, 200}, {5001, 500}, {50000, 500},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, BatchSize(c.n), "n=%d", c.n)
	}
}

type fakeDevices struct {
	ids []string
}

func (f *fakeDevices) CountEnabledDevices(_ context.Context) (int, error) { return len(f.ids), nil }
func (f *fakeDevices) EnabledDeviceIDs(_ context.Context) ([]string, error) { return f.ids, nil }

type fakeDepth struct {
	depth int
}

func (f *fakeDepth) QueueDepth(_ context.Context, _ models.TaskClass) (int, error) { return f.depth, nil }

type fakeQueue struct {
	tasks []models.Task
}

func (f *fakeQueue) Enqueue(_ context.Context, _ models.TaskClass, t models.Task) error {
	f.tasks = append(f.tasks, t)
	return nil
}

func devIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = "dev-" + string(rune('a'+i%26))
	}

	return ids
}

func TestRunTickStreamsCeilNOverBBatches(t *testing.T) {
	devices := &fakeDevices{ids: devIDs(120)}
	depth := &fakeDepth{depth: 0}
	queue := &fakeQueue{}

	b := New(devices, depth, queue, 1000, logger.New(logger.Config{}))

	n, err := b.RunTick(context.Background(), models.TaskPingBatch, models.ClassMonitoring)
	require.NoError(t, err)

	assert.Equal(t, 3, n) // 120 devices / batch size 50 (101..500 bucket) = 3 batches
	assert.Len(t, queue.tasks, 3)
	assert.Equal(t, 0, queue.tasks[0].BatchIndex)
	assert.Equal(t, 2, queue.tasks[2].BatchIndex)

	total := 0
	for _, task := range queue.tasks {
		total += len(task.DeviceIDs)
	}

	assert.Equal(t, 120, total)
}

func TestRunTickSkipsOnBackpressure(t *testing.T) {
	devices := &fakeDevices{ids: devIDs(10)}
	depth := &fakeDepth{depth: 1000}
	queue := &fakeQueue{}

	b := New(devices, depth, queue, 1000, logger.New(logger.Config{}))

	n, err := b.RunTick(context.Background(), models.TaskPingBatch, models.ClassMonitoring)
	require.NoError(t, err)

	assert.Equal(t, 0, n)
	assert.Empty(t, queue.tasks)
}
