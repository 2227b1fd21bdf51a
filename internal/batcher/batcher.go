// Package batcher implements the auto-scaling batcher:
// on a ping-all/poll-all tick it reads the enabled device count,
// chooses a batch size from the N->B table, and streams
// ceil(N/B) batches onto the task queue, backing off when the
// relevant partition is backpressured.
package batcher

import (
	"context"
	"fmt"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// DeviceIDSource is the minimal State Store surface the Batcher needs:
// the enabled fleet size, and the enabled device IDs to split into
// batches.
type DeviceIDSource interface {
	CountEnabledDevices(ctx context.Context) (int, error)
	EnabledDeviceIDs(ctx context.Context) ([]string, error)
}

// QueueDepthSource reports the current backlog for a class's
// partition, so the Batcher can detect QUEUE_HIGH_WATER backpressure.
type QueueDepthSource interface {
	QueueDepth(ctx context.Context, class models.TaskClass) (int, error)
}

// Enqueuer is the subset of taskqueue.Queue the Batcher needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, class models.TaskClass, t models.Task) error
}

// BatchSize chooses the batch size B from the fleet size N.
func BatchSize(n int) int {
	switch {
	case n <= 100:
		return 25
	case n <= 500:
		return 50
	case n <= 1000:
		return 100
	case n <= 5000:
		return 200
	default:
		return 500
	}
}

// Batcher streams batched device-ID tasks for one task class.
type Batcher struct {
	devices   DeviceIDSource
	depth     QueueDepthSource
	queue     Enqueuer
	highWater int
	log       logger.Logger
}

// New builds a Batcher. highWater is QUEUE_HIGH_WATER.
func New(devices DeviceIDSource, depth QueueDepthSource, queue Enqueuer, highWater int, log logger.Logger) *Batcher {
	return &Batcher{devices: devices, depth: depth, queue: queue, highWater: highWater, log: log.Component("batcher")}
}

// RunTick performs one ping-all/poll-all tick for taskName/class:
// reads the fleet size, checks backpressure, and streams batches. It
// returns the number of batches enqueued (0 when the tick was skipped
// for backpressure).
func (b *Batcher) RunTick(ctx context.Context, taskName string, class models.TaskClass) (int, error) {
	depth, err := b.depth.QueueDepth(ctx, class)
	if err != nil {
		return 0, errkind.New(errkind.Internal, fmt.Errorf("batcher: queue depth: %w", err))
	}

	if depth >= b.highWater {
		b.log.Warn().Str("task", taskName).Int("queue_depth", depth).Int("high_water", b.highWater).
			Msg("skipping batcher tick: backpressure")

		return 0, nil
	}

	deviceIDs, err := b.devices.EnabledDeviceIDs(ctx)
	if err != nil {
		return 0, errkind.New(errkind.Internal, fmt.Errorf("batcher: enabled device ids: %w", err))
	}

	batchSize := BatchSize(len(deviceIDs))

	batches := chunk(deviceIDs, batchSize)

	for i, ids := range batches {
		task := models.Task{
			Task:       taskName,
			BatchIndex: i,
			DeviceIDs:  ids,
			EnqueuedAt: time.Now(),
		}

		if err := b.queue.Enqueue(ctx, class, task); err != nil {
			return i, errkind.New(errkind.Internal, fmt.Errorf("batcher: enqueue batch %d: %w", i, err))
		}
	}

	b.log.Info().Str("task", taskName).Int("fleet_size", len(deviceIDs)).
		Int("batch_size", batchSize).Int("batches", len(batches)).Msg("batcher tick complete")

	return len(batches), nil
}

func chunk(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}

	var out [][]string

	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}

		out = append(out, ids[start:end])
	}

	return out
}
