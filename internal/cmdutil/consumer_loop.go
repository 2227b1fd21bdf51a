package cmdutil

import (
	"context"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/taskqueue"
)

// SampleWriter is the narrow TSDB write surface WriteHeartbeat needs.
type SampleWriter interface {
	Write(ctx context.Context, samples []models.Sample) error
}

// WriteHeartbeat records one worker_heartbeat sample for class,
// letting each worker-class process self-report liveness independent
// of any other class's process.
func WriteHeartbeat(ctx context.Context, writer SampleWriter, class models.TaskClass, now time.Time) error {
	sample := models.Sample{
		Metric:    models.MetricWorkerHeartbeat,
		Labels:    map[string]string{"worker_class": string(class)},
		Value:     float64(now.Unix()),
		Timestamp: now,
	}

	return writer.Write(ctx, []models.Sample{sample})
}

// TaskHandler processes one delivered Task, returning an error to
// request redelivery (Nak) rather than an Ack.
type TaskHandler func(ctx context.Context, t models.Task) error

// RunConsumerLoop pulls batches of Tasks off class's durable consumer
// until ctx is cancelled, dispatching each to handle. Deliveries whose
// handler errors are Nak'd for redelivery (bounded by the consumer's
// MaxDeliver); everything else is Ack'd.
func RunConsumerLoop(ctx context.Context, queue *taskqueue.Queue, class models.TaskClass, handle TaskHandler, log logger.Logger) error {
	consumer, err := queue.NewConsumer(ctx, class)
	if err != nil {
		return err
	}

	const (
		fetchBatch = 10
		fetchWait  = 5 * time.Second
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		deliveries, err := consumer.Fetch(ctx, fetchBatch, fetchWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			log.Warn().Err(err).Msg("consumer fetch failed, retrying")

			continue
		}

		for _, d := range deliveries {
			if err := handle(ctx, d.Task); err != nil {
				log.Warn().Str("task", d.Task.Task).Err(err).Msg("task handler failed, requesting redelivery")

				if nakErr := d.Nak(); nakErr != nil {
					log.Error().Err(nakErr).Msg("nak failed")
				}

				continue
			}

			if ackErr := d.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("ack failed")
			}
		}
	}
}
