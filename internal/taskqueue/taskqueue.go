// Package taskqueue implements the durable, at-least-once FIFO task
// queue on top of NATS JetStream.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// Config describes how to dial JetStream and size the durable stream
// backing the task queue.
type Config struct {
	URL           string
	Domain        string
	StreamName    string
	AckWait       time.Duration
	MaxDeliver    int
	MaxAckPending int
}

// DefaultConfig returns the stock queue settings.
func DefaultConfig() Config {
	return Config{
		StreamName:    "WARDFLUX_TASKS",
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		MaxAckPending: 1000,
	}
}

// subject renders the JetStream subject for one of the four logical
// queues.
func subject(streamName string, class models.TaskClass) string {
	return fmt.Sprintf("%s.%s", streamName, class)
}

// Queue wraps a JetStream connection, publishing and consuming Tasks
// on the four class-partitioned subjects.
type Queue struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	cfg Config
}

// Connect dials NATS, opens JetStream, and ensures the backing stream
// exists with one subject per task class.
func Connect(ctx context.Context, cfg Config) (*Queue, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, errkind.New(errkind.Network, fmt.Errorf("taskqueue: connect: %w", err))
	}

	var js jetstream.JetStream
	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()
		return nil, errkind.New(errkind.Internal, fmt.Errorf("taskqueue: jetstream: %w", err))
	}

	q := &Queue{nc: nc, js: js, cfg: cfg}

	if err := q.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}

	return q, nil
}

func (q *Queue) ensureStream(ctx context.Context) error {
	subjects := make([]string, 0, 4)
	for _, class := range []models.TaskClass{
		models.ClassMonitoring, models.ClassSNMP, models.ClassAlerts, models.ClassMaintenance,
	} {
		subjects = append(subjects, subject(q.cfg.StreamName, class))
	}

	_, err := q.js.Stream(ctx, q.cfg.StreamName)
	if err == nil {
		return nil
	}

	_, err = q.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:     q.cfg.StreamName,
		Subjects: subjects,
		Storage:  jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		return errkind.New(errkind.Internal, fmt.Errorf("taskqueue: create stream: %w", err))
	}

	return nil
}

// Close drains the underlying NATS connection.
func (q *Queue) Close() {
	if q.nc != nil {
		q.nc.Close()
	}
}

// Enqueue publishes t onto class's subject, enforcing the 64 KiB payload
// bound. Delivery is at-least-once: JetStream persists the message
// before Publish returns.
func (q *Queue) Enqueue(ctx context.Context, class models.TaskClass, t models.Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return errkind.New(errkind.Decode, fmt.Errorf("taskqueue: marshal task: %w", err))
	}

	if len(payload) > models.MaxTaskPayloadBytes {
		return errkind.New(errkind.Decode, fmt.Errorf("taskqueue: task %q payload %d bytes exceeds %d bound",
			t.Task, len(payload), models.MaxTaskPayloadBytes))
	}

	_, err = q.js.Publish(ctx, subject(q.cfg.StreamName, class), payload)
	if err != nil {
		return errkind.New(errkind.Network, fmt.Errorf("taskqueue: publish: %w", err))
	}

	return nil
}

// QueueDepth reports the number of pending (undelivered) messages for
// class's partition, used by the Batcher to detect QUEUE_HIGH_WATER
// backpressure. It attaches to the class's durable consumer,
// creating it if this is the first caller to ask.
func (q *Queue) QueueDepth(ctx context.Context, class models.TaskClass) (int, error) {
	c, err := q.NewConsumer(ctx, class)
	if err != nil {
		return 0, err
	}

	info, err := c.consumer.Info(ctx)
	if err != nil {
		return 0, errkind.New(errkind.Internal, fmt.Errorf("taskqueue: consumer info: %w", err))
	}

	return int(info.NumPending), nil
}

// Consumer pulls Tasks for one worker class off the durable queue.
type Consumer struct {
	consumer jetstream.Consumer
	class    models.TaskClass
}

// NewConsumer creates (or attaches to) the durable pull consumer for
// class, named after the worker class so every process of the same
// class shares one logical cursor over the stream.
func (q *Queue) NewConsumer(ctx context.Context, class models.TaskClass) (*Consumer, error) {
	name := string(class) + "-worker"

	consumer, err := q.js.Consumer(ctx, q.cfg.StreamName, name)
	if err != nil {
		consumer, err = q.js.CreateConsumer(ctx, q.cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       name,
			FilterSubject: subject(q.cfg.StreamName, class),
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       q.cfg.AckWait,
			MaxDeliver:    q.cfg.MaxDeliver,
			MaxAckPending: q.cfg.MaxAckPending,
		})
		if err != nil {
			return nil, errkind.New(errkind.Internal, fmt.Errorf("taskqueue: create consumer %s: %w", name, err))
		}
	}

	return &Consumer{consumer: consumer, class: class}, nil
}

// Delivery is one fetched Task paired with the ack/nak handle its
// processor must resolve.
type Delivery struct {
	Task         models.Task
	NumDelivered uint64
	msg          jetstream.Msg
}

// Ack acknowledges successful processing.
func (d *Delivery) Ack() error {
	if err := d.msg.Ack(); err != nil {
		return errkind.New(errkind.Network, fmt.Errorf("taskqueue: ack: %w", err))
	}

	return nil
}

// Nak requests redelivery, honored up to the consumer's MaxDeliver.
func (d *Delivery) Nak() error {
	if err := d.msg.Nak(); err != nil {
		return errkind.New(errkind.Network, fmt.Errorf("taskqueue: nak: %w", err))
	}

	return nil
}

// Fetch pulls up to maxMessages Tasks, waiting at most maxWait for the
// first one. Malformed payloads are acked immediately (never
// redelivered) and omitted from the returned batch, since no retry can
// fix a decode failure.
func (c *Consumer) Fetch(ctx context.Context, maxMessages int, maxWait time.Duration) ([]*Delivery, error) {
	batch, err := c.consumer.Fetch(maxMessages, jetstream.FetchMaxWait(maxWait))
	if err != nil {
		return nil, errkind.New(errkind.Network, fmt.Errorf("taskqueue: fetch: %w", err))
	}

	var deliveries []*Delivery

	for msg := range batch.Messages() {
		var t models.Task

		if err := json.Unmarshal(msg.Data(), &t); err != nil {
			_ = msg.Ack()
			continue
		}

		meta, err := msg.Metadata()

		numDelivered := uint64(1)
		if err == nil {
			numDelivered = meta.NumDelivered
		}

		deliveries = append(deliveries, &Delivery{Task: t, NumDelivered: numDelivered, msg: msg})
	}

	if err := batch.Error(); err != nil {
		return deliveries, errkind.New(errkind.Network, fmt.Errorf("taskqueue: batch error: %w", err))
	}

	select {
	case <-ctx.Done():
		return deliveries, ctx.Err()
	default:
		return deliveries, nil
	}
}
