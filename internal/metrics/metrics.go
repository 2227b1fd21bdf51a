// Package metrics implements the monitoring core's own internal
// self-observability surface: per-process Prometheus collectors for
// queue depth, batch duration, idle-transaction kills, worker
// heartbeats, and alert-engine evaluations, exposed on a loopback-only
// HTTP endpoint. This is operability tooling for the core itself, not
// a presentation surface. Collectors register against an explicit
// per-process registry instead of the default global one, so no worker
// process's collectors leak into another's test harness.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// Metrics bundles the collectors one worker process registers. Pass it
// explicitly into scheduler/batcher/worker/housekeeper constructors
// rather than reaching for package-level globals.
type Metrics struct {
	registry *prometheus.Registry

	QueueLength           *prometheus.GaugeVec
	BatchDurationSeconds  *prometheus.HistogramVec
	DBIdleTxKilledTotal    prometheus.Counter
	WorkerHeartbeatSeconds *prometheus.GaugeVec
	AlertEvaluationsTotal  prometheus.Counter
}

// New builds a Metrics bundle registered against a fresh registry, so
// multiple worker-class processes (or parallel tests) never collide on
// the default global registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		QueueLength: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wardflux_queue_length",
			Help: "Pending task count for a worker-class partition of the task queue.",
		}, []string{"class"}),

		BatchDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wardflux_batch_duration_seconds",
			Help:    "Wall-clock duration of one batch worker run.",
			Buckets: prometheus.DefBuckets,
		}, []string{"class"}),

		DBIdleTxKilledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "wardflux_db_idle_tx_killed_total",
			Help: "Count of backend transactions terminated for sitting idle past IDLE_TX_MAX.",
		}),

		WorkerHeartbeatSeconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wardflux_worker_heartbeat_timestamp_seconds",
			Help: "Unix timestamp of the most recent heartbeat written by a worker class.",
		}, []string{"class"}),

		AlertEvaluationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "wardflux_alert_engine_evaluations_total",
			Help: "Count of completed Alert Engine evaluation ticks.",
		}),
	}
}

// ObserveQueueDepth records class's current queue depth, letting the
// Batcher's QUEUE_HIGH_WATER backpressure decisions show up on
// the same dashboard as the rest of the pipeline.
func (m *Metrics) ObserveQueueDepth(class models.TaskClass, depth int) {
	m.QueueLength.WithLabelValues(string(class)).Set(float64(depth))
}

// TimeBatch returns a func to defer that records the batch's duration
// under class's label.
func (m *Metrics) TimeBatch(class models.TaskClass) func() {
	start := time.Now()

	return func() {
		m.BatchDurationSeconds.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())
	}
}

// RecordIdleTxKills advances the idle-transaction-killed counter by n.
func (m *Metrics) RecordIdleTxKills(n int) {
	if n > 0 {
		m.DBIdleTxKilledTotal.Add(float64(n))
	}
}

// RecordHeartbeat records class's heartbeat timestamp for local
// process-level observability, mirroring the worker_heartbeat TSDB
// sample the Housekeeper also writes.
func (m *Metrics) RecordHeartbeat(class models.TaskClass, at time.Time) {
	m.WorkerHeartbeatSeconds.WithLabelValues(string(class)).Set(float64(at.Unix()))
}

// RecordAlertEvaluation advances the alert-engine evaluation counter.
func (m *Metrics) RecordAlertEvaluation() {
	m.AlertEvaluationsTotal.Inc()
}

// ServeLoopback starts a loopback-only /metrics HTTP server on addr
// (e.g. "127.0.0.1:9109") and returns a func to shut it down. Binding
// to loopback keeps this internal operability surface out of reach of
// anything but the local scrape agent.
func (m *Metrics) ServeLoopback(ctx context.Context, addr string, log logger.Logger) (func(context.Context) error, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{Handler: mux}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped unexpectedly")
		}
	}()

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	return srv.Shutdown, nil
}
