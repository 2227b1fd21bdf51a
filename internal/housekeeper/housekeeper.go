// Package housekeeper implements the core's periodic maintenance:
// retention deletes for stale interfaces, resolved alerts,
// and ping results; idle-transaction termination; table
// vacuum/analyze; and worker-class heartbeat tracking feeding the
// WorkerMissing alert.
package housekeeper

import (
	"context"
	"fmt"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/errkind"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// builtinIDWorkerMissing is the synthetic rule id for the
// process-level WorkerMissing alert, mirroring the
// internal/alerts builtin-id convention.
const builtinIDWorkerMissing = "builtin:worker-missing"

// workerDeviceID namespaces WorkerMissing's AlertHistory rows under a
// synthetic device id, since the alert is about a worker class rather
// than a monitored device.
func workerDeviceID(class models.TaskClass) string { return "worker:" + string(class) }

// InterfaceRetention prunes Interface rows discovery stops seeing.
type InterfaceRetention interface {
	DeleteStaleInterfaces(ctx context.Context, olderThan time.Time) (int, error)
}

// AlertRetention prunes resolved AlertHistory rows.
type AlertRetention interface {
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// PingResultRetention prunes the optional PingResult diagnostic rows.
type PingResultRetention interface {
	DeletePingResultsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// IdleTxKiller terminates backend transactions that have sat idle too
// long, a connection-pool hygiene duty independent of any one worker.
type IdleTxKiller interface {
	KillIdleTransactions(ctx context.Context, maxIdle time.Duration) (int, error)
}

// TableVacuumer runs VACUUM/ANALYZE against the tables that see heavy
// churn from retention deletes.
type TableVacuumer interface {
	VacuumTables(ctx context.Context) error
}

// SampleWriter is the narrow TSDB write surface the heartbeat writer needs.
type SampleWriter interface {
	Write(ctx context.Context, samples []models.Sample) error
}

// HeartbeatReader is the narrow TSDB read surface CheckWorkerHealth
// needs to find each class's most recent heartbeat.
type HeartbeatReader interface {
	QueryInstant(ctx context.Context, promQL string) ([]InstantValue, error)
}

// InstantValue mirrors tsdb.InstantValue so this package doesn't need
// to import internal/tsdb just for the struct shape.
type InstantValue struct {
	Labels map[string]string
	Value  float64
}

// WorkerAlertStore is the narrow alert-history surface CheckWorkerHealth
// needs to open/resolve the WorkerMissing alert.
type WorkerAlertStore interface {
	GetOpenAlert(ctx context.Context, deviceID, ruleName string) (*models.AlertHistory, error)
	CreateAlert(ctx context.Context, alert *models.AlertHistory) error
	ResolveAlert(ctx context.Context, alertID string, resolvedAt time.Time, reason string) error
}

// Housekeeper bundles the periodic maintenance duties. Each
// field is optional: a nil dependency makes the corresponding method a
// no-op, so a deployment can wire only the pieces it needs (e.g. a
// TSDB-less test harness skipping heartbeat tracking).
type Housekeeper struct {
	interfaces  InterfaceRetention
	alerts      AlertRetention
	pingResults PingResultRetention
	idleTx      IdleTxKiller
	vacuum      TableVacuumer
	heartbeats  SampleWriter
	reader      HeartbeatReader
	alertStore  WorkerAlertStore
	newID       func() string
	log         logger.Logger
}

// New constructs a Housekeeper. Any dependency may be nil; the
// corresponding method becomes a no-op.
func New(interfaces InterfaceRetention, alerts AlertRetention, pingResults PingResultRetention,
	idleTx IdleTxKiller, vacuum TableVacuumer, heartbeats SampleWriter, reader HeartbeatReader,
	alertStore WorkerAlertStore, newID func() string, log logger.Logger) *Housekeeper {
	return &Housekeeper{
		interfaces: interfaces, alerts: alerts, pingResults: pingResults,
		idleTx: idleTx, vacuum: vacuum, heartbeats: heartbeats, reader: reader,
		alertStore: alertStore, newID: newID, log: log.Component("housekeeper"),
	}
}

// CleanupStaleInterfaces deletes Interface rows last seen before
// now-ttl, then prunes PingResult rows on the same tick (neither
// retention sweep has its own scheduler cadence, so both ride the
// cleanup-stale-interfaces task).
func (h *Housekeeper) CleanupStaleInterfaces(ctx context.Context, now time.Time, interfaceTTL, pingRetention time.Duration) error {
	if h.interfaces != nil {
		removed, err := h.interfaces.DeleteStaleInterfaces(ctx, now.Add(-interfaceTTL))
		if err != nil {
			return errkind.New(errkind.Internal, fmt.Errorf("housekeeper: delete stale interfaces: %w", err))
		}

		h.log.Info().Int("removed", removed).Msg("stale interfaces pruned")

		if removed > 0 && h.vacuum != nil {
			if err := h.vacuum.VacuumTables(ctx); err != nil {
				h.log.Warn().Err(err).Msg("vacuum after stale interface prune failed")
			}
		}
	}

	if h.pingResults != nil {
		removed, err := h.pingResults.DeletePingResultsBefore(ctx, now.Add(-pingRetention))
		if err != nil {
			return errkind.New(errkind.Internal, fmt.Errorf("housekeeper: delete stale ping results: %w", err))
		}

		h.log.Info().Int("removed", removed).Msg("stale ping results pruned")
	}

	return nil
}

// CleanupResolvedAlerts deletes resolved AlertHistory rows older than
// now-retention (default 7 days).
func (h *Housekeeper) CleanupResolvedAlerts(ctx context.Context, now time.Time, retention time.Duration) error {
	if h.alerts == nil {
		return nil
	}

	removed, err := h.alerts.DeleteResolvedBefore(ctx, now.Add(-retention))
	if err != nil {
		return errkind.New(errkind.Internal, fmt.Errorf("housekeeper: delete resolved alerts: %w", err))
	}

	h.log.Info().Int("removed", removed).Msg("resolved alerts pruned")

	if removed > 0 && h.vacuum != nil {
		if err := h.vacuum.VacuumTables(ctx); err != nil {
			h.log.Warn().Err(err).Msg("vacuum after resolved alert prune failed")
		}
	}

	return nil
}

// VacuumIdleTx terminates any backend transaction idle longer than
// maxIdle, logging the kill count as the metric of record.
func (h *Housekeeper) VacuumIdleTx(ctx context.Context, maxIdle time.Duration) (int, error) {
	if h.idleTx == nil {
		return 0, nil
	}

	killed, err := h.idleTx.KillIdleTransactions(ctx, maxIdle)
	if err != nil {
		return 0, errkind.New(errkind.Internal, fmt.Errorf("housekeeper: kill idle transactions: %w", err))
	}

	if killed > 0 {
		h.log.Warn().Int("killed", killed).Msg("idle transactions terminated")
	}

	return killed, nil
}

// WriteHeartbeat records one worker_heartbeat sample for class, the
// value being the heartbeat's own timestamp in Unix seconds so
// CheckWorkerHealth can measure staleness without a range query.
func (h *Housekeeper) WriteHeartbeat(ctx context.Context, class models.TaskClass, now time.Time) error {
	if h.heartbeats == nil {
		return nil
	}

	sample := models.Sample{
		Metric:    models.MetricWorkerHeartbeat,
		Labels:    map[string]string{"worker_class": string(class)},
		Value:     float64(now.Unix()),
		Timestamp: now,
	}

	if err := h.heartbeats.Write(ctx, []models.Sample{sample}); err != nil {
		return errkind.New(errkind.Internal, fmt.Errorf("housekeeper: write heartbeat: %w", err))
	}

	return nil
}

// CheckWorkerHealth compares each class's most recent heartbeat against
// now, raising (or clearing) a WorkerMissing alert when the gap exceeds
// 2x the scheduler's heartbeat interval.
func (h *Housekeeper) CheckWorkerHealth(ctx context.Context, now time.Time, classes []models.TaskClass, interval time.Duration) error {
	if h.reader == nil || h.alertStore == nil {
		return nil
	}

	staleAfter := 2 * interval

	for _, class := range classes {
		missing, err := h.classIsMissing(ctx, class, now, staleAfter)
		if err != nil {
			h.log.Error().Str("worker_class", string(class)).Err(err).Msg("worker health check failed")
			continue
		}

		if err := h.reconcileWorkerMissingAlert(ctx, class, now, missing); err != nil {
			h.log.Error().Str("worker_class", string(class)).Err(err).Msg("failed to reconcile worker-missing alert")
		}
	}

	return nil
}

func (h *Housekeeper) classIsMissing(ctx context.Context, class models.TaskClass, now time.Time, staleAfter time.Duration) (bool, error) {
	query := fmt.Sprintf(`worker_heartbeat{worker_class=%q}`, string(class))

	values, err := h.reader.QueryInstant(ctx, query)
	if err != nil {
		return false, err
	}

	if len(values) == 0 {
		return true, nil
	}

	last := time.Unix(int64(values[0].Value), 0)

	return now.Sub(last) > staleAfter, nil
}

func (h *Housekeeper) reconcileWorkerMissingAlert(ctx context.Context, class models.TaskClass, now time.Time, missing bool) error {
	deviceID := workerDeviceID(class)

	open, err := h.alertStore.GetOpenAlert(ctx, deviceID, models.RuleWorkerMissing)
	if err != nil {
		return err
	}

	switch {
	case missing && open == nil:
		alert := &models.AlertHistory{
			ID: h.newID(), RuleID: builtinIDWorkerMissing, RuleName: models.RuleWorkerMissing,
			DeviceID: deviceID, Severity: models.SeverityCritical, TriggeredAt: now,
			Context: map[string]string{"worker_class": string(class)},
		}

		return h.alertStore.CreateAlert(ctx, alert)
	case !missing && open != nil:
		return h.alertStore.ResolveAlert(ctx, open.ID, now, "heartbeat-resumed")
	default:
		return nil
	}
}
