// Command housekeeper runs the Housekeeper process
// (class=maintenance): retention deletes, idle-transaction termination,
// table vacuum, and worker-class heartbeat tracking, each duty wired
// to the task name that drives it.
package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/cmdutil"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/housekeeper"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/tsdb"
)

// heartbeatReader adapts *tsdb.Reader's []tsdb.InstantValue to the
// []housekeeper.InstantValue shape CheckWorkerHealth expects, so the
// housekeeper package doesn't need to import internal/tsdb just for a
// two-field struct.
type heartbeatReader struct {
	reader *tsdb.Reader
}

func (r heartbeatReader) QueryInstant(ctx context.Context, promQL string) ([]housekeeper.InstantValue, error) {
	values, err := r.reader.QueryInstant(ctx, promQL)
	if err != nil {
		return nil, err
	}

	out := make([]housekeeper.InstantValue, len(values))
	for i, v := range values {
		out[i] = housekeeper.InstantValue{Labels: v.Labels, Value: v.Value}
	}

	return out, nil
}

func main() {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(cfg.Logging).Component("housekeeper")

	ctx, cancel := cmdutil.SignalContext(context.Background())
	defer cancel()

	pool, store, err := cmdutil.ConnectStore(ctx, cfg, "housekeeper", log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect state store")
	}
	defer pool.Close()

	queue, err := cmdutil.ConnectQueue(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect task queue")
	}
	defer queue.Close()

	m, metricsShutdown, err := cmdutil.NewMetrics(ctx, "127.0.0.1:9106", log)
	if err != nil {
		log.Fatal().Err(err).Msg("start metrics server")
	}
	defer metricsShutdown(context.Background()) //nolint:errcheck

	writer := cmdutil.NewTSDBWriter(cfg, log)
	reader := cmdutil.NewTSDBReader(cfg, log)

	hk := housekeeper.New(store, store, store, store, store, writer, heartbeatReader{reader: reader}, store,
		func() string { return uuid.NewString() }, log)

	interfaceTTL := time.Duration(cfg.StaleInterfaceTTLDays) * 24 * time.Hour
	pingRetention := time.Duration(cfg.PingRetentionDays) * 24 * time.Hour
	alertRetention := time.Duration(cfg.AlertRetentionDays) * 24 * time.Hour
	idleTxMax := time.Duration(cfg.IdleTxMaxSeconds) * time.Second
	healthInterval := cfg.CheckWorkerHealthPeriod()

	classes := []models.TaskClass{
		models.ClassMonitoring, models.ClassSNMP, models.ClassAlerts, models.ClassMaintenance,
	}

	handle := func(ctx context.Context, t models.Task) error {
		stop := m.TimeBatch(models.ClassMaintenance)
		defer stop()

		now := time.Now()

		switch t.Task {
		case models.TaskCleanupStaleInterfaces:
			return hk.CleanupStaleInterfaces(ctx, now, interfaceTTL, pingRetention)

		case models.TaskCleanupResolvedAlerts:
			return hk.CleanupResolvedAlerts(ctx, now, alertRetention)

		case models.TaskVacuumIdleTx:
			killed, err := hk.VacuumIdleTx(ctx, idleTxMax)
			if err != nil {
				return err
			}

			m.RecordIdleTxKills(killed)

			return nil

		case models.TaskCheckWorkerHealth:
			if err := hk.WriteHeartbeat(ctx, models.ClassMaintenance, now); err != nil {
				log.Warn().Err(err).Msg("heartbeat write failed")
			} else {
				m.RecordHeartbeat(models.ClassMaintenance, now)
			}

			return hk.CheckWorkerHealth(ctx, now, classes, healthInterval)

		default:
			return nil
		}
	}

	if err := cmdutil.RunConsumerLoop(ctx, queue, models.ClassMaintenance, handle, log); err != nil {
		log.Fatal().Err(err).Msg("consumer loop exited")
	}
}
