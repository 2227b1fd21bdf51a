// Command alertengine runs the Alert Engine process (class=alerts):
// on each evaluate-alert-rules tick it evaluates every enabled device
// against every enabled rule plus the two state-machine-driven
// builtins.
package main

import (
	"context"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/alerts"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/cmdutil"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

func main() {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(cfg.Logging).Component("alertengine")

	ctx, cancel := cmdutil.SignalContext(context.Background())
	defer cancel()

	pool, store, err := cmdutil.ConnectStore(ctx, cfg, "alertengine", log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect state store")
	}
	defer pool.Close()

	queue, err := cmdutil.ConnectQueue(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect task queue")
	}
	defer queue.Close()

	m, metricsShutdown, err := cmdutil.NewMetrics(ctx, "127.0.0.1:9105", log)
	if err != nil {
		log.Fatal().Err(err).Msg("start metrics server")
	}
	defer metricsShutdown(context.Background()) //nolint:errcheck

	reader := cmdutil.NewTSDBReader(cfg, log)
	writer := cmdutil.NewTSDBWriter(cfg, log)
	aggregates := alerts.NewTSDBAggregates(reader, log)

	engine := alerts.NewEngine(store, store, store, aggregates, log)

	handle := func(ctx context.Context, t models.Task) error {
		if t.Task != models.TaskEvaluateAlertRules {
			return nil
		}

		stop := m.TimeBatch(models.ClassAlerts)
		defer stop()

		now := time.Now()
		if err := cmdutil.WriteHeartbeat(ctx, writer, models.ClassAlerts, now); err != nil {
			log.Warn().Err(err).Msg("heartbeat write failed")
		} else {
			m.RecordHeartbeat(models.ClassAlerts, now)
		}

		report, err := engine.RunTick(ctx, now)
		if err != nil {
			return err
		}

		m.RecordAlertEvaluation()

		log.Info().Int("devices_evaluated", report.DevicesEvaluated).
			Int("alerts_created", report.AlertsCreated).Int("alerts_resolved", report.AlertsResolved).
			Msg("alert evaluation tick complete")

		return nil
	}

	if err := cmdutil.RunConsumerLoop(ctx, queue, models.ClassAlerts, handle, log); err != nil {
		log.Fatal().Err(err).Msg("consumer loop exited")
	}
}
