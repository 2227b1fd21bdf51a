// Command icmpworker runs the ICMP Batch Worker process
// (class=monitoring). It shares the monitoring partition's durable
// consumer with cmd/discoveryworker (four worker classes cover six
// processes): a task this process doesn't own is Nak'd
// immediately so the sibling process picks it up on redelivery.
package main

import (
	"context"
	"errors"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/batcher"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/cmdutil"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/icmpprobe"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/stateengine"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/workers"
)

func main() {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(cfg.Logging).Component("icmpworker")

	ctx, cancel := cmdutil.SignalContext(context.Background())
	defer cancel()

	pool, store, err := cmdutil.ConnectStore(ctx, cfg, "icmpworker", log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect state store")
	}
	defer pool.Close()

	queue, err := cmdutil.ConnectQueue(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect task queue")
	}
	defer queue.Close()

	m, metricsShutdown, err := cmdutil.NewMetrics(ctx, "127.0.0.1:9102", log)
	if err != nil {
		log.Fatal().Err(err).Msg("start metrics server")
	}
	defer metricsShutdown(context.Background()) //nolint:errcheck

	prober := icmpprobe.New(icmpprobe.Config{
		Count:    cfg.ICMPCount,
		Timeout:  time.Duration(cfg.ICMPTimeoutMS) * time.Millisecond,
		Interval: time.Duration(cfg.ICMPIntervalMS) * time.Millisecond,
	}, log)

	writer := cmdutil.NewTSDBWriter(cfg, log)

	stateCfg := stateengine.Config{
		FlapWindow:       cfg.FlapWindow(),
		FlapThreshold:    cfg.FlapThreshold,
		FlapThresholdISP: cfg.FlapThresholdISP,
		FlapClearWindow:  cfg.FlapClearWindow(),
	}

	worker := workers.NewICMPWorker(store, store, prober, writer, cfg.ICMPFanout, stateCfg, log)
	worker.PingResults = store
	worker.Regions = store

	if cfg.EmitDeviceRecovered {
		worker.RecoveryEvents = store
	}

	b := batcher.New(store, queue, queue, cfg.QueueHighWater, log)

	batchTimeout := cfg.BatchTimeout(cfg.PingPeriod())

	handle := func(ctx context.Context, t models.Task) error {
		switch t.Task {
		case models.TaskPingAll:
			stop := m.TimeBatch(models.ClassMonitoring)
			defer stop()

			now := time.Now()
			if err := cmdutil.WriteHeartbeat(ctx, writer, models.ClassMonitoring, now); err != nil {
				log.Warn().Err(err).Msg("heartbeat write failed")
			} else {
				m.RecordHeartbeat(models.ClassMonitoring, now)
			}

			_, err := b.RunTick(ctx, models.TaskPingBatch, models.ClassMonitoring)

			return err

		case models.TaskPingBatch:
			report, err := worker.RunBatch(ctx, t.DeviceIDs, batchTimeout)
			if err != nil {
				return err
			}

			if report.TimedOut {
				log.Warn().Int("requested", report.Requested).Int("probed", report.Probed).
					Msg("ping batch hit its timeout before completing")
			}

			return nil

		default:
			// Not ours: TaskDiscoverAllInterfaces/TaskDiscoverBatch belong
			// to cmd/discoveryworker, sharing this partition's consumer.
			return errNotMine
		}
	}

	if err := cmdutil.RunConsumerLoop(ctx, queue, models.ClassMonitoring, handle, log); err != nil {
		log.Fatal().Err(err).Msg("consumer loop exited")
	}
}

var errNotMine = errors.New("task belongs to another monitoring-class worker")
