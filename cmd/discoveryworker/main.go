// Command discoveryworker runs the Discovery Worker process
// (class=monitoring). It shares the monitoring partition's
// durable consumer with cmd/icmpworker: a task this process doesn't
// own is Nak'd immediately so the sibling process picks it up on
// redelivery.
package main

import (
	"context"
	"errors"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/batcher"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/cmdutil"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/discovery"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/snmpclient"
)

func main() {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(cfg.Logging).Component("discoveryworker")

	ctx, cancel := cmdutil.SignalContext(context.Background())
	defer cancel()

	pool, store, err := cmdutil.ConnectStore(ctx, cfg, "discoveryworker", log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect state store")
	}
	defer pool.Close()

	queue, err := cmdutil.ConnectQueue(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect task queue")
	}
	defer queue.Close()

	v, err := cmdutil.NewVault(cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("build credential vault")
	}

	m, metricsShutdown, err := cmdutil.NewMetrics(ctx, "127.0.0.1:9104", log)
	if err != nil {
		log.Fatal().Err(err).Msg("start metrics server")
	}
	defer metricsShutdown(context.Background()) //nolint:errcheck

	sessionCfg := snmpclient.Config{
		Timeout:        time.Duration(cfg.SNMPTimeoutSeconds) * time.Second,
		Retries:        cfg.SNMPRetries,
		MaxRepetitions: uint32(cfg.SNMPMaxRepetitions),
	}

	newSession := func(target string, cred *models.SNMPCredential) (discovery.WalkSession, error) {
		return snmpclient.New(target, cred, sessionCfg)
	}

	worker := discovery.NewWorker(store, v, store, store, newSession, cfg.SNMPFanout, log)

	b := batcher.New(store, queue, queue, cfg.QueueHighWater, log)

	batchTimeout := cfg.BatchTimeout(cfg.DiscoverInterfacesPeriod())

	handle := func(ctx context.Context, t models.Task) error {
		switch t.Task {
		case models.TaskDiscoverAllInterfaces:
			stop := m.TimeBatch(models.ClassMonitoring)
			defer stop()

			_, err := b.RunTick(ctx, models.TaskDiscoverBatch, models.ClassMonitoring)

			return err

		case models.TaskDiscoverBatch:
			report, err := worker.RunBatch(ctx, t.DeviceIDs, batchTimeout)
			if err != nil {
				return err
			}

			if report.TimedOut {
				log.Warn().Int("requested", report.Requested).Int("completed", report.Completed).
					Msg("discovery batch hit its timeout before completing")
			}

			return nil

		default:
			// Not ours: TaskPingAll/TaskPingBatch belong to
			// cmd/icmpworker, sharing this partition's consumer.
			return errNotMine
		}
	}

	if err := cmdutil.RunConsumerLoop(ctx, queue, models.ClassMonitoring, handle, log); err != nil {
		log.Fatal().Err(err).Msg("consumer loop exited")
	}
}

var errNotMine = errors.New("task belongs to another monitoring-class worker")
