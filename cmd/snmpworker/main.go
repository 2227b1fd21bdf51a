// Command snmpworker runs the SNMP Batch Worker process (class=snmp).
// Unlike the monitoring partition, this class is not shared with any
// other process.
package main

import (
	"context"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/batcher"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/cmdutil"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/snmpclient"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/workers"
)

func main() {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(cfg.Logging).Component("snmpworker")

	ctx, cancel := cmdutil.SignalContext(context.Background())
	defer cancel()

	pool, store, err := cmdutil.ConnectStore(ctx, cfg, "snmpworker", log)
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

	m, metricsShutdown, err := cmdutil.NewMetrics(ctx, "127.0.0.1:9103", log)
	if err != nil {
		log.Fatal().Err(err).Msg("start metrics server")
	}
	defer metricsShutdown(context.Background()) //nolint:errcheck

	writer := cmdutil.NewTSDBWriter(cfg, log)

	sessionCfg := snmpclient.Config{
		Timeout:        time.Duration(cfg.SNMPTimeoutSeconds) * time.Second,
		Retries:        cfg.SNMPRetries,
		MaxRepetitions: uint32(cfg.SNMPMaxRepetitions),
	}

	newSession := func(target string, cred *models.SNMPCredential) (workers.SNMPSession, error) {
		return snmpclient.New(target, cred, sessionCfg)
	}

	worker := workers.NewSNMPWorker(store, store, store, v, store, writer, newSession, cfg.SNMPFanout, log)
	worker.Regions = store

	b := batcher.New(store, queue, queue, cfg.QueueHighWater, log)

	batchTimeout := cfg.BatchTimeout(cfg.SNMPPeriod())

	handle := func(ctx context.Context, t models.Task) error {
		switch t.Task {
		case models.TaskSNMPPollAll:
			stop := m.TimeBatch(models.ClassSNMP)
			defer stop()

			now := time.Now()
			if err := cmdutil.WriteHeartbeat(ctx, writer, models.ClassSNMP, now); err != nil {
				log.Warn().Err(err).Msg("heartbeat write failed")
			} else {
				m.RecordHeartbeat(models.ClassSNMP, now)
			}

			_, err := b.RunTick(ctx, models.TaskPollBatch, models.ClassSNMP)

			return err

		case models.TaskPollBatch:
			report, err := worker.RunBatch(ctx, t.DeviceIDs, batchTimeout)
			if err != nil {
				return err
			}

			if report.TimedOut {
				log.Warn().Int("requested", report.Requested).Int("probed", report.Probed).
					Msg("snmp poll batch hit its timeout before completing")
			}

			return nil

		default:
			return nil
		}
	}

	if err := cmdutil.RunConsumerLoop(ctx, queue, models.ClassSNMP, handle, log); err != nil {
		log.Fatal().Err(err).Msg("consumer loop exited")
	}
}
