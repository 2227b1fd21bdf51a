// Command scheduler runs the Scheduler process: one
// goroutine per cadence, enqueuing the bare bookkeeping/trigger task
// for every entry in the standard cadence table. It is also the one
// process responsible for applying relational-store migrations on
// startup, so every other cmd/* process can assume the schema
// is current by the time it connects.
package main

import (
	"context"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/cmdutil"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/scheduler"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/statestore"
)

func main() {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(cfg.Logging).Component("scheduler")

	ctx, cancel := cmdutil.SignalContext(context.Background())
	defer cancel()

	pool, _, err := cmdutil.ConnectStore(ctx, cfg, "scheduler", log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect state store")
	}
	defer pool.Close()

	if err := statestore.RunMigrations(ctx, pool, log); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	queue, err := cmdutil.ConnectQueue(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect task queue")
	}
	defer queue.Close()

	_, metricsShutdown, err := cmdutil.NewMetrics(ctx, "127.0.0.1:9101", log)
	if err != nil {
		log.Fatal().Err(err).Msg("start metrics server")
	}
	defer metricsShutdown(context.Background()) //nolint:errcheck

	sched := scheduler.New(queue, nil, log, scheduler.StandardCadences(cfg))
	sched.Run(ctx)
}
