// Package scheduler emits due tasks onto the task queue on a fixed
// per-task cadence. It never does the work itself; the
// Batcher and worker processes do. Runs one goroutine per named
// cadence against an injectable Clock.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/config"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// Enqueuer is the minimal surface the Scheduler needs from the task
// queue: fire-and-forget publication of one bookkeeping task per tick.
type Enqueuer interface {
	Enqueue(ctx context.Context, class models.TaskClass, t models.Task) error
}

// Cadence names one scheduled task and how often it fires.
type Cadence struct {
	TaskName string
	Class    models.TaskClass
	Period   time.Duration
}

// Scheduler runs one ticker per Cadence, enqueuing a bare task
// envelope (no device IDs; splitting into batches is the Batcher's
// job) each time it fires.
type Scheduler struct {
	queue    Enqueuer
	clock    Clock
	cadences []Cadence
	log      logger.Logger
}

// New builds a Scheduler from the given cadence table. clock
// may be nil, in which case the real wall clock is used.
func New(queue Enqueuer, clock Clock, log logger.Logger, cadences []Cadence) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}

	return &Scheduler{queue: queue, clock: clock, cadences: cadences, log: log.Component("scheduler")}
}

// StandardCadences builds the stock cadence table from a loaded Config.
func StandardCadences(cfg *config.Config) []Cadence {
	return []Cadence{
		{TaskName: models.TaskPingAll, Class: models.ClassMonitoring, Period: cfg.PingPeriod()},
		{TaskName: models.TaskSNMPPollAll, Class: models.ClassSNMP, Period: cfg.SNMPPeriod()},
		{TaskName: models.TaskEvaluateAlertRules, Class: models.ClassAlerts, Period: cfg.EvaluateAlertsPeriod()},
		{TaskName: models.TaskDiscoverAllInterfaces, Class: models.ClassMonitoring, Period: cfg.DiscoverInterfacesPeriod()},
		{TaskName: models.TaskCleanupStaleInterfaces, Class: models.ClassMaintenance, Period: cfg.CleanupStaleInterfacesPeriod()},
		{TaskName: models.TaskCleanupResolvedAlerts, Class: models.ClassMaintenance, Period: cfg.CleanupResolvedAlertsPeriod()},
		{TaskName: models.TaskCheckWorkerHealth, Class: models.ClassMaintenance, Period: cfg.CheckWorkerHealthPeriod()},
		{TaskName: models.TaskVacuumIdleTx, Class: models.ClassMaintenance, Period: cfg.VacuumIdleTxPeriod()},
	}
}

// Run starts one goroutine per cadence and blocks until ctx is
// cancelled. Missed ticks during a restart are never replayed: the
// scheduler always resumes from "now" and the next tick supersedes.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, c := range s.cadences {
		wg.Add(1)

		go func(c Cadence) {
			defer wg.Done()
			s.runCadence(ctx, c)
		}(c)
	}

	wg.Wait()
}

func (s *Scheduler) runCadence(ctx context.Context, c Cadence) {
	ticker := s.clock.Ticker(c.Period)
	defer ticker.Stop()

	s.log.Info().Str("task", c.TaskName).Dur("period", c.Period).Msg("scheduler cadence started")

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.Chan():
			task := models.Task{Task: c.TaskName, EnqueuedAt: now}

			if err := s.queue.Enqueue(ctx, c.Class, task); err != nil {
				s.log.Error().Err(err).Str("task", c.TaskName).Msg("failed to enqueue scheduled task")
			}
		}
	}
}
