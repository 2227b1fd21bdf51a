package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/config"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

type fakeTicker struct {
	c chan time.Time
}

func (f *fakeTicker) Chan() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()                  {}

type fakeClock struct {
	mu      sync.Mutex
	tickers map[time.Duration]*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{tickers: make(map[time.Duration]*fakeTicker)}
}

func (f *fakeClock) Now() time.Time { return time.Unix(0, 0) }

func (f *fakeClock) Ticker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTicker{c: make(chan time.Time, 1)}
	f.tickers[d] = t

	return t
}

func (f *fakeClock) fire(d time.Duration) {
	f.mu.Lock()
	t := f.tickers[d]
	f.mu.Unlock()

	if t != nil {
		t.c <- time.Unix(1, 0)
	}
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []models.Task
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, _ models.TaskClass, t models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tasks = append(f.tasks, t)

	return nil
}

func (f *fakeEnqueuer) snapshot() []models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Task, len(f.tasks))
	copy(out, f.tasks)

	return out
}

func TestSchedulerEnqueuesOnCadenceTick(t *testing.T) {
	clock := newFakeClock()
	queue := &fakeEnqueuer{}

	s := New(queue, clock, logger.New(logger.Config{}), []Cadence{
		{TaskName: models.TaskPingAll, Class: models.ClassMonitoring, Period: 30 * time.Second},
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		clock.mu.Lock()
		_, ok := clock.tickers[30*time.Second]
		clock.mu.Unlock()

		return ok
	}, time.Second, time.Millisecond)

	clock.fire(30 * time.Second)

	require.Eventually(t, func() bool {
		return len(queue.snapshot()) == 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, models.TaskPingAll, queue.snapshot()[0].Task)

	cancel()
	<-done
}

func TestStandardCadencesCoversSpecTable(t *testing.T) {
	cfg := config.Default()

	cadences := StandardCadences(cfg)

	names := make(map[string]time.Duration, len(cadences))
	for _, c := range cadences {
		names[c.TaskName] = c.Period
	}

	assert.Equal(t, 30*time.Second, names[models.TaskPingAll])
	assert.Equal(t, 60*time.Second, names[models.TaskSNMPPollAll])
	assert.Equal(t, 30*time.Second, names[models.TaskEvaluateAlertRules])
	assert.Equal(t, time.Hour, names[models.TaskDiscoverAllInterfaces])
	assert.Equal(t, 24*time.Hour, names[models.TaskCleanupStaleInterfaces])
	assert.Equal(t, 24*time.Hour, names[models.TaskCleanupResolvedAlerts])
	assert.Equal(t, 5*time.Minute, names[models.TaskCheckWorkerHealth])
	assert.Equal(t, 5*time.Minute, names[models.TaskVacuumIdleTx])
}
