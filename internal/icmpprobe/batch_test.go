package icmpprobe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	mu         sync.Mutex
	inFlight   int32
	maxInFlight int32
	fail       map[string]bool
}

func (f *fakeProber) Probe(_ context.Context, target string) (Result, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	if cur > f.maxInFlight {
		f.maxInFlight = cur
	}
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	if f.fail[target] {
		return Result{Target: target, Reachable: false, LossRatio: 1}, nil
	}

	rtt := 1.5

	return Result{Target: target, Reachable: true, AvgRTTMs: &rtt, LossRatio: 0}, nil
}

func TestProbeBatchBoundsFanout(t *testing.T) {
	targets := make([]Target, 0, 40)
	for i := 0; i < 40; i++ {
		targets = append(targets, Target{DeviceID: fmt.Sprintf("dev-%d", i), Address: fmt.Sprintf("10.0.0.%d", i)})
	}

	fp := &fakeProber{}
	results := ProbeBatch(context.Background(), fp, targets, 5)

	require.Len(t, results, 40)
	assert.LessOrEqual(t, fp.maxInFlight, int32(5))

	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.True(t, r.Result.Reachable)
	}
}

func TestProbeBatchContainsPerTargetFailure(t *testing.T) {
	targets := []Target{
		{DeviceID: "dev-up", Address: "10.0.0.1"},
		{DeviceID: "dev-down", Address: "10.0.0.2"},
	}

	fp := &fakeProber{fail: map[string]bool{"10.0.0.2": true}}
	results := ProbeBatch(context.Background(), fp, targets, 10)

	require.Len(t, results, 2)
	assert.True(t, results[0].Result.Reachable)
	assert.False(t, results[1].Result.Reachable)
	assert.Equal(t, 1.0, results[1].Result.LossRatio)
}

func TestResultAggregation(t *testing.T) {
	p := &Prober{cfg: Config{Count: 3}}

	full := p.result("10.0.0.1", 3, 3, 300*time.Millisecond)
	assert.True(t, full.Reachable)
	require.NotNil(t, full.AvgRTTMs)
	assert.InDelta(t, 100.0, *full.AvgRTTMs, 0.001)
	assert.Equal(t, 0.0, full.LossRatio)

	none := p.result("10.0.0.2", 0, 3, 0)
	assert.False(t, none.Reachable)
	assert.Nil(t, none.AvgRTTMs)
	assert.Equal(t, 1.0, none.LossRatio)

	partial := p.result("10.0.0.3", 1, 3, 50*time.Millisecond)
	assert.True(t, partial.Reachable)
	assert.InDelta(t, 2.0/3.0, partial.LossRatio, 0.001)
}
