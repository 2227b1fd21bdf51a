package stateengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

func testConfig() Config {
	return Config{
		FlapWindow:       5 * time.Minute,
		FlapThreshold:    3,
		FlapThresholdISP: 2,
		FlapClearWindow:  15 * time.Minute,
	}
}

func TestUpToDownTransitionSetsDownSince(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &models.Device{LastSeen: base}

	res := Apply(testConfig(), d, false, base.Add(time.Second))

	require.True(t, res.TransitionedDown)
	require.False(t, d.IsUp())
	assert.NotNil(t, d.DownSince)
	assert.Len(t, d.StatusChangeTimes, 1)
}

func TestDownToUpTransitionClearsDownSince(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	downSince := base
	d := &models.Device{DownSince: &downSince, StatusChangeTimes: []time.Time{base}}

	res := Apply(testConfig(), d, true, base.Add(time.Minute))

	require.True(t, res.TransitionedUp)
	assert.Nil(t, d.DownSince)
	assert.True(t, d.IsUp())
	assert.Len(t, d.StatusChangeTimes, 2)
}

func TestUpToUpIsNoopAndUpdatesLastSeen(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &models.Device{LastSeen: base}

	res := Apply(testConfig(), d, true, base.Add(time.Minute))

	assert.False(t, res.TransitionedDown)
	assert.False(t, res.TransitionedUp)
	assert.Equal(t, base.Add(time.Minute), d.LastSeen)
}

func TestDownToDownIsNoop(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	downSince := base
	d := &models.Device{DownSince: &downSince}

	res := Apply(testConfig(), d, false, base.Add(time.Minute))

	assert.False(t, res.TransitionedDown)
	assert.False(t, res.TransitionedUp)
	assert.Equal(t, downSince, *d.DownSince)
}

func TestFlappingStartsAtThirdTransitionWithinWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &models.Device{LastSeen: base}
	cfg := testConfig()

	// Flip up/down three times within the 5 minute window.
	Apply(cfg, d, false, base.Add(1*time.Minute))               // UP -> DOWN (1 transition)
	Apply(cfg, d, true, base.Add(2*time.Minute))                // DOWN -> UP (2)
	res := Apply(cfg, d, false, base.Add(3*time.Minute))        // UP -> DOWN (3)

	assert.True(t, d.IsFlapping)
	assert.True(t, res.FlappingStarted)
	assert.True(t, res.Suppressed, "individual down/up alerts suppressed while flapping")
	assert.Equal(t, 1, d.FlapCount)
}

func TestISPUplinkUsesLowerFlapThreshold(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &models.Device{LastSeen: base, Tags: []string{"role=isp-uplink"}}
	cfg := testConfig()

	Apply(cfg, d, false, base.Add(1*time.Minute)) // 1
	res := Apply(cfg, d, true, base.Add(2*time.Minute)) // 2 -> threshold 2 for ISP

	assert.True(t, d.IsFlapping)
	assert.True(t, res.FlappingStarted)
}

func TestUntaggedISPOctetDeviceUsesLowerFlapThreshold(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &models.Device{LastSeen: base, IP: "192.168.1.5"}
	cfg := testConfig()

	Apply(cfg, d, false, base.Add(1*time.Minute))
	res := Apply(cfg, d, true, base.Add(2*time.Minute))

	assert.True(t, d.IsFlapping, "octet fallback applies before discovery tags the device")
	assert.True(t, res.FlappingStarted)
}

func TestFlappingClearsAfterClearWindowWithNoNewTransitions(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &models.Device{LastSeen: base}
	cfg := testConfig()

	Apply(cfg, d, false, base.Add(1*time.Minute))
	Apply(cfg, d, true, base.Add(2*time.Minute))
	Apply(cfg, d, false, base.Add(3*time.Minute))
	require.True(t, d.IsFlapping)

	// No further transitions; device stays reachable/unreachable as-is
	// but the flap window empties out, then the clear window elapses.
	res := Apply(cfg, d, false, base.Add(3*time.Minute+cfg.FlapWindow+cfg.FlapClearWindow+time.Second))

	assert.False(t, d.IsFlapping)
	assert.True(t, res.FlappingCleared)
	assert.Nil(t, d.FlappingSince)
}

func TestFlappingDoesNotClearBeforeClearWindowElapses(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &models.Device{LastSeen: base}
	cfg := testConfig()

	Apply(cfg, d, false, base.Add(1*time.Minute))
	Apply(cfg, d, true, base.Add(2*time.Minute))
	Apply(cfg, d, false, base.Add(3*time.Minute))
	require.True(t, d.IsFlapping)

	res := Apply(cfg, d, false, base.Add(3*time.Minute+cfg.FlapWindow+time.Minute))

	assert.True(t, d.IsFlapping)
	assert.False(t, res.FlappingCleared)
}

func TestStatusChangeTimesTruncatedToKHistory(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &models.Device{LastSeen: base}
	cfg := testConfig()

	reachable := true

	for i := 0; i < models.KHistory+5; i++ {
		reachable = !reachable
		Apply(cfg, d, reachable, base.Add(time.Duration(i)*time.Hour))
	}

	assert.LessOrEqual(t, len(d.StatusChangeTimes), models.KHistory)
}
