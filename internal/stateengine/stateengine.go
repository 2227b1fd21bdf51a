// Package stateengine implements the per-device UP/DOWN/FLAPPING state
// machine. It is pure: callers hold the device row locked
// (see internal/statestore.DeviceStore.WithDeviceLock) for the
// duration of one Apply call, satisfying the ordering guarantee that
// all reads/writes for a device are serialized.
package stateengine

import (
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/discovery"
	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// Config carries the state-machine and flapping-overlay tunables.
type Config struct {
	FlapWindow       time.Duration
	FlapThreshold    int
	FlapThresholdISP int
	FlapClearWindow  time.Duration
}

// Result reports which transitions and alert-worthy events occurred
// during one Apply call, so the caller (the ICMP batch worker, via the
// Alert Engine) knows which alerts to fire, resolve, or suppress.
type Result struct {
	TransitionedDown bool
	TransitionedUp   bool
	FlappingStarted  bool
	FlappingCleared  bool

	// Suppressed is true when the device is flapping and individual
	// DeviceDown/DeviceRecovered alerts must not be raised; only
	// DeviceFlapping stays open.
	Suppressed bool
}

// Apply advances d's state machine for one ping result, mutating d in
// place. now must be monotonic with respect to prior calls for the
// same device (the caller's row lock guarantees this).
func Apply(cfg Config, d *models.Device, reachable bool, now time.Time) Result {
	var res Result

	wasUp := d.IsUp()

	switch {
	case reachable && !wasUp:
		d.DownSince = nil
		d.AppendStatusChange(now)
		d.LastSeen = now
		res.TransitionedUp = true
	case reachable && wasUp:
		d.LastSeen = now
	case !reachable && wasUp:
		t := now
		d.DownSince = &t
		d.AppendStatusChange(now)
		res.TransitionedDown = true
	default:
		// !reachable && !wasUp: DOWN -> DOWN, no change.
	}

	applyFlappingOverlay(cfg, d, now, &res)

	res.Suppressed = d.IsFlapping && (res.TransitionedDown || res.TransitionedUp)

	return res
}

// applyFlappingOverlay recomputes the flapping overlay on every
// call: the transition count within FlapWindow can cross the
// threshold, or fall back to zero and eventually clear, independent of
// whether this particular ping caused a transition.
func applyFlappingOverlay(cfg Config, d *models.Device, now time.Time, res *Result) {
	threshold := cfg.FlapThreshold
	if isISPDevice(d) {
		threshold = cfg.FlapThresholdISP
	}

	windowStart := now.Add(-cfg.FlapWindow)
	count := d.TransitionsSince(windowStart)

	if count > 0 {
		d.LastFlapDetected = &now
	}

	switch {
	case count >= threshold && !d.IsFlapping:
		d.IsFlapping = true
		d.FlapCount++

		if first, ok := firstTransitionInWindow(d.StatusChangeTimes, windowStart); ok {
			d.FlappingSince = &first
		} else {
			d.FlappingSince = &now
		}

		res.FlappingStarted = true
	case d.IsFlapping && count == 0 && d.LastFlapDetected != nil && now.Sub(*d.LastFlapDetected) >= cfg.FlapClearWindow:
		d.IsFlapping = false
		d.FlappingSince = nil
		res.FlappingCleared = true
	}
}

// isISPDevice reports whether d represents an ISP uplink: the role tag
// the interface classifier writes, with the addressing-plan octet as a
// fallback for devices Discovery has not yet tagged. Same two signals,
// same order, as the Alert Engine's severity escalation, so the lowered
// flap threshold applies from the first ping batch onward.
func isISPDevice(d *models.Device) bool {
	return d.HasTag(discovery.RoleISPUplink) || discovery.IsLikelyISPUplinkByAddress(d.IP)
}

func firstTransitionInWindow(times []time.Time, windowStart time.Time) (time.Time, bool) {
	for _, t := range times {
		if !t.Before(windowStart) {
			return t, true
		}
	}

	return time.Time{}, false
}
