// Package models defines the shared data types of the monitoring core:
// devices, credentials, interfaces, alert rules/history, and samples.
package models

import "time"

// DeviceType enumerates the recognized device classes.
type DeviceType string

const (
	DeviceRouter   DeviceType = "router"
	DeviceSwitch   DeviceType = "switch"
	DeviceFirewall DeviceType = "firewall"
	DeviceAP       DeviceType = "ap"
	DeviceNVR      DeviceType = "nvr"
	DeviceServer   DeviceType = "server"
	DeviceOther    DeviceType = "other"
)

// KHistory bounds the length of Device.StatusChangeTimes.
const KHistory = 10

// Device is a monitored network device and its state-machine fields.
//
// Invariant: DownSince == nil iff the device is considered UP. All
// readers (alert evaluation, API) must derive UP/DOWN from DownSince,
// never from the most recent raw ping result.
type Device struct {
	ID           string
	Name         string
	IP           string
	Hostname     string
	Vendor       string
	DeviceType   DeviceType
	Model        string
	Location     string
	Description  string
	Enabled      bool
	Tags         []string
	CustomFields map[string]string
	BranchID     string

	DownSince         *time.Time
	LastSeen          time.Time
	IsFlapping        bool
	FlapCount         int
	FlappingSince     *time.Time
	LastFlapDetected  *time.Time
	StatusChangeTimes []time.Time
}

// IsUp reports the sole source of truth for device reachability.
func (d *Device) IsUp() bool {
	return d.DownSince == nil
}

// HasTag reports whether the device carries the given tag verbatim.
func (d *Device) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}

	return false
}

// AppendStatusChange records a transition timestamp, truncating to KHistory
// most recent entries (oldest first).
func (d *Device) AppendStatusChange(t time.Time) {
	d.StatusChangeTimes = append(d.StatusChangeTimes, t)

	if n := len(d.StatusChangeTimes); n > KHistory {
		d.StatusChangeTimes = d.StatusChangeTimes[n-KHistory:]
	}
}

// TransitionsSince counts entries in StatusChangeTimes at or after since.
func (d *Device) TransitionsSince(since time.Time) int {
	count := 0

	for _, t := range d.StatusChangeTimes {
		if !t.Before(since) {
			count++
		}
	}

	return count
}
