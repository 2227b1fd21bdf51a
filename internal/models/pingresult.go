package models

import "time"

// PingResult is an optional, short-lived reachability record: the TSDB
// is the system of record for historical
// reachability, so this row only backs a recent-window diagnostic view
// and is capped by PingResultRetention, not load-bearing for the state
// machine or alert evaluation.
type PingResult struct {
	DeviceID  string
	Reachable bool
	AvgRTTMs  *float64
	LossRatio float64
	Timestamp time.Time
}
