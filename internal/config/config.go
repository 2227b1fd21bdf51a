// Package config loads and validates the monitoring core's
// configuration, composing a file loader with an environment-variable
// overlay.
package config

import (
	"fmt"
	"time"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/logger"
)

// SchemaVersion is bumped on any change to the shape of persisted
// schedule state, so upgrades never replay a stale cached cadence.
const SchemaVersion = 1

// Config is the full process configuration: every runtime tunable plus
// the external endpoint and secret wiring.
type Config struct {
	PingPeriodSeconds              int `json:"ping_period_seconds" yaml:"ping_period_seconds"`
	SNMPPeriodSeconds              int `json:"snmp_period_seconds" yaml:"snmp_period_seconds"`
	EvaluateAlertsPeriodSeconds    int `json:"evaluate_alerts_period_seconds" yaml:"evaluate_alerts_period_seconds"`
	DiscoverInterfacesPeriodSeconds int `json:"discover_interfaces_period_seconds" yaml:"discover_interfaces_period_seconds"`
	CleanupStaleInterfacesPeriodSeconds int `json:"cleanup_stale_interfaces_period_seconds" yaml:"cleanup_stale_interfaces_period_seconds"`
	CleanupResolvedAlertsPeriodSeconds  int `json:"cleanup_resolved_alerts_period_seconds" yaml:"cleanup_resolved_alerts_period_seconds"`
	CheckWorkerHealthPeriodSeconds      int `json:"check_worker_health_period_seconds" yaml:"check_worker_health_period_seconds"`
	VacuumIdleTxPeriodSeconds           int `json:"vacuum_idle_tx_period_seconds" yaml:"vacuum_idle_tx_period_seconds"`

	ICMPCount      int `json:"icmp_count" yaml:"icmp_count"`
	ICMPTimeoutMS  int `json:"icmp_timeout_ms" yaml:"icmp_timeout_ms"`
	ICMPIntervalMS int `json:"icmp_interval_ms" yaml:"icmp_interval_ms"`
	ICMPFanout     int `json:"icmp_fanout" yaml:"icmp_fanout"`

	SNMPTimeoutSeconds  int `json:"snmp_timeout_seconds" yaml:"snmp_timeout_seconds"`
	SNMPRetries         int `json:"snmp_retries" yaml:"snmp_retries"`
	SNMPFanout          int `json:"snmp_fanout" yaml:"snmp_fanout"`
	SNMPMaxRepetitions  int `json:"snmp_max_repetitions" yaml:"snmp_max_repetitions"`

	FlapWindowSeconds int `json:"flap_window_seconds" yaml:"flap_window_seconds"`
	FlapThreshold     int `json:"flap_threshold" yaml:"flap_threshold"`
	FlapThresholdISP  int `json:"flap_threshold_isp" yaml:"flap_threshold_isp"`
	FlapClearSeconds  int `json:"flap_clear_seconds" yaml:"flap_clear_seconds"`

	PingRetentionDays       int `json:"ping_retention_days" yaml:"ping_retention_days"`
	StaleInterfaceTTLDays   int `json:"stale_interface_ttl_days" yaml:"stale_interface_ttl_days"`
	AlertRetentionDays      int `json:"alert_retention_days" yaml:"alert_retention_days"`

	BatchTimeoutSlackSeconds int `json:"batch_timeout_slack_seconds" yaml:"batch_timeout_slack_seconds"`
	QueueHighWater           int `json:"queue_high_water" yaml:"queue_high_water"`
	IdleTxMaxSeconds         int `json:"idle_tx_max_seconds" yaml:"idle_tx_max_seconds"`
	MaxConnectionsPerWorker  int `json:"max_connections_per_worker" yaml:"max_connections_per_worker"`

	EmitDeviceRecovered bool `json:"emit_device_recovered" yaml:"emit_device_recovered"`

	TSDBURL  string `json:"tsdb_url" yaml:"tsdb_url"`
	QueueURL string `json:"queue_url" yaml:"queue_url"`
	DBURL    string `json:"db_url" yaml:"db_url"`
	VaultKey string `json:"vault_key" yaml:"vault_key"`

	Logging logger.Config `json:"logging" yaml:"logging"`
}

// Default returns a Config populated with the stock defaults.
func Default() *Config {
	return &Config{
		PingPeriodSeconds:              30,
		SNMPPeriodSeconds:              60,
		EvaluateAlertsPeriodSeconds:    30,
		DiscoverInterfacesPeriodSeconds: 3600,
		CleanupStaleInterfacesPeriodSeconds: 86400,
		CleanupResolvedAlertsPeriodSeconds:  86400,
		CheckWorkerHealthPeriodSeconds:      300,
		VacuumIdleTxPeriodSeconds:           300,

		ICMPCount:      3,
		ICMPTimeoutMS:  1000,
		ICMPIntervalMS: 200,
		ICMPFanout:     50,

		SNMPTimeoutSeconds: 5,
		SNMPRetries:        3,
		SNMPFanout:         50,
		SNMPMaxRepetitions: 10,

		FlapWindowSeconds: 300,
		FlapThreshold:     3,
		FlapThresholdISP:  2,
		FlapClearSeconds:  900,

		PingRetentionDays:     30,
		StaleInterfaceTTLDays: 7,
		AlertRetentionDays:    7,

		BatchTimeoutSlackSeconds: 5,
		QueueHighWater:           1000,
		IdleTxMaxSeconds:         60,
		MaxConnectionsPerWorker:  20,

		EmitDeviceRecovered: false,
	}
}

// Validate rejects configurations the workers cannot run safely with.
func (c *Config) Validate() error {
	if c.PingPeriodSeconds <= 0 {
		return fmt.Errorf("ping_period_seconds must be positive")
	}

	if c.SNMPPeriodSeconds <= 0 {
		return fmt.Errorf("snmp_period_seconds must be positive")
	}

	for name, v := range map[string]int{
		"evaluate_alerts_period_seconds":         c.EvaluateAlertsPeriodSeconds,
		"discover_interfaces_period_seconds":     c.DiscoverInterfacesPeriodSeconds,
		"cleanup_stale_interfaces_period_seconds": c.CleanupStaleInterfacesPeriodSeconds,
		"cleanup_resolved_alerts_period_seconds":  c.CleanupResolvedAlertsPeriodSeconds,
		"check_worker_health_period_seconds":      c.CheckWorkerHealthPeriodSeconds,
		"vacuum_idle_tx_period_seconds":           c.VacuumIdleTxPeriodSeconds,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.ICMPFanout <= 0 || c.SNMPFanout <= 0 {
		return fmt.Errorf("fanout values must be positive")
	}

	if c.MaxConnectionsPerWorker > 20 {
		return fmt.Errorf("max_connections_per_worker must be <= 20 per worker")
	}

	if c.FlapThresholdISP > c.FlapThreshold {
		return fmt.Errorf("flap_threshold_isp must not exceed flap_threshold")
	}

	return nil
}

// BatchTimeout returns the per-batch deadline for the given tick
// period: the period minus a slack (default 5s) left over for ack and
// re-enqueue.
func (c *Config) BatchTimeout(period time.Duration) time.Duration {
	slack := time.Duration(c.BatchTimeoutSlackSeconds) * time.Second
	if period <= slack {
		return period
	}

	return period - slack
}

func (c *Config) PingPeriod() time.Duration {
	return time.Duration(c.PingPeriodSeconds) * time.Second
}

func (c *Config) SNMPPeriod() time.Duration {
	return time.Duration(c.SNMPPeriodSeconds) * time.Second
}

func (c *Config) EvaluateAlertsPeriod() time.Duration {
	return time.Duration(c.EvaluateAlertsPeriodSeconds) * time.Second
}

func (c *Config) DiscoverInterfacesPeriod() time.Duration {
	return time.Duration(c.DiscoverInterfacesPeriodSeconds) * time.Second
}

func (c *Config) CleanupStaleInterfacesPeriod() time.Duration {
	return time.Duration(c.CleanupStaleInterfacesPeriodSeconds) * time.Second
}

func (c *Config) CleanupResolvedAlertsPeriod() time.Duration {
	return time.Duration(c.CleanupResolvedAlertsPeriodSeconds) * time.Second
}

func (c *Config) CheckWorkerHealthPeriod() time.Duration {
	return time.Duration(c.CheckWorkerHealthPeriodSeconds) * time.Second
}

func (c *Config) VacuumIdleTxPeriod() time.Duration {
	return time.Duration(c.VacuumIdleTxPeriodSeconds) * time.Second
}

func (c *Config) FlapWindow() time.Duration {
	return time.Duration(c.FlapWindowSeconds) * time.Second
}

func (c *Config) FlapClearWindow() time.Duration {
	return time.Duration(c.FlapClearSeconds) * time.Second
}
