package models

import "time"

// Sample is one labeled time-series point bound for the TSDB Writer.
type Sample struct {
	Metric    string
	Labels    map[string]string
	Value     float64
	Timestamp time.Time
}

// Required ping and interface metric names.
const (
	MetricPingStatus   = "device_ping_status"
	MetricPingRTTMs    = "device_ping_rtt_ms"
	MetricPingLossRatio = "device_ping_loss_ratio"

	MetricIfHCInOctets  = "interface_if_hc_in_octets"
	MetricIfHCOutOctets = "interface_if_hc_out_octets"
	MetricIfInErrors    = "interface_if_in_errors"
	MetricIfOutErrors   = "interface_if_out_errors"
	MetricIfInDiscards  = "interface_if_in_discards"
	MetricIfOutDiscards = "interface_if_out_discards"
	MetricIfAdminStatus = "interface_if_admin_status"
	MetricIfOperStatus  = "interface_if_oper_status"

	MetricSNMPItemPrefix = "snmp_"

	MetricWorkerHeartbeat = "worker_heartbeat"
)

// DeviceLabels returns the required base label set for a sample emitted
// on behalf of d.
func DeviceLabels(d *Device, branch, region string) map[string]string {
	labels := map[string]string{
		"device":      d.Name,
		"ip":          d.IP,
		"device_type": string(d.DeviceType),
	}

	if branch != "" {
		labels["branch"] = branch
	}

	if region != "" {
		labels["region"] = region
	}

	return labels
}
