package models

// ValueType enumerates the wire type of a MonitoringItem's collected value.
type ValueType string

const (
	ValueCounter32 ValueType = "counter32"
	ValueCounter64 ValueType = "counter64"
	ValueGauge     ValueType = "gauge"
	ValueString    ValueType = "string"
)

// MonitoringTemplate binds a vendor/device type to a set of MonitoringItems.
type MonitoringTemplate struct {
	ID         string
	Name       string
	Vendor     string
	DeviceType DeviceType
	Items      []MonitoringItem
}

// MonitoringItem is one OID to collect on an interval, as applied to a device.
type MonitoringItem struct {
	Name            string
	OID             string
	IntervalSeconds int
	ValueType       ValueType
	Units           string
	Enabled         bool
}

// AppliedItem is a MonitoringItem instantiated for a specific device.
type AppliedItem struct {
	DeviceID string
	Item     MonitoringItem
}
