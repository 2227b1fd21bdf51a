// Package discovery implements interface discovery and the device
// vendor / interface classifiers.
package discovery

import "strings"

// sysObjectID enterprise-number prefixes for vendors with a dedicated
// SNMP Batch Worker fallback template.
var vendorOIDPrefixes = []struct {
	prefix string
	vendor string
}{
	{"1.3.6.1.4.1.9.", "cisco"},
	{"1.3.6.1.4.1.2636.", "juniper"},
	{"1.3.6.1.4.1.12356.", "fortinet"},
	{"1.3.6.1.4.1.25461.", "paloaltonetworks"},
	{"1.3.6.1.4.1.2011.", "huawei"},
	{"1.3.6.1.4.1.41112.", "ubiquiti"},
	{"1.3.6.1.4.1.11.", "hp"},
}

// ClassifyVendor identifies a device's vendor from its sysObjectID and
// sysDescr, the two OIDs the SNMP Batch Worker fetches on first contact
// for a vendor-less device. sysObjectID prefixes are checked
// first since they are authoritative; sysDescr keywords are a fallback
// for vendors that don't register a recognized enterprise OID.
func ClassifyVendor(sysDescr, sysObjectID string) string {
	for _, v := range vendorOIDPrefixes {
		if strings.HasPrefix(sysObjectID, v.prefix) {
			return v.vendor
		}
	}

	descr := strings.ToLower(sysDescr)

	switch {
	case strings.Contains(descr, "cisco"):
		return "cisco"
	case strings.Contains(descr, "juniper"):
		return "juniper"
	case strings.Contains(descr, "fortinet") || strings.Contains(descr, "fortigate"):
		return "fortinet"
	case strings.Contains(descr, "palo alto") || strings.Contains(descr, "paloalto"):
		return "paloaltonetworks"
	case strings.Contains(descr, "huawei"):
		return "huawei"
	case strings.Contains(descr, "ubiquiti") || strings.Contains(descr, "unifi"):
		return "ubiquiti"
	case strings.Contains(descr, "mikrotik"):
		return "mikrotik"
	default:
		return "unknown"
	}
}
