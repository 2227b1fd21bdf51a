package snmpclient

import (
	"fmt"

	"github.com/gosnmp/gosnmp"
)

// ToFloat64 converts a numeric gosnmp PDU value (Counter32/64, Gauge32,
// Integer) to a float64 sample value; OctetString and other non-numeric
// values return an error. 64-bit counters are passed
// through as-is; wraparound is left to the TSDB's rate() computation,
// never subtracted locally.
func ToFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("snmpclient: unsupported value type %T", v)
	}
}

// IsCounter64 reports whether the PDU's ASN.1 tag is a 64-bit counter.
func IsCounter64(t gosnmp.Asn1BER) bool {
	return t == gosnmp.Counter64
}
