package discovery

import (
	"strconv"
	"strings"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

// ifType values this classifier treats specially (RFC 1213 IANAifType).
const (
	ifTypeSoftwareLoopback = 24
	ifTypeTunnel           = 131
	ifTypePropVirtual      = 53
	ifTypeL2VLAN           = 135
)

// ispKeywords is the case-insensitive ifAlias provider keyword table:
// regional providers first, then the international carriers. Known
// names map to the provider label stored on the interface row; the
// bare "isp" entry marks the link as an uplink with no known provider,
// and anything unmatched yields an empty provider.
var ispKeywords = []struct {
	keyword  string
	provider string
}{
	{"magti", "Magti"},
	{"silknet", "Silknet"},
	{"caucasus", "Caucasus Online"},
	{"datacom", "Datacom"},
	{"beeline", "Beeline"},
	{"veon", "Beeline"},
	{"cellfie", "Cellfie"},
	{"comcast", "Comcast"},
	{"at&t", "AT&T"},
	{"att", "AT&T"},
	{"verizon", "Verizon"},
	{"centurylink", "CenturyLink"},
	{"lumen", "Lumen"},
	{"level3", "Lumen"},
	{"cogent", "Cogent"},
	{"zayo", "Zayo"},
	{"spectrum", "Spectrum"},
	{"charter", "Spectrum"},
	{"frontier", "Frontier"},
	{"windstream", "Windstream"},
	{"isp", ""},
}

// criticalNamePatterns flags interfaces whose ifName/ifAlias indicates
// backbone/uplink roles regardless of is_isp.
var criticalNamePatterns = []string{"core", "uplink", "backbone", "wan"}

const gigabitBps = 1_000_000_000

// Classification is the classifier's per-interface output.
type Classification struct {
	InterfaceType models.InterfaceType
	IsISP         bool
	ISPProvider   string
	IsCritical    bool
}

// ClassifyInterface applies the deterministic rules table to one
// discovered ifTable/ifXTable row.
func ClassifyInterface(ifType int, ifName, ifAlias string, speedBps uint64) Classification {
	name := strings.ToLower(ifName)
	alias := strings.ToLower(ifAlias)

	ispProvider, isISP := matchISPKeyword(alias)

	ifaceType := classifyInterfaceType(ifType, name, alias, isISP)

	critical := isISP || matchesCriticalName(name, alias) || (ifaceType == models.IfTrunk && speedBps >= gigabitBps)

	return Classification{
		InterfaceType: ifaceType,
		IsISP:         isISP,
		ISPProvider:   ispProvider,
		IsCritical:    critical,
	}
}

func matchISPKeyword(alias string) (provider string, matched bool) {
	for _, k := range ispKeywords {
		if strings.Contains(alias, k.keyword) {
			return k.provider, true
		}
	}

	return "", false
}

func matchesCriticalName(name, alias string) bool {
	for _, p := range criticalNamePatterns {
		if strings.Contains(name, p) || strings.Contains(alias, p) {
			return true
		}
	}

	return false
}

func classifyInterfaceType(ifType int, name, alias string, isISP bool) models.InterfaceType {
	switch {
	case isISP:
		return models.IfISP
	case ifType == ifTypeSoftwareLoopback || strings.HasPrefix(name, "lo"):
		return models.IfLoopback
	case ifType == ifTypeTunnel || strings.Contains(name, "tun") || strings.Contains(alias, "gre") || strings.Contains(alias, "ipsec"):
		return models.IfTunnel
	case strings.Contains(alias, "wan") || strings.Contains(name, "wan"):
		return models.IfWAN
	case strings.Contains(alias, "mgmt") || strings.Contains(alias, "management") || strings.Contains(name, "mgmt"):
		return models.IfMgmt
	case strings.Contains(name, "vlan") || strings.Contains(alias, "trunk") || ifType == ifTypeL2VLAN:
		return models.IfTrunk
	case ifType == ifTypePropVirtual:
		return models.IfVirtual
	case strings.Contains(name, "eth") || strings.Contains(name, "gi") || strings.Contains(name, "fa"):
		return models.IfAccess
	default:
		return models.IfOther
	}
}

// ispUplinkOctet is the deployment-wide addressing-plan convention:
// devices whose IP ends in this octet are ISP uplinks unless proven
// otherwise by an explicit tag.
const ispUplinkOctet = "5"

// IsLikelyISPUplinkByAddress reports whether ip's last octet matches
// the deployment's ISP-uplink addressing convention. This is a
// fallback signal only: callers must never
// let it override or remove an explicit role=isp-uplink tag, only add
// one when none exists.
func IsLikelyISPUplinkByAddress(ip string) bool {
	idx := strings.LastIndex(ip, ".")
	if idx < 0 || idx == len(ip)-1 {
		return false
	}

	octet := ip[idx+1:]
	if _, err := strconv.Atoi(octet); err != nil {
		return false
	}

	return octet == ispUplinkOctet
}
