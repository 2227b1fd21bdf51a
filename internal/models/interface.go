package models

import "time"

// InterfaceType is the classifier's output category for a device interface.
type InterfaceType string

const (
	IfISP      InterfaceType = "isp"
	IfWAN      InterfaceType = "wan"
	IfTrunk    InterfaceType = "trunk"
	IfAccess   InterfaceType = "access"
	IfMgmt     InterfaceType = "mgmt"
	IfLoopback InterfaceType = "loopback"
	IfTunnel   InterfaceType = "tunnel"
	IfVirtual  InterfaceType = "virtual"
	IfOther    InterfaceType = "other"
)

// Interface is one discovered row from ifTable/ifXTable, unique by
// (DeviceID, IfIndex).
type Interface struct {
	DeviceID     string
	IfIndex      int
	IfName       string
	IfAlias      string
	IfDescr      string
	IfType       int
	InterfaceType InterfaceType
	AdminStatus  int
	OperStatus   int
	SpeedBps     uint64
	IsCritical   bool
	IsISP        bool
	ISPProvider  string
	LastSeen     time.Time
}
