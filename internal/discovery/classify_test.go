package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ward-tech-solutions/ward-flux-credobank-sub008/internal/models"
)

func TestClassifyInterfaceISPKeywordWins(t *testing.T) {
	c := ClassifyInterface(6, "Gi0/1", "Comcast Business Circuit", 1_000_000_000)

	assert.Equal(t, models.IfISP, c.InterfaceType)
	assert.True(t, c.IsISP)
	assert.Equal(t, "Comcast", c.ISPProvider)
	assert.True(t, c.IsCritical)
}

func TestClassifyInterfaceRegionalISPUplink(t *testing.T) {
	c := ClassifyInterface(6, "GigabitEthernet0/1", "MAGTI-ISP-UPLINK", 1_000_000_000)

	assert.Equal(t, models.IfISP, c.InterfaceType)
	assert.True(t, c.IsISP)
	assert.Equal(t, "Magti", c.ISPProvider)
	assert.True(t, c.IsCritical)
}

func TestClassifyInterfaceUnknownISPHasNoProvider(t *testing.T) {
	c := ClassifyInterface(6, "Gi0/2", "backup isp circuit", 100_000_000)

	assert.Equal(t, models.IfISP, c.InterfaceType)
	assert.True(t, c.IsISP)
	assert.Empty(t, c.ISPProvider)
}

func TestClassifyInterfaceLoopback(t *testing.T) {
	c := ClassifyInterface(ifTypeSoftwareLoopback, "Loopback0", "", 0)
	assert.Equal(t, models.IfLoopback, c.InterfaceType)
	assert.False(t, c.IsCritical)
}

func TestClassifyInterfaceTrunkAboveGigabitIsCritical(t *testing.T) {
	c := ClassifyInterface(ifTypeL2VLAN, "Vlan10", "", 10_000_000_000)
	assert.Equal(t, models.IfTrunk, c.InterfaceType)
	assert.True(t, c.IsCritical)
}

func TestClassifyInterfaceTrunkBelowGigabitNotCritical(t *testing.T) {
	c := ClassifyInterface(ifTypeL2VLAN, "Vlan10", "", 100_000_000)
	assert.Equal(t, models.IfTrunk, c.InterfaceType)
	assert.False(t, c.IsCritical)
}

func TestClassifyInterfaceCriticalByNamePattern(t *testing.T) {
	c := ClassifyInterface(6, "Gi0/1", "core-uplink-to-dc", 0)
	assert.True(t, c.IsCritical)
	assert.False(t, c.IsISP)
}

func TestClassifyInterfaceMgmt(t *testing.T) {
	c := ClassifyInterface(6, "mgmt0", "", 0)
	assert.Equal(t, models.IfMgmt, c.InterfaceType)
}

func TestIsLikelyISPUplinkByAddress(t *testing.T) {
	assert.True(t, IsLikelyISPUplinkByAddress("10.1.2.5"))
	assert.False(t, IsLikelyISPUplinkByAddress("10.1.2.6"))
	assert.False(t, IsLikelyISPUplinkByAddress("not-an-ip"))
}
