package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SAGE_STATE_DIR", "/tmp/sage-state")
	t.Setenv("SAGE_WIFI_IFACE", "wlan1")
	t.Setenv("SAGE_NAME_PREFIX", "TEST")
	t.Setenv("SAGE_BT_ADAPTER", "2")

	c := Default()
	c.ApplyEnv()

	assert.Equal(t, "/tmp/sage-state", c.StateDir)
	assert.Equal(t, "wlan1", c.WifiIface)
	assert.Equal(t, "TEST", c.NamePrefix)
	assert.Equal(t, 2, c.BtAdapterID)
}

func TestValidate_RejectsScanBoundsViolations(t *testing.T) {
	c := Default()
	c.ScanMaxTimeout = time.Second
	c.ScanDefaultTimeout = 5 * time.Second
	assert.Error(t, c.Validate())

	c = Default()
	c.ScanMaxTimeout = 20 * time.Second
	assert.Error(t, c.Validate())
}

func TestAdvertisedName(t *testing.T) {
	c := Default()
	c.NamePrefix = "SAGE"
	c.DeviceSuffix = "AB12"
	assert.Equal(t, "SAGE AB12", c.AdvertisedName())
}
