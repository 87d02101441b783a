// Package config builds and validates the daemon's runtime configuration
// using a flag-plus-env-with-validation shape.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the provisioning daemon configuration.
type Config struct {
	// StateDir holds the pairing record and Wi-Fi profile backups.
	StateDir string
	// WifiIface is the network interface the daemon provisions.
	WifiIface string
	// BtAdapterID selects the host Bluetooth controller (-1 lets the stack pick).
	BtAdapterID int
	// NamePrefix is the fixed ASCII literal prefixed to the advertised name.
	NamePrefix string
	// DeviceSuffix is the device-unique advertised name suffix.
	DeviceSuffix string
	// FirmwareVersion is reported on the Device info characteristic.
	FirmwareVersion string

	// ScanDefaultTimeout and ScanMaxTimeout bound wifi_scan.
	ScanDefaultTimeout time.Duration
	ScanMaxTimeout     time.Duration
	// ScanCacheTTL bounds how long a cached scan result is served.
	ScanCacheTTL time.Duration

	// AssocTimeout, DHCPTimeout and SwitchTotalTimeout bound the Wi-Fi switch procedure.
	AssocTimeout       time.Duration
	DHCPTimeout        time.Duration
	SwitchTotalTimeout time.Duration

	// HealthAddr is the supervisor's debug/health HTTP listen address.
	HealthAddr string
}

// Default returns the baseline configuration before env overrides are applied.
func Default() *Config {
	return &Config{
		StateDir:           "/var/lib/sage-provisiond",
		WifiIface:          "wlan0",
		BtAdapterID:        -1,
		NamePrefix:         "SAGE",
		DeviceSuffix:       "0000",
		FirmwareVersion:    "dev",
		ScanDefaultTimeout: 5 * time.Second,
		ScanMaxTimeout:     15 * time.Second,
		ScanCacheTTL:       10 * time.Second,
		AssocTimeout:       8 * time.Second,
		DHCPTimeout:        8 * time.Second,
		SwitchTotalTimeout: 45 * time.Second,
		HealthAddr:         "127.0.0.1:8734",
	}
}

// ApplyEnv overrides fields from the environment variables: SAGE_STATE_DIR,
// SAGE_WIFI_IFACE, SAGE_BT_ADAPTER, SAGE_NAME_PREFIX.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SAGE_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("SAGE_WIFI_IFACE"); v != "" {
		c.WifiIface = v
	}
	if v := os.Getenv("SAGE_NAME_PREFIX"); v != "" {
		c.NamePrefix = v
	}
	if v := os.Getenv("SAGE_BT_ADAPTER"); v != "" {
		var id int
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			c.BtAdapterID = id
		}
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("config: state dir is required")
	}
	if c.WifiIface == "" {
		return fmt.Errorf("config: wifi interface is required")
	}
	if c.NamePrefix == "" {
		return fmt.Errorf("config: name prefix is required")
	}
	if c.ScanMaxTimeout < c.ScanDefaultTimeout {
		return fmt.Errorf("config: scan max timeout (%s) must be >= scan default timeout (%s)",
			c.ScanMaxTimeout, c.ScanDefaultTimeout)
	}
	if c.ScanMaxTimeout > 15*time.Second {
		return fmt.Errorf("config: scan max timeout must not exceed the 15s hard max")
	}
	if c.AssocTimeout < 8*time.Second {
		return fmt.Errorf("config: association timeout must be >= 8s")
	}
	if c.DHCPTimeout < 8*time.Second {
		return fmt.Errorf("config: DHCP timeout must be >= 8s")
	}
	return nil
}

// AdvertisedName is the full local name advertised over BLE.
func (c *Config) AdvertisedName() string {
	return fmt.Sprintf("%s %s", c.NamePrefix, c.DeviceSuffix)
}
