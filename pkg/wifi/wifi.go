// Package wifi implements the Wi-Fi half of the OS adapter: switching the
// station onto a new network, reading current link state, and scanning for
// visible networks. The Linux implementation (wifi_linux.go) drives
// NetworkManager over D-Bus via github.com/Wifx/gonetworkmanager/v2;
// non-Linux builds get a stub (wifi_stub.go).
package wifi

import (
	"context"
	"time"

	"github.com/sagehq/provisiond/pkg/credentials"
)

// NetworkSnapshot is the read-through view produced for the Network Details
// characteristic.
type NetworkSnapshot struct {
	SSID       string `json:"ssid,omitempty"`
	RSSI       int    `json:"rssi,omitempty"`
	Band       string `json:"band,omitempty"` // "2.4GHz" or "5GHz"
	Security   string `json:"security,omitempty"`
	IfaceUp    bool   `json:"iface_up"`
	Associated bool   `json:"associated"`
	IPv4       string `json:"ipv4,omitempty"`
}

// ScanEntry is one visible network surfaced by a scan.
type ScanEntry struct {
	SSID    string `json:"ssid"`
	RSSI    int    `json:"rssi"`
	Secured bool   `json:"secured"`
}

// SwitchOutcome is the terminal result of a wifi_switch call.
type SwitchOutcome struct {
	SSID string
	IPv4 string
}

// Wifi is the capability interface the provisioning controller holds; it
// must never be invoked from within a GATT callback's hot path.
type Wifi interface {
	// Switch performs the full reconfiguration procedure: tear down any
	// existing connection, apply new credentials, and wait for a routable
	// IPv4 lease. It blocks until the outcome is determined or ctx is
	// canceled/times out.
	Switch(ctx context.Context, ssid string, password credentials.Password) (SwitchOutcome, error)
	// Snapshot is a non-blocking read of current link state.
	Snapshot(ctx context.Context) (NetworkSnapshot, error)
	// Scan performs a bounded active scan, deduplicated by SSID keeping the
	// strongest RSSI, ordered by descending RSSI.
	Scan(ctx context.Context, timeout time.Duration) ([]ScanEntry, error)
}
