//go:build linux

package wifi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	gonm "github.com/Wifx/gonetworkmanager/v2"
	log "github.com/sirupsen/logrus"

	"github.com/sagehq/provisiond/pkg/credentials"
	"github.com/sagehq/provisiond/pkg/errs"
)

// networkManagerWifi implements Wifi against NetworkManager's D-Bus API. It
// stands in for the supplicant control channel described in the design: a
// NetworkManager connection profile plays the role of a supplicant "network
// block" (add_network/set_network/remove), ActiveConnection state plays the
// role of wpa_state, and IP4Config plays the role of the DHCP lease check.
type networkManagerWifi struct {
	iface      string
	stateDir   string
	assocWait  time.Duration
	dhcpWait   time.Duration
	switchWait time.Duration
}

// New builds the Linux Wifi adapter for the named interface.
func New(iface, stateDir string, assocWait, dhcpWait, switchWait time.Duration) Wifi {
	return &networkManagerWifi{
		iface:      iface,
		stateDir:   stateDir,
		assocWait:  assocWait,
		dhcpWait:   dhcpWait,
		switchWait: switchWait,
	}
}

func (w *networkManagerWifi) device(nm gonm.NetworkManager) (gonm.DeviceWireless, error) {
	devices, err := nm.GetPropertyAllDevices()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to enumerate network devices", err)
	}
	for _, d := range devices {
		iface, err := d.GetPropertyInterface()
		if err != nil || iface != w.iface {
			continue
		}
		devType, err := d.GetPropertyDeviceType()
		if err != nil || devType != gonm.NmDeviceTypeWifi {
			continue
		}
		return gonm.NewDeviceWireless(d.GetPath())
	}
	return nil, errs.New(errs.Internal, fmt.Sprintf("wifi interface %s not found", w.iface))
}

// Switch implements the reconfiguration procedure: terminate the current
// association, remove any existing profile for the target SSID (after
// backing it up), add and activate a fresh WPA-PSK profile, then wait for
// association and a routable IPv4 lease.
func (w *networkManagerWifi) Switch(ctx context.Context, ssid string, password credentials.Password) (SwitchOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, w.switchWait)
	defer cancel()

	nm, err := gonm.NewNetworkManager()
	if err != nil {
		return SwitchOutcome{}, errs.Wrap(errs.Internal, "failed to connect to NetworkManager", err)
	}
	settings, err := gonm.NewSettings()
	if err != nil {
		return SwitchOutcome{}, errs.Wrap(errs.Internal, "failed to connect to NetworkManager settings", err)
	}
	dev, err := w.device(nm)
	if err != nil {
		return SwitchOutcome{}, err
	}

	// (a)+(b): disassociate and let NetworkManager tear down its DHCP client.
	if err := dev.Disconnect(); err != nil {
		log.WithError(err).Debug("wifi: disconnect before switch reported an error, continuing")
	}

	// (c)+(d): flush addresses is implicit in Disconnect(); remove any
	// existing connection profile for this SSID, backing it up first. Only
	// the matching-SSID profile is removed -- other saved networks are
	// left alone.
	if err := w.backupAndRemoveExisting(settings, ssid); err != nil {
		log.WithError(err).Warn("wifi: failed to back up/remove existing profile, continuing")
	}

	// (e)+(f)+(g): add a fresh WPA-PSK profile and activate it.
	conn := newConnectionSettings(ssid, password)
	activeConn, err := nm.AddAndActivateConnection(conn, dev)
	if err != nil {
		return SwitchOutcome{}, errs.Wrap(errs.WifiAssocFailed, "failed to activate wifi connection", err)
	}

	// (h): wait for association to complete.
	if err := w.waitAssociated(ctx, activeConn); err != nil {
		w.rollback(activeConn)
		return SwitchOutcome{}, err
	}

	// (i)+(j): wait for a DHCP lease and confirm a routable IPv4 address.
	ipv4, err := w.waitRoutableIPv4(ctx, dev)
	if err != nil {
		w.rollback(activeConn)
		return SwitchOutcome{}, err
	}

	return SwitchOutcome{SSID: ssid, IPv4: ipv4}, nil
}

func newConnectionSettings(ssid string, password credentials.Password) gonm.ConnectionSettings {
	wireless := map[string]interface{}{
		"ssid": []byte(ssid),
		"mode": "infrastructure",
	}
	security := map[string]interface{}{}
	if password != "" {
		security["key-mgmt"] = "wpa-psk"
		security["psk"] = string(password)
	} else {
		security["key-mgmt"] = "none"
	}
	return gonm.ConnectionSettings{
		"connection": map[string]interface{}{
			"id": ssid,
			"type": "802-11-wireless",
		},
		"802-11-wireless": wireless,
		"802-11-wireless-security": security,
		"ipv4": map[string]interface{}{"method": "auto"},
		"ipv6": map[string]interface{}{"method": "auto"},
	}
}

// backupAndRemoveExisting snapshots a prior connection profile matching ssid
// to <state_dir>/wifi-backup-<ssid>.json before deleting it.
func (w *networkManagerWifi) backupAndRemoveExisting(settings gonm.Settings, ssid string) error {
	conns, err := settings.ListConnections()
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to list saved connections", err)
	}
	for _, c := range conns {
		cfg, err := c.GetSettings()
		if err != nil {
			continue
		}
		wireless, ok := cfg["802-11-wireless"]
		if !ok {
			continue
		}
		existingSSID, ok := wirelessSSID(wireless)
		if !ok || existingSSID != ssid {
			continue
		}

		if err := w.writeBackup(ssid, cfg); err != nil {
			log.WithError(err).Warn("wifi: failed to write connection profile backup")
		}
		if err := c.Delete(); err != nil {
			return errs.Wrap(errs.Internal, "failed to delete existing connection profile", err)
		}
	}
	return nil
}

func wirelessSSID(wireless map[string]interface{}) (string, bool) {
	switch v := wireless["ssid"].(type) {
	case []byte:
		return string(v), true
	case string:
		return v, true
	default:
		return "", false
	}
}

func (w *networkManagerWifi) writeBackup(ssid string, cfg map[string]map[string]interface{}) error {
	if err := os.MkdirAll(w.stateDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", " ")
	if err != nil {
		return err
	}
	path := filepath.Join(w.stateDir, fmt.Sprintf("wifi-backup-%s.json", safeFileName(ssid)))
	return os.WriteFile(path, data, 0o600)
}

func safeFileName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '/' || r == '\\' || r == 0 {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// waitAssociated polls the active connection's state until it reaches
// Activated or the association deadline elapses. A single "inconclusive"
// reading is retried within the remaining deadline rather than treated as
// success.
func (w *networkManagerWifi) waitAssociated(ctx context.Context, activeConn gonm.ActiveConnection) error {
	deadline := time.Now().Add(w.assocWait)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		state, err := activeConn.GetPropertyState()
		if err == nil && state == gonm.NmActiveConnectionStateActivated {
			return nil
		}
		if err == nil && state == gonm.NmActiveConnectionStateDeactivated {
			return errs.New(errs.WifiAssocFailed, "wifi association was rejected")
		}

		if time.Now().After(deadline) {
			return errs.Timedout(errs.StageAssoc, "association did not reach COMPLETED in time")
		}
		select {
		case <-ctx.Done():
			return errs.Timedout(errs.StageSwitchTotal, "switch canceled while waiting for association")
		case <-ticker.C:
		}
	}
}

// waitRoutableIPv4 polls the device's IP4Config until a non-link-local
// address appears or the DHCP deadline elapses.
func (w *networkManagerWifi) waitRoutableIPv4(ctx context.Context, dev gonm.DeviceWireless) (string, error) {
	deadline := time.Now().Add(w.dhcpWait)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if ip, ok := w.currentIPv4(dev); ok {
			return ip, nil
		}
		if time.Now().After(deadline) {
			return "", errs.Timedout(errs.StageDHCP, "no DHCP lease within the deadline")
		}
		select {
		case <-ctx.Done():
			return "", errs.Timedout(errs.StageSwitchTotal, "switch canceled while waiting for a lease")
		case <-ticker.C:
		}
	}
}

func (w *networkManagerWifi) currentIPv4(dev gonm.DeviceWireless) (string, bool) {
	ip4cfg, err := dev.GetPropertyIP4Config()
	if err != nil || ip4cfg == nil {
		return "", false
	}
	addresses, err := ip4cfg.GetPropertyAddressData()
	if err != nil || len(addresses) == 0 {
		return "", false
	}
	addr, ok := addresses[0]["address"].(string)
	if !ok || addr == "" || isLinkLocal(addr) {
		return "", false
	}
	return addr, true
}

func isLinkLocal(addr string) bool {
	return len(addr) >= 8 && addr[:8] == "169.254."
}

// rollback flushes addresses and disables the freshly added block so the
// interface returns to a quiescent state after a failed switch.
func (w *networkManagerWifi) rollback(activeConn gonm.ActiveConnection) {
	if err := activeConn.Delete(); err != nil {
		log.WithError(err).Warn("wifi: rollback failed to deactivate connection")
	}
	if err := exec.Command("ip", "addr", "flush", "dev", w.iface).Run(); err != nil {
		log.WithError(err).Debug("wifi: rollback address flush reported an error")
	}
}

// Snapshot implements the non-blocking Network Details read.
func (w *networkManagerWifi) Snapshot(ctx context.Context) (NetworkSnapshot, error) {
	nm, err := gonm.NewNetworkManager()
	if err != nil {
		return NetworkSnapshot{}, errs.Wrap(errs.Internal, "failed to connect to NetworkManager", err)
	}
	dev, err := w.device(nm)
	if err != nil {
		return NetworkSnapshot{IfaceUp: false}, nil
	}

	snap := NetworkSnapshot{IfaceUp: true}
	if ap, err := dev.GetPropertyActiveAccessPoint(); err == nil && ap != nil {
		if ssid, err := ap.GetPropertySSID(); err == nil {
			snap.SSID = ssid
			snap.Associated = true
		}
		if strength, err := ap.GetPropertyStrength(); err == nil {
			snap.RSSI = strengthToRSSI(strength)
		}
		if freq, err := ap.GetPropertyFrequency(); err == nil {
			snap.Band = bandFromFrequency(freq)
		}
		if wpa, err := ap.GetPropertyWPAFlags(); err == nil && wpa != 0 {
			snap.Security = "WPA-PSK"
		} else {
			snap.Security = "open"
		}
	}
	if ip, ok := w.currentIPv4(dev); ok {
		snap.IPv4 = ip
	}
	return snap, nil
}

// strengthToRSSI approximates a dBm RSSI from NetworkManager's 0-100 signal
// strength percentage; NetworkManager does not expose raw RSSI.
func strengthToRSSI(strength uint8) int {
	return -100 + int(strength)/2
}

func bandFromFrequency(freqMHz uint32) string {
	if freqMHz >= 4900 {
		return "5GHz"
	}
	return "2.4GHz"
}

// Scan implements the bounded active scan. The timeout is clamped to
// the 15s hard maximum regardless of what the caller asks for.
func (w *networkManagerWifi) Scan(ctx context.Context, timeout time.Duration) ([]ScanEntry, error) {
	if timeout > 15*time.Second {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	nm, err := gonm.NewNetworkManager()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to connect to NetworkManager", err)
	}
	dev, err := w.device(nm)
	if err != nil {
		return nil, err
	}

	if err := dev.RequestScan(); err != nil {
		log.WithError(err).Debug("wifi: scan request reported an error, using last known results")
	}

	select {
	case <-ctx.Done():
	case <-time.After(minDuration(timeout, 3*time.Second)):
	}

	aps, err := dev.GetAccessPoints()
	if err != nil {
		return nil, errs.Timedout(errs.StageScan, "scan did not complete in time")
	}

	byStrongest := make(map[string]ScanEntry)
	for _, ap := range aps {
		ssid, err := ap.GetPropertySSID()
		if err != nil || ssid == "" {
			continue
		}
		strength, _ := ap.GetPropertyStrength()
		rssi := strengthToRSSI(strength)
		wpa, _ := ap.GetPropertyWPAFlags()
		rsn, _ := ap.GetPropertyRSNFlags()

		entry, exists := byStrongest[ssid]
		if !exists || rssi > entry.RSSI {
			byStrongest[ssid] = ScanEntry{SSID: ssid, RSSI: rssi, Secured: wpa != 0 || rsn != 0}
		}
	}

	entries := make([]ScanEntry, 0, len(byStrongest))
	for _, e := range byStrongest {
		entries = append(entries, e)
	}
	sortByDescendingRSSI(entries)
	return entries, nil
}

func sortByDescendingRSSI(entries []ScanEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].RSSI > entries[j-1].RSSI; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
