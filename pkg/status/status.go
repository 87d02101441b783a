// Package status models the process-wide Status singleton as a tagged
// variant, the canonical in-memory form, JSON-encoded only at the GATT
// boundary so that transition monotonicity stays mechanical to reason
// about. One mutex-guarded struct is the single source of truth.
package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies which Status variant a value holds.
type Kind string

const (
	KindIdle                Kind = "idle"
	KindCredentialsReceived Kind = "credentials_received"
	KindConnecting          Kind = "connecting"
	KindConnected           Kind = "connected"
	KindFailed              Kind = "failed"
	KindDisconnected        Kind = "disconnected"
)

// Status is the tagged variant of the process-wide provisioning state. Only
// the fields meaningful for Kind are populated; the zero value is Idle.
type Status struct {
	Kind     Kind
	SSID     string
	Attempt  int
	IPv4     string
	Since    time.Time
	Reason   string
	LastSSID string
}

// Idle is the startup/reset state.
func Idle() Status { return Status{Kind: KindIdle} }

// CredentialsReceived records that a credential write was accepted.
func CredentialsReceived(ssid string) Status {
	return Status{Kind: KindCredentialsReceived, SSID: ssid}
}

// Connecting records an in-flight Wi-Fi switch attempt.
func Connecting(ssid string, attempt int) Status {
	return Status{Kind: KindConnecting, SSID: ssid, Attempt: attempt}
}

// Connected records a successful switch with its routable IPv4 address.
func Connected(ssid, ipv4 string, since time.Time) Status {
	return Status{Kind: KindConnected, SSID: ssid, IPv4: ipv4, Since: since}
}

// Failed records a terminal failure and its machine-readable reason.
func Failed(ssid, reason string) Status {
	return Status{Kind: KindFailed, SSID: ssid, Reason: reason}
}

// Disconnected records a loss of the Wi-Fi link, optionally naming the SSID
// that was last associated.
func Disconnected(lastSSID string) Status {
	return Status{Kind: KindDisconnected, LastSSID: lastSSID}
}

// Terminal reports whether this Status ends a provisioning attempt.
func (s Status) Terminal() bool {
	return s.Kind == KindConnected || s.Kind == KindFailed
}

// wireStatus is the compact JSON shape put on the wire; only non-empty
// fields for the current Kind are included.
type wireStatus struct {
	State    Kind   `json:"state"`
	SSID     string `json:"ssid,omitempty"`
	Attempt  int    `json:"attempt,omitempty"`
	IPv4     string `json:"ipv4,omitempty"`
	Since    string `json:"since,omitempty"`
	Reason   string `json:"reason,omitempty"`
	LastSSID string `json:"last_ssid,omitempty"`
}

// MarshalJSON encodes the Status into its wire shape.
func (s Status) MarshalJSON() ([]byte, error) {
	w := wireStatus{State: s.Kind}
	switch s.Kind {
	case KindCredentialsReceived:
		w.SSID = s.SSID
	case KindConnecting:
		w.SSID, w.Attempt = s.SSID, s.Attempt
	case KindConnected:
		w.SSID, w.IPv4, w.Since = s.SSID, s.IPv4, s.Since.UTC().Format(time.RFC3339)
	case KindFailed:
		w.SSID, w.Reason = s.SSID, s.Reason
	case KindDisconnected:
		w.LastSSID = s.LastSSID
	case KindIdle:
		// no extra fields
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire shape back into a Status.
func (s *Status) UnmarshalJSON(data []byte) error {
	var w wireStatus
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Status{Kind: w.State, SSID: w.SSID, Attempt: w.Attempt, IPv4: w.IPv4,
		Reason: w.Reason, LastSSID: w.LastSSID}
	if w.Since != "" {
		t, err := time.Parse(time.RFC3339, w.Since)
		if err != nil {
			return fmt.Errorf("status: invalid since timestamp: %w", err)
		}
		out.Since = t
	}
	*s = out
	return nil
}
