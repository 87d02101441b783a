// Package errs defines the stable, machine-readable error taxonomy shared by
// every provisioning component. A Kind never embeds the Wi-Fi password or any
// substring of it.
package errs

import "fmt"

// Kind is a stable, machine-readable error tag.
type Kind string

const (
	// BtUnavailable means the Bluetooth controller is missing or unpowered. Fatal at startup.
	BtUnavailable Kind = "bt_unavailable"
	// GattTransient means a single GATT I/O operation failed; the connection stays up.
	GattTransient Kind = "gatt_transient"
	// InvalidCredentials means the Credentials write was malformed or out of bounds.
	InvalidCredentials Kind = "invalid_credentials"
	// WifiAssocFailed means the supplicant/NetworkManager association never reached COMPLETED.
	WifiAssocFailed Kind = "wifi_assoc_failed"
	// WifiDhcpFailed means association succeeded but no DHCP lease arrived in time.
	WifiDhcpFailed Kind = "wifi_dhcp_failed"
	// WifiNoRoute means a lease was obtained but no routable IPv4 address was confirmed.
	WifiNoRoute Kind = "wifi_no_route"
	// Timeout means a bounded wait elapsed. Stage is carried in Error.Stage.
	Timeout Kind = "timeout"
	// PersistenceError means the pairing file write failed. Non-fatal.
	PersistenceError Kind = "persistence_error"
	// Internal means a precondition was violated; treat as a bug.
	Internal Kind = "internal"
)

// Stage identifies which bounded wait timed out.
type Stage string

const (
	StageScan        Stage = "scan"
	StageAssoc       Stage = "assoc"
	StageDHCP        Stage = "dhcp"
	StageSwitchTotal Stage = "switch_total"
)

// Error is the typed error carried across component boundaries. Message is
// user-safe: callers must never interpolate a password into it.
type Error struct {
	Kind    Kind
	Stage   Stage // only meaningful when Kind == Timeout
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error that wraps cause; cause's text is never surfaced
// verbatim if it might contain a secret, so callers pass a user-safe message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Timedout builds a Timeout error tagged with the stage that elapsed.
func Timedout(stage Stage, message string) *Error {
	return &Error{Kind: Timeout, Stage: stage, Message: message}
}

// KindOf extracts the Kind from err, if it (or something it wraps) is an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind, true
	}
	return "", false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
