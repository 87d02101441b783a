// Package credentials models the ephemeral Wi-Fi credentials pushed over the
// Credentials characteristic. A Credentials value is never persisted and is
// cleared from memory once the provisioning attempt that consumed it ends.
package credentials

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/sagehq/provisiond/pkg/errs"
)

const (
	// MaxSSIDBytes is the maximum UTF-8 byte length of an SSID.
	MaxSSIDBytes = 32
	// MaxPasswordBytes is the maximum UTF-8 byte length of a password.
	MaxPasswordBytes = 63
	// MaxPayloadBytes bounds the raw write payload.
	MaxPayloadBytes = 512
)

// Password wraps a Wi-Fi pre-shared key. Its String/GoString/Format
// representations all redact the value so it can never leak into a log line,
// an error string, or a %v fmt verb by accident.
type Password string

func (Password) String() string   { return "[redacted]" }
func (Password) GoString() string { return "credentials.Password(\"[redacted]\")" }

// Credentials is the parsed, validated payload of a Credentials write.
type Credentials struct {
	SSID     string
	Password Password
}

type wireCredentials struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// Parse validates and decodes a raw Credentials write payload.
func Parse(payload []byte) (Credentials, error) {
	if len(payload) > MaxPayloadBytes {
		return Credentials{}, errs.New(errs.InvalidCredentials,
			fmt.Sprintf("payload of %d bytes exceeds the %d byte limit", len(payload), MaxPayloadBytes))
	}

	var wire wireCredentials
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Credentials{}, errs.Wrap(errs.InvalidCredentials, "malformed JSON", err)
	}

	if wire.SSID == "" {
		return Credentials{}, errs.New(errs.InvalidCredentials, "ssid is required")
	}
	if !utf8.ValidString(wire.SSID) || !utf8.ValidString(wire.Password) {
		return Credentials{}, errs.New(errs.InvalidCredentials, "ssid/password must be valid UTF-8")
	}
	if n := len(wire.SSID); n > MaxSSIDBytes {
		return Credentials{}, errs.New(errs.InvalidCredentials,
			fmt.Sprintf("ssid is %d bytes, max is %d", n, MaxSSIDBytes))
	}
	if n := len(wire.Password); n > MaxPasswordBytes {
		return Credentials{}, errs.New(errs.InvalidCredentials,
			fmt.Sprintf("password is %d bytes, max is %d", n, MaxPasswordBytes))
	}

	return Credentials{SSID: wire.SSID, Password: Password(wire.Password)}, nil
}

// Open reports whether these credentials describe an open (no-password) network.
func (c Credentials) Open() bool { return c.Password == "" }
