package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalJSON_OmitsIrrelevantFields(t *testing.T) {
	cases := []struct {
		name string
		in   Status
		want string
	}{
		{"idle", Idle(), `{"state":"idle"}`},
		{"credentials_received", CredentialsReceived("HomeNet"), `{"state":"credentials_received","ssid":"HomeNet"}`},
		{"connecting", Connecting("HomeNet", 1), `{"state":"connecting","ssid":"HomeNet","attempt":1}`},
		{"failed", Failed("HomeNet", "wifi_assoc_failed"), `{"state":"failed","ssid":"HomeNet","reason":"wifi_assoc_failed"}`},
		{"disconnected_with_last", Disconnected("HomeNet"), `{"state":"disconnected","last_ssid":"HomeNet"}`},
		{"disconnected_no_last", Disconnected(""), `{"state":"disconnected"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(tc.in)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(b))
		})
	}
}

func TestMarshalJSON_Connected(t *testing.T) {
	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b, err := json.Marshal(Connected("HomeNet", "192.168.1.42", since))
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"connected","ssid":"HomeNet","ipv4":"192.168.1.42","since":"2026-01-02T03:04:05Z"}`, string(b))
}

func TestRoundTrip(t *testing.T) {
	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, s := range []Status{
		Idle(),
		CredentialsReceived("A"),
		Connecting("A", 1),
		Connected("A", "10.0.0.1", since),
		Failed("A", "invalid_credentials"),
		Disconnected("A"),
	} {
		b, err := json.Marshal(s)
		require.NoError(t, err)
		var out Status
		require.NoError(t, json.Unmarshal(b, &out))
		assert.Equal(t, s.Kind, out.Kind)
		assert.Equal(t, s.SSID, out.SSID)
		assert.Equal(t, s.Reason, out.Reason)
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, Idle().Terminal())
	assert.False(t, Connecting("A", 1).Terminal())
	assert.True(t, Connected("A", "1.2.3.4", time.Now()).Terminal())
	assert.True(t, Failed("A", "x").Terminal())
}

func TestNeverContainsPasswordSubstring(t *testing.T) {
	password := "hunter2x8"
	s := Failed("HomeNet", "wifi_assoc_failed")
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(b), password)
}
