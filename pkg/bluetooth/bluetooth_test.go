package bluetooth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacteristicType_String(t *testing.T) {
	cases := []struct {
		in   CharacteristicType
		want string
	}{
		{CharCredentials, "Credentials"},
		{CharStatus, "Status"},
		{CharScan, "Scan"},
		{CharNetworkDetails, "NetworkDetails"},
		{CharBluetoothDetails, "BluetoothDetails"},
		{CharDeviceInfo, "DeviceInfo"},
		{CharacteristicType(99), "Unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.String())
		})
	}
}

func TestUUIDs_AreDistinctAndWellFormed(t *testing.T) {
	uuids := []string{
		ServiceUUID,
		CredentialsCharUUID,
		StatusCharUUID,
		ScanCharUUID,
		NetworkDetailsCharUUID,
		BluetoothDetailsCharUUID,
		DeviceInfoCharUUID,
	}
	seen := make(map[string]bool, len(uuids))
	for _, u := range uuids {
		assert.Len(t, u, 36, "uuid %q should be the standard 36-character form", u)
		assert.False(t, seen[u], "uuid %q is duplicated", u)
		seen[u] = true
	}
}

func TestBluetoothSnapshot_OmitsEmptyFields(t *testing.T) {
	b, err := json.Marshal(BluetoothSnapshot{Advertising: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"advertising":true}`, string(b))

	b, err = json.Marshal(BluetoothSnapshot{
		PeripheralAddress: "AA:BB:CC:DD:EE:FF",
		ConnectedCentral:  "11:22:33:44:55:66",
		RSSI:              -42,
		Advertising:       false,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"peripheral_address":"AA:BB:CC:DD:EE:FF","connected_central":"11:22:33:44:55:66","rssi":-42,"advertising":false}`, string(b))
}

func TestDeviceInfo_OmitsPairedAtWhenUnset(t *testing.T) {
	b, err := json.Marshal(DeviceInfo{FirmwareVersion: "1.2.3", DeviceName: "SAGE 0000"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"firmware_version":"1.2.3","device_name":"SAGE 0000"}`, string(b))

	b, err = json.Marshal(DeviceInfo{PairedAt: "2026-01-02T03:04:05Z", FirmwareVersion: "1.2.3", DeviceName: "SAGE 0000"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"paired_at":"2026-01-02T03:04:05Z","firmware_version":"1.2.3","device_name":"SAGE 0000"}`, string(b))
}
