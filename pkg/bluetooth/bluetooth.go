// Package bluetooth implements the Bluetooth adapter half (controller init,
// BT snapshot) and the GATT peripheral: advertising, the six fixed
// characteristics, per-connection serialization, and Status notifications.
// The underlying library, github.com/paypal/gatt, owns both the controller
// and the attribute server behind one Device value, so this package keeps
// both duties together rather than forcing an artificial split.
package bluetooth

import "github.com/sagehq/provisiond/pkg/status"

// CharacteristicType identifies one of the six fixed characteristics of the
// provisioning service. Identity is the UUID, not the position; this type
// exists only for readability inside the process.
type CharacteristicType int

const (
	CharCredentials CharacteristicType = iota
	CharStatus
	CharScan
	CharNetworkDetails
	CharBluetoothDetails
	CharDeviceInfo
)

func (c CharacteristicType) String() string {
	switch c {
	case CharCredentials:
		return "Credentials"
	case CharStatus:
		return "Status"
	case CharScan:
		return "Scan"
	case CharNetworkDetails:
		return "NetworkDetails"
	case CharBluetoothDetails:
		return "BluetoothDetails"
	case CharDeviceInfo:
		return "DeviceInfo"
	default:
		return "Unknown"
	}
}

// Fixed 128-bit UUIDs for the provisioning service and its six
// characteristics (generated via uuidgen; permanent once published to the
// mobile client).
const (
	ServiceUUID = "6e9b2f10-27b6-4ea8-9a1b-6f6d9ecb0a10"

	CredentialsCharUUID      = "6e9b2f11-27b6-4ea8-9a1b-6f6d9ecb0a10"
	StatusCharUUID           = "6e9b2f12-27b6-4ea8-9a1b-6f6d9ecb0a10"
	ScanCharUUID             = "6e9b2f13-27b6-4ea8-9a1b-6f6d9ecb0a10"
	NetworkDetailsCharUUID   = "6e9b2f14-27b6-4ea8-9a1b-6f6d9ecb0a10"
	BluetoothDetailsCharUUID = "6e9b2f15-27b6-4ea8-9a1b-6f6d9ecb0a10"
	DeviceInfoCharUUID       = "6e9b2f16-27b6-4ea8-9a1b-6f6d9ecb0a10"
)

// BluetoothSnapshot is the read-through view for the Bluetooth Details
// characteristic.
type BluetoothSnapshot struct {
	PeripheralAddress string `json:"peripheral_address,omitempty"`
	ConnectedCentral  string `json:"connected_central,omitempty"`
	RSSI              int    `json:"rssi,omitempty"`
	Advertising       bool   `json:"advertising"`
}

// DeviceInfo is the read-through view for the Device info characteristic.
type DeviceInfo struct {
	PairedAt        string `json:"paired_at,omitempty"`
	FirmwareVersion string `json:"firmware_version"`
	DeviceName      string `json:"device_name"`
}

// Controller is the capability the GATT server hands credential writes to
// and reads Status from. Implemented by pkg/provisioning.Controller; this
// indirection keeps the GATT transport ignorant of the provisioning
// algorithm, injected into the transport rather than owned by it.
type Controller interface {
	// Submit validates and hands off a Credentials write. A non-nil error
	// means the write itself is refused; on success the caller must not
	// block waiting for the outcome -- it is observable via Status.
	Submit(raw []byte) error
	// Current returns a snapshot of the canonical Status (never blocks).
	Current() status.Status
	// Subscribe registers for Status notifications, primed with the
	// current value.
	Subscribe() (<-chan status.Status, func())
}
