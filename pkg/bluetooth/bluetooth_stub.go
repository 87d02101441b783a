//go:build !linux

package bluetooth

import (
	log "github.com/sirupsen/logrus"

	"github.com/sagehq/provisiond/pkg/wifi"
)

// DeviceInfoStatic mirrors the Linux type so callers in main.go don't need
// a build tag of their own just to construct it.
type DeviceInfoStatic struct {
	FirmwareVersion string
	DeviceName      string
}

// Server is the non-Linux stub: github.com/paypal/gatt only supports Linux,
// so every platform build keeps compiling but advertises nothing.
type Server struct{}

// New logs a warning and returns a no-op server.
func New(adapterID int, controller Controller, w wifi.Wifi, scan *wifi.ScanCoalescer, static DeviceInfoStatic, pairedAt string) (*Server, error) {
	log.Warn("bluetooth: BLE peripheral mode is only supported on Linux; GATT service will not be advertised")
	return &Server{}, nil
}

// SetPairedAt is a no-op on non-Linux platforms.
func (s *Server) SetPairedAt(pairedAt string) {}

// Close is a no-op on non-Linux platforms.
func (s *Server) Close() error { return nil }
