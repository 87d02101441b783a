//go:build !linux

package wifi

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sagehq/provisiond/pkg/credentials"
)

// stubWifi is used on non-Linux builds, keeping the build green everywhere
// while the real implementation stays Linux-only.
type stubWifi struct{}

// New builds the non-Linux stub adapter. The parameters are accepted for
// signature parity with the Linux constructor and otherwise unused.
func New(iface, stateDir string, assocWait, dhcpWait, switchWait time.Duration) Wifi {
	log.Warn("wifi: NetworkManager integration is only supported on Linux; using a stub adapter")
	return &stubWifi{}
}

func (s *stubWifi) Switch(ctx context.Context, ssid string, password credentials.Password) (SwitchOutcome, error) {
	return SwitchOutcome{}, fmt.Errorf("wifi: switching is not supported on this platform")
}

func (s *stubWifi) Snapshot(ctx context.Context) (NetworkSnapshot, error) {
	return NetworkSnapshot{}, nil
}

func (s *stubWifi) Scan(ctx context.Context, timeout time.Duration) ([]ScanEntry, error) {
	return nil, nil
}
