//go:build linux

package bluetooth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/paypal/gatt"
	"github.com/paypal/gatt/linux/cmd"
	log "github.com/sirupsen/logrus"

	"github.com/sagehq/provisiond/pkg/wifi"
)

// advertiseResumeDelay bounds how quickly advertising must resume after a
// central disconnects. paypal/gatt stops advertising automatically the
// moment a central connects (single-connection radios can't do both at
// once); we re-arm it ourselves as soon as CentralDisconnected fires, well
// under the 500ms target since no I/O is involved.
const advertiseResumeDelay = 0

// DefaultServerOptions sets conservative Linux HCI tuning: a single
// concurrent connection (the hardware this runs on has one radio), the
// default local controller, and conservative advertising interval bounds.
var DefaultServerOptions = []gatt.Option{
	gatt.LnxMaxConnections(1),
	gatt.LnxDeviceID(-1, true),
	gatt.LnxSetAdvertisingParameters(&cmd.LESetAdvertisingParameters{
		AdvertisingIntervalMin: 0x00f4,
		AdvertisingIntervalMax: 0x00f4,
		AdvertisingChannelMap:  0x7,
	}),
}

// DeviceInfoStatic is the part of the Device info characteristic fixed at
// startup: firmware version and advertised name don't change over the
// process lifetime, only PairedAt does (via the pairing store).
type DeviceInfoStatic struct {
	FirmwareVersion string
	DeviceName      string
}

// Server is the GATT peripheral exposing the six fixed characteristics over
// github.com/paypal/gatt, plus the Bluetooth adapter's controller init and
// the read-only adapter/device snapshot BlueZ exposes over D-Bus that
// paypal/gatt itself doesn't surface.
type Server struct {
	device      gatt.Device
	adapterID   int
	serviceUUID gatt.UUID

	controller Controller
	wifi       wifi.Wifi
	scan       *wifi.ScanCoalescer
	static     DeviceInfoStatic

	mu           sync.Mutex
	central      *gatt.Central
	pairedAt     string
	notifyCancel context.CancelFunc
}

// New constructs the Linux GATT server. It does not start advertising on
// its own -- gatt.Device.Init triggers setupService asynchronously once the
// controller reports powered-on.
func New(adapterID int, controller Controller, w wifi.Wifi, scan *wifi.ScanCoalescer, static DeviceInfoStatic, pairedAt string) (*Server, error) {
	d, err := gatt.NewDevice(DefaultServerOptions...)
	if err != nil {
		return nil, fmt.Errorf("bluetooth: open device: %w", err)
	}

	s := &Server{
		device:      d,
		adapterID:   adapterID,
		serviceUUID: gatt.MustParseUUID(ServiceUUID),
		controller:  controller,
		wifi:        w,
		scan:        scan,
		static:      static,
		pairedAt:    pairedAt,
	}

	d.Handle(
		gatt.CentralConnected(s.onConnected),
		gatt.CentralDisconnected(s.onDisconnected),
	)

	if err := d.Init(s.onStateChanged); err != nil {
		return nil, fmt.Errorf("bluetooth: init device: %w", err)
	}

	return s, nil
}

func (s *Server) onStateChanged(d gatt.Device, state gatt.State) {
	log.Infof("bluetooth: adapter state: %s", state)
	if state != gatt.StatePoweredOn {
		return
	}
	if err := s.setupService(d); err != nil {
		log.Errorf("bluetooth: failed to set up service: %v", err)
	}
}

func (s *Server) setupService(d gatt.Device) error {
	svc := gatt.NewService(s.serviceUUID)

	s.addCredentialsChar(svc)
	s.addStatusChar(svc)
	s.addScanChar(svc)
	s.addNetworkDetailsChar(svc)
	s.addBluetoothDetailsChar(svc)
	s.addDeviceInfoChar(svc)

	if err := d.AddService(svc); err != nil {
		return fmt.Errorf("add service: %w", err)
	}

	return s.advertise(d)
}

func (s *Server) advertise(d gatt.Device) error {
	name := s.static.DeviceName
	uuids := []gatt.UUID{s.serviceUUID}

	if err := d.AdvertiseNameAndServices(name, uuids); err != nil {
		return fmt.Errorf("advertise: %w", err)
	}
	log.Infof("bluetooth: advertising %q (service %s)", name, ServiceUUID)
	return nil
}

func (s *Server) onConnected(c gatt.Central) {
	s.mu.Lock()
	s.central = &c
	s.mu.Unlock()
	log.Infof("bluetooth: central connected: %s", c.ID())
}

func (s *Server) onDisconnected(c gatt.Central) {
	s.mu.Lock()
	s.central = nil
	if s.notifyCancel != nil {
		s.notifyCancel()
		s.notifyCancel = nil
	}
	s.mu.Unlock()
	log.Infof("bluetooth: central disconnected: %s", c.ID())

	if advertiseResumeDelay > 0 {
		time.Sleep(advertiseResumeDelay)
	}
	if err := s.advertise(s.device); err != nil {
		log.Errorf("bluetooth: failed to resume advertising after disconnect: %v", err)
	}
}

// addCredentialsChar wires the write-only Credentials characteristic
// straight to the provisioning Controller: write hands off and never blocks
// on the outcome; a non-nil error from Submit means the write itself is
// refused.
func (s *Server) addCredentialsChar(svc *gatt.Service) {
	char := svc.AddCharacteristic(gatt.MustParseUUID(CredentialsCharUUID))
	char.HandleWriteFunc(func(r gatt.Request, data []byte) byte {
		payload := make([]byte, len(data))
		copy(payload, data)
		if err := s.controller.Submit(payload); err != nil {
			log.Warnf("bluetooth: credentials write rejected: %v", err)
			return gatt.StatusUnexpectedError
		}
		return gatt.StatusSuccess
	})
}

// addStatusChar wires the read/notify Status characteristic. Read always
// returns the current snapshot; Notify streams every subsequent transition,
// primed with the current value by Controller.Subscribe.
func (s *Server) addStatusChar(svc *gatt.Service) {
	char := svc.AddCharacteristic(gatt.MustParseUUID(StatusCharUUID))

	char.HandleReadFunc(func(rsp gatt.ResponseWriter, req *gatt.ReadRequest) {
		data, err := json.Marshal(s.controller.Current())
		if err != nil {
			log.Errorf("bluetooth: marshal status: %v", err)
			return
		}
		if _, err := rsp.Write(data); err != nil {
			log.Warnf("bluetooth: status read response: %v", err)
		}
	})

	char.HandleNotifyFunc(func(r gatt.Request, n gatt.Notifier) {
		ch, unsub := s.controller.Subscribe()
		ctx, cancel := context.WithCancel(context.Background())

		s.mu.Lock()
		if s.notifyCancel != nil {
			s.notifyCancel()
		}
		s.notifyCancel = cancel
		s.mu.Unlock()

		go func() {
			defer unsub()
			for {
				select {
				case <-ctx.Done():
					return
				case st, ok := <-ch:
					if !ok {
						return
					}
					if n.Done() {
						return
					}
					data, err := json.Marshal(st)
					if err != nil {
						log.Errorf("bluetooth: marshal status notification: %v", err)
						continue
					}
					if _, err := n.Write(data); err != nil {
						log.Debugf("bluetooth: status notify stopped: %v", err)
						return
					}
				}
			}
		}()
	})
}

// addScanChar wires the read-only Scan characteristic. Read never blocks:
// it returns the coalescer's last cached result immediately, if any, while
// kicking off a fresh coalesced scan in the background so the next read
// sees fresher data.
func (s *Server) addScanChar(svc *gatt.Service) {
	char := svc.AddCharacteristic(gatt.MustParseUUID(ScanCharUUID))
	char.HandleReadFunc(func(rsp gatt.ResponseWriter, req *gatt.ReadRequest) {
		entries := []wifi.ScanEntry{}
		if r, ok := s.scan.LastResult(); ok {
			entries = r
		}
		s.scan.TriggerAsync(15 * time.Second)

		data, err := json.Marshal(entries)
		if err != nil {
			log.Errorf("bluetooth: marshal scan result: %v", err)
			return
		}
		if _, err := rsp.Write(data); err != nil {
			log.Warnf("bluetooth: scan read response: %v", err)
		}
	})
}

// addNetworkDetailsChar wires the read-only Network details characteristic
// to a fresh wifi.Snapshot on every read.
func (s *Server) addNetworkDetailsChar(svc *gatt.Service) {
	char := svc.AddCharacteristic(gatt.MustParseUUID(NetworkDetailsCharUUID))
	char.HandleReadFunc(func(rsp gatt.ResponseWriter, req *gatt.ReadRequest) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		snap, err := s.wifi.Snapshot(ctx)
		if err != nil {
			log.Warnf("bluetooth: wifi snapshot: %v", err)
		}
		data, err := json.Marshal(snap)
		if err != nil {
			log.Errorf("bluetooth: marshal network details: %v", err)
			return
		}
		if _, err := rsp.Write(data); err != nil {
			log.Warnf("bluetooth: network details read response: %v", err)
		}
	})
}

// addBluetoothDetailsChar wires the read-only Bluetooth details
// characteristic, built from BlueZ adapter/device properties over D-Bus
// since paypal/gatt's Device interface doesn't expose them.
func (s *Server) addBluetoothDetailsChar(svc *gatt.Service) {
	char := svc.AddCharacteristic(gatt.MustParseUUID(BluetoothDetailsCharUUID))
	char.HandleReadFunc(func(rsp gatt.ResponseWriter, req *gatt.ReadRequest) {
		snap := s.bluetoothSnapshot()
		data, err := json.Marshal(snap)
		if err != nil {
			log.Errorf("bluetooth: marshal bluetooth details: %v", err)
			return
		}
		if _, err := rsp.Write(data); err != nil {
			log.Warnf("bluetooth: bluetooth details read response: %v", err)
		}
	})
}

// addDeviceInfoChar wires the read-only Device info characteristic.
func (s *Server) addDeviceInfoChar(svc *gatt.Service) {
	char := svc.AddCharacteristic(gatt.MustParseUUID(DeviceInfoCharUUID))
	char.HandleReadFunc(func(rsp gatt.ResponseWriter, req *gatt.ReadRequest) {
		s.mu.Lock()
		info := DeviceInfo{
			PairedAt:        s.pairedAt,
			FirmwareVersion: s.static.FirmwareVersion,
			DeviceName:      s.static.DeviceName,
		}
		s.mu.Unlock()

		data, err := json.Marshal(info)
		if err != nil {
			log.Errorf("bluetooth: marshal device info: %v", err)
			return
		}
		if _, err := rsp.Write(data); err != nil {
			log.Warnf("bluetooth: device info read response: %v", err)
		}
	})
}

// SetPairedAt updates the Device info characteristic's paired_at field once
// pairing completes (pkg/pairing persists the record; this just keeps the
// in-memory read-through view current).
func (s *Server) SetPairedAt(pairedAt string) {
	s.mu.Lock()
	s.pairedAt = pairedAt
	s.mu.Unlock()
}

// Close shuts down the underlying HCI device, dropping any connected
// central and stopping advertising.
func (s *Server) Close() error {
	s.mu.Lock()
	c := s.central
	s.mu.Unlock()
	if c != nil {
		_ = (*c).Close()
	}
	return nil
}

// bluetoothSnapshot queries BlueZ over D-Bus for the adapter address and
// advertising state, and the connected central (if any) for its RSSI.
// paypal/gatt manages the HCI socket directly and doesn't go through BlueZ,
// so this reaches BlueZ's D-Bus API independently for the handful of
// properties the Bluetooth details characteristic needs.
func (s *Server) bluetoothSnapshot() BluetoothSnapshot {
	snap := BluetoothSnapshot{}

	s.mu.Lock()
	connected := s.central != nil
	var centralID string
	if s.central != nil {
		centralID = (*s.central).ID()
	}
	s.mu.Unlock()

	snap.ConnectedCentral = centralID
	snap.Advertising = !connected

	conn, err := dbus.SystemBus()
	if err != nil {
		log.Debugf("bluetooth: system bus unavailable for snapshot: %v", err)
		return snap
	}

	adapterPath := dbus.ObjectPath(fmt.Sprintf("/org/bluez/hci%d", adapterIndex(s.adapterID)))
	adapter := conn.Object("org.bluez", adapterPath)

	if addr, err := getStringProperty(adapter, "org.bluez.Adapter1", "Address"); err == nil {
		snap.PeripheralAddress = addr
	}
	if discoverable, err := getBoolProperty(adapter, "org.bluez.Adapter1", "Discoverable"); err == nil {
		snap.Advertising = snap.Advertising && discoverable
	}

	if connected && centralID != "" {
		devPath := dbus.ObjectPath(fmt.Sprintf("%s/dev_%s", adapterPath, dbusAddressSuffix(centralID)))
		dev := conn.Object("org.bluez", devPath)
		if rssi, err := getInt16Property(dev, "org.bluez.Device1", "RSSI"); err == nil {
			snap.RSSI = int(rssi)
		}
	}

	return snap
}

// adapterIndex maps the configured adapter selector (-1 meaning "first
// available", matching paypal/gatt's LnxDeviceID convention) to a concrete
// HCI index for the BlueZ object path.
func adapterIndex(adapterID int) int {
	if adapterID < 0 {
		return 0
	}
	return adapterID
}

// dbusAddressSuffix turns a "AA:BB:CC:DD:EE:FF" central ID into BlueZ's
// "AA_BB_CC_DD_EE_FF" object path segment.
func dbusAddressSuffix(addr string) string {
	out := make([]byte, 0, len(addr))
	for i := 0; i < len(addr); i++ {
		if addr[i] == ':' {
			out = append(out, '_')
		} else {
			out = append(out, addr[i])
		}
	}
	return string(out)
}

func getStringProperty(obj dbus.BusObject, iface, name string) (string, error) {
	v, err := obj.GetProperty(iface + "." + name)
	if err != nil {
		return "", err
	}
	str, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("property %s.%s is not a string", iface, name)
	}
	return str, nil
}

func getBoolProperty(obj dbus.BusObject, iface, name string) (bool, error) {
	v, err := obj.GetProperty(iface + "." + name)
	if err != nil {
		return false, err
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("property %s.%s is not a bool", iface, name)
	}
	return b, nil
}

func getInt16Property(obj dbus.BusObject, iface, name string) (int16, error) {
	v, err := obj.GetProperty(iface + "." + name)
	if err != nil {
		return 0, err
	}
	n, ok := v.Value().(int16)
	if !ok {
		return 0, fmt.Errorf("property %s.%s is not an int16", iface, name)
	}
	return n, nil
}
