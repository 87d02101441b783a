package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"

	"github.com/sagehq/provisiond/pkg/bluetooth"
	"github.com/sagehq/provisiond/pkg/config"
	"github.com/sagehq/provisiond/pkg/pairing"
	"github.com/sagehq/provisiond/pkg/provisioning"
	"github.com/sagehq/provisiond/pkg/status"
	"github.com/sagehq/provisiond/pkg/supervisor"
	"github.com/sagehq/provisiond/pkg/wifi"
)

func main() {
	// if both verbose and quiet are chosen, e.g., -v -q, the verbose dominates
	var traceLevel = flag.Bool("v", false, "verbose off by default, TraceLevel")
	var infoLevel = flag.Bool("q", false, "quiet off by default, InfoLevel")

	flag.Parse()

	if *traceLevel {
		log.SetLevel(log.TraceLevel)
	} else if *infoLevel {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(log.DebugLevel)
	}

	log.SetFormatter(&logrus.TextFormatter{
		DisableQuote: true,
		ForceColors:  true,
	})

	if err := run(); err != nil {
		log.Errorf("provisiond: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Infof("provisiond: starting, advertised name %q", cfg.AdvertisedName())

	hub := status.NewHub()
	var (
		store      *pairing.Store
		w          wifi.Wifi
		scan       *wifi.ScanCoalescer
		controller *provisioning.Controller
		btServer   *bluetooth.Server
		pairedAt   string
	)

	health := supervisor.NewHealthServer(cfg.HealthAddr, hub)
	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	go func() {
		if err := health.Start(healthCtx); err != nil {
			log.Errorf("provisiond: health server stopped: %v", err)
		}
	}()

	err := supervisor.RunStartup([]supervisor.Step{
		{
			Name: "pairing_store",
			Run: func(ctx context.Context) error {
				store = pairing.NewStore(cfg.StateDir)
				if rec, ok := store.Load(); ok {
					pairedAt = rec.PairedAt
					hub.Publish(status.Idle())
					log.Infof("provisiond: loaded pairing record for %s, paired_at=%s", rec.DeviceID, rec.PairedAt)
				} else {
					hub.Publish(status.Idle())
				}
				return nil
			},
		},
		{
			Name: "wifi_adapter",
			Run: func(ctx context.Context) error {
				w = wifi.New(cfg.WifiIface, cfg.StateDir, cfg.AssocTimeout, cfg.DHCPTimeout, cfg.SwitchTotalTimeout)
				scan = wifi.NewScanCoalescer(cfg.ScanCacheTTL, w.Scan)
				return nil
			},
		},
		{
			Name: "provisioning_controller",
			Run: func(ctx context.Context) error {
				deviceID := cfg.AdvertisedName()
				controller = provisioning.New(deviceID, cfg.AdvertisedName(), hub, w, store, cfg.SwitchTotalTimeout)
				return nil
			},
		},
		{
			Name: "bluetooth_gatt_server",
			Run: func(ctx context.Context) error {
				static := bluetooth.DeviceInfoStatic{
					FirmwareVersion: cfg.FirmwareVersion,
					DeviceName:      cfg.AdvertisedName(),
				}
				srv, err := bluetooth.New(cfg.BtAdapterID, controller, w, scan, static, pairedAt)
				if err != nil {
					return err
				}
				btServer = srv
				controller.OnPaired(func(rec pairing.Record) {
					btServer.SetPairedAt(rec.PairedAt)
				})
				return nil
			},
		},
	})
	if err != nil {
		return err
	}

	health.SetReady(true)
	log.Info("provisiond: ready")

	shutdownCtx, cancel := supervisor.ShutdownSignal()
	defer cancel()
	<-shutdownCtx.Done()

	log.Info("provisiond: shutdown signal received, draining")
	if !supervisor.WaitForQuiescence(controller, cfg.SwitchTotalTimeout) {
		log.Warn("provisiond: in-flight Wi-Fi switch did not settle before shutdown timeout")
	}

	if err := btServer.Close(); err != nil {
		log.Errorf("provisiond: error closing bluetooth server: %v", err)
	}
	stopHealth()
	time.Sleep(50 * time.Millisecond)

	log.Info("provisiond: clean shutdown")
	return nil
}
