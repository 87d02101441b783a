// Package provisioning implements the provisioning controller: the sole
// owner of Status, dispatching credential writes and driving the Status
// FSM. Cancellation of a superseded attempt uses a generation counter:
// each Submit bumps it and cancels the prior attempt's context, so a stale
// in-flight switch can never overwrite a newer one's outcome.
package provisioning

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sagehq/provisiond/pkg/credentials"
	"github.com/sagehq/provisiond/pkg/errs"
	"github.com/sagehq/provisiond/pkg/pairing"
	"github.com/sagehq/provisiond/pkg/status"
	"github.com/sagehq/provisiond/pkg/wifi"
)

// Controller receives exactly one input at a time -- a validated
// Credentials write handed over by the GATT server -- and drives Status
// through Idle -> CredentialsReceived -> Connecting* -> (Connected|Failed).
type Controller struct {
	deviceID   string
	deviceName string

	hub           *status.Hub
	wifi          wifi.Wifi
	store         *pairing.Store
	switchTimeout time.Duration

	// onPaired, if set, is called after a PairingRecord is persisted so the
	// GATT layer's Device info read-through view picks up paired_at without
	// pkg/provisioning importing pkg/bluetooth (Controller satisfies the
	// bluetooth package's Controller interface structurally, never by
	// import, to avoid a cycle).
	onPaired func(pairing.Record)

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// New builds a Controller. switchTimeout bounds the whole Wi-Fi switch call.
func New(deviceID, deviceName string, hub *status.Hub, w wifi.Wifi, store *pairing.Store, switchTimeout time.Duration) *Controller {
	return &Controller{
		deviceID:      deviceID,
		deviceName:    deviceName,
		hub:           hub,
		wifi:          w,
		store:         store,
		switchTimeout: switchTimeout,
	}
}

// OnPaired registers a callback invoked after every successful pairing
// record save (not every Connected -- see Submit's PersistenceError path).
func (c *Controller) OnPaired(fn func(pairing.Record)) {
	c.mu.Lock()
	c.onPaired = fn
	c.mu.Unlock()
}

// Submit validates raw and, on success, cancels any in-flight switch and
// starts a new one. It never blocks on the outcome: the switch runs in its
// own goroutine and all further progress is observable only via Status.
func (c *Controller) Submit(raw []byte) error {
	creds, err := credentials.Parse(raw)
	if err != nil {
		c.hub.Publish(status.Failed("", string(errs.InvalidCredentials)))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.switchTimeout)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	gen := c.generation
	c.cancel = cancel
	c.mu.Unlock()

	c.hub.Publish(status.CredentialsReceived(creds.SSID))
	go c.run(ctx, gen, creds)
	return nil
}

// run performs the switch and reports its outcome, but only if gen is still
// current -- a superseded attempt's terminal Status is dropped silently so a
// stale Connecting{A} can never "win" a race against a later Connected{B}.
func (c *Controller) run(ctx context.Context, gen uint64, creds credentials.Credentials) {
	defer func() {
		c.mu.Lock()
		if c.generation == gen {
			c.cancel = nil
		}
		c.mu.Unlock()
	}()

	c.hub.Publish(status.Connecting(creds.SSID, 1))

	outcome, err := c.wifi.Switch(ctx, creds.SSID, creds.Password)
	if !c.isCurrent(gen) {
		log.Debugf("provisioning: attempt for %s superseded, dropping outcome", creds.SSID)
		return
	}

	if err != nil {
		reason := reasonFor(err)
		log.Warnf("provisioning: switch to %s failed: %s", creds.SSID, reason)
		c.hub.Publish(status.Failed(creds.SSID, reason))
		return
	}

	now := time.Now()
	c.hub.Publish(status.Connected(creds.SSID, outcome.IPv4, now))

	rec := pairing.NewRecord(c.deviceID, c.deviceName, now)
	if err := c.store.Save(rec); err != nil {
		// Connected is still reported; persistence failure is non-fatal
		// and surfaced only in logs, never retried automatically.
		log.Errorf("provisioning: failed to persist pairing record: %v", err)
		return
	}

	c.mu.Lock()
	onPaired := c.onPaired
	c.mu.Unlock()
	if onPaired != nil {
		onPaired(rec)
	}
}

func (c *Controller) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen
}

// Current returns a snapshot of the canonical Status without blocking.
func (c *Controller) Current() status.Status {
	return c.hub.Current()
}

// Subscribe registers for Status notifications, primed with the current
// value.
func (c *Controller) Subscribe() (<-chan status.Status, func()) {
	return c.hub.Subscribe()
}

// reasonFor maps a wifi.Switch error to one of the declared error kinds,
// never surfacing the underlying error text verbatim -- it may be
// OS/driver output that echoes the attempted PSK in some NetworkManager
// error strings, so that risk is avoided entirely rather than trusting
// every driver not to.
func reasonFor(err error) string {
	if kind, ok := errs.KindOf(err); ok {
		return string(kind)
	}
	return string(errs.Internal)
}
