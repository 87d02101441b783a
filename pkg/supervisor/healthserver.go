// Package supervisor handles process lifecycle: startup ordering with soft
// deadlines, signal-driven shutdown, and a small debug HTTP/WebSocket surface
// (health probe + live Status stream).
package supervisor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/sagehq/provisiond/pkg/status"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HealthServer exposes a health probe (OK once the Bluetooth adapter has
// initialized and the GATT service is registered) plus a /status/stream
// websocket mirroring the Status broadcast, for checking on a headless
// device without a BLE radio nearby.
type HealthServer struct {
	addr  string
	hub   *status.Hub
	srv   *http.Server
	ready atomic.Bool
}

// NewHealthServer builds the server; it does not start listening until Start
// is called.
func NewHealthServer(addr string, hub *status.Hub) *HealthServer {
	h := &HealthServer{addr: addr, hub: hub}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.HandleFunc("/status/stream", h.handleStatusStream)
	h.srv = &http.Server{Addr: addr, Handler: mux}

	return h
}

// SetReady flips the health probe's verdict. Called once bt_init has
// completed and the GATT service is registered.
func (h *HealthServer) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// gracefully.
func (h *HealthServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("supervisor: health endpoint listening on %s", h.addr)
		if err := h.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return h.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (h *HealthServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		log.Errorf("supervisor: failed to encode health response: %v", err)
	}
}

func (h *HealthServer) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("supervisor: status stream upgrade failed: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debugf("supervisor: error closing status stream: %v", err)
		}
	}()

	ch, unsub := h.hub.Subscribe()
	defer unsub()

	for s := range ch {
		data, err := json.Marshal(s)
		if err != nil {
			log.Errorf("supervisor: failed to marshal status for stream: %v", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debugf("supervisor: status stream write stopped: %v", err)
			return
		}
	}
}
