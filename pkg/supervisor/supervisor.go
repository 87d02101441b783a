package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sagehq/provisiond/pkg/status"
)

// StartupDeadline is the soft per-step deadline: each startup step must
// complete within this window or the process fails to start.
const StartupDeadline = 10 * time.Second

// Step is one stage of the startup sequence: pairing store, Wi-Fi adapter
// init, provisioning controller, then GATT advertising. Name is used only
// for logging and the returned error.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunStartup executes steps in order, each under its own StartupDeadline.
// The first failure aborts the sequence.
func RunStartup(steps []Step) error {
	for _, st := range steps {
		ctx, cancel := context.WithTimeout(context.Background(), StartupDeadline)
		err := st.Run(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("startup step %q: %w", st.Name, err)
		}
		log.Infof("supervisor: startup step %q complete", st.Name)
	}
	return nil
}

// quiescer is the narrow slice of Controller the supervisor needs to decide
// whether an in-flight switch has finished.
type quiescer interface {
	Current() status.Status
}

// WaitForQuiescence polls src until its Status is terminal (Connected,
// Failed) or Idle/Disconnected, or timeout elapses -- whichever comes
// first. Used during shutdown to let any in-flight switch finish or hit
// its own timeout before the process exits.
func WaitForQuiescence(src quiescer, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		s := src.Current()
		if s.Kind != status.KindConnecting {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		<-ticker.C
	}
}

// ShutdownSignal returns a context canceled on SIGTERM or SIGINT.
func ShutdownSignal() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
}
