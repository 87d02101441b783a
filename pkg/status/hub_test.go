package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_SubscribePrimesWithCurrent(t *testing.T) {
	h := NewHub()
	h.Publish(CredentialsReceived("HomeNet"))

	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	select {
	case s := <-ch:
		assert.Equal(t, KindCredentialsReceived, s.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected an immediate priming notification")
	}
}

func TestHub_PublishOrder(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()
	require.Equal(t, KindIdle, (<-ch).Kind)

	sequence := []Status{
		CredentialsReceived("A"),
		Connecting("A", 1),
		Connected("A", "10.0.0.2", time.Now()),
	}
	for _, s := range sequence {
		h.Publish(s)
	}

	for _, want := range sequence {
		got := <-ch
		assert.Equal(t, want.Kind, got.Kind)
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe()
	<-ch // drain priming value
	unsubscribe()

	h.Publish(Idle())
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestHub_Current(t *testing.T) {
	h := NewHub()
	assert.Equal(t, KindIdle, h.Current().Kind)
	h.Publish(Failed("A", "wifi_assoc_failed"))
	assert.Equal(t, KindFailed, h.Current().Kind)
}
