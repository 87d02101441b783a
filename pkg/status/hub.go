package status

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// subscriberBuffer bounds how many transitions a slow subscriber can lag by
// before updates are dropped for it rather than blocking the publisher. A
// provisioning attempt only ever produces a handful of transitions, so this
// is never exercised in practice.
const subscriberBuffer = 16

// Hub is the single owner of the canonical Status value and the broadcast
// point every GATT subscriber reads from.
type Hub struct {
	mu          sync.Mutex
	current     Status
	subscribers map[int]chan Status
	nextID      int
}

// NewHub creates a Hub seeded with Idle.
func NewHub() *Hub {
	return &Hub{current: Idle(), subscribers: make(map[int]chan Status)}
}

// Current returns a snapshot of the current Status. Cheap, non-blocking.
func (h *Hub) Current() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Publish sets the new canonical Status and fans it out to every subscriber
// in transition order.
func (h *Hub) Publish(s Status) {
	h.mu.Lock()
	h.current = s
	subs := make([]chan Status, 0, len(h.subscribers))
	for _, ch := range h.subscribers {
		subs = append(subs, ch)
	}
	h.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- s:
		default:
			log.Warn("status: dropping notification for slow subscriber")
		}
	}
}

// Subscribe registers a new subscriber and immediately primes it with the
// current Status, so a late joiner's first notification always matches
// what's current. The returned function unsubscribes.
func (h *Hub) Subscribe() (<-chan Status, func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	ch := make(chan Status, subscriberBuffer)
	ch <- h.current
	h.subscribers[id] = ch
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(c)
		}
	}
	return ch, unsubscribe
}
