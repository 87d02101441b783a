package wifi

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ScanCoalescer wraps an underlying scan function so overlapping Scan calls
// share one in-flight scan and a short-lived cache serves requests made
// shortly after the last one completed. Built on
// golang.org/x/sync/singleflight, the standard Go idiom for this pattern.
type ScanCoalescer struct {
	group singleflight.Group
	fn    func(ctx context.Context, timeout time.Duration) ([]ScanEntry, error)

	mu       sync.Mutex
	cached   []ScanEntry
	cachedAt time.Time
	ttl      time.Duration
}

// NewScanCoalescer wraps fn, caching its result for ttl.
func NewScanCoalescer(ttl time.Duration, fn func(ctx context.Context, timeout time.Duration) ([]ScanEntry, error)) *ScanCoalescer {
	return &ScanCoalescer{fn: fn, ttl: ttl}
}

// Scan returns the last cached result immediately if it's still fresh or a
// scan is already in flight (the in-flight caller's result is shared, never
// blocking callers beyond the single underlying scan's duration); otherwise
// it starts a new scan. Never exceeds timeout regardless of how many
// concurrent callers triggered it.
func (c *ScanCoalescer) Scan(ctx context.Context, timeout time.Duration) ([]ScanEntry, error) {
	c.mu.Lock()
	if c.ttl > 0 && !c.cachedAt.IsZero() && time.Since(c.cachedAt) < c.ttl {
		cached := c.cached
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("scan", func() (interface{}, error) {
		entries, err := c.fn(ctx, timeout)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cached = entries
		c.cachedAt = time.Now()
		c.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]ScanEntry), nil
}

// TriggerAsync starts a coalesced scan in the background (or joins one
// already running) and returns immediately without waiting for it to finish.
// This is what the Scan characteristic's Read handler calls, which must
// never block: it returns the last cached result (or an empty result) while
// the scan completes out-of-band and replaces the cache.
func (c *ScanCoalescer) TriggerAsync(timeout time.Duration) {
	go func() {
		// Deliberately detached from the triggering GATT read's lifetime: the
		// scan must keep running (and populate the cache for the next
		// reader) even after this read has already returned.
		_, _ = c.Scan(context.Background(), timeout)
	}()
}

// LastResult returns the cached result without triggering a new scan, or
// (nil, false) if no scan has ever completed. Used by GATT reads that must
// return immediately while a scan is in flight.
func (c *ScanCoalescer) LastResult() ([]ScanEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedAt.IsZero() {
		return nil, false
	}
	return c.cached, true
}
