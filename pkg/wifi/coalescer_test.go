package wifi

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanCoalescer_ConcurrentCallersShareOneScan(t *testing.T) {
	var calls int32
	block := make(chan struct{})
	c := NewScanCoalescer(0, func(ctx context.Context, timeout time.Duration) ([]ScanEntry, error) {
		atomic.AddInt32(&calls, 1)
		<-block
		return []ScanEntry{{SSID: "HomeNet", RSSI: -40}}, nil
	})

	var wg sync.WaitGroup
	results := make([][]ScanEntry, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Scan(context.Background(), time.Second)
			require.NoError(t, err)
			results[i] = res
		}(i)
	}

	time.Sleep(50 * time.Millisecond) // let all 5 calls enter the group
	close(block)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "only one underlying scan should have run")
	for _, r := range results {
		assert.Equal(t, []ScanEntry{{SSID: "HomeNet", RSSI: -40}}, r)
	}
}

func TestScanCoalescer_CacheServesWithinTTL(t *testing.T) {
	var calls int32
	c := NewScanCoalescer(time.Hour, func(ctx context.Context, timeout time.Duration) ([]ScanEntry, error) {
		atomic.AddInt32(&calls, 1)
		return []ScanEntry{{SSID: "Net", RSSI: -50}}, nil
	})

	_, err := c.Scan(context.Background(), time.Second)
	require.NoError(t, err)
	_, err = c.Scan(context.Background(), time.Second)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "second call within TTL should hit the cache")
}

func TestScanCoalescer_LastResultBeforeAnyScan(t *testing.T) {
	c := NewScanCoalescer(time.Second, func(ctx context.Context, timeout time.Duration) ([]ScanEntry, error) {
		return nil, nil
	})
	_, ok := c.LastResult()
	assert.False(t, ok)
}

func TestScanCoalescer_TriggerAsyncDoesNotBlock(t *testing.T) {
	block := make(chan struct{})
	c := NewScanCoalescer(0, func(ctx context.Context, timeout time.Duration) ([]ScanEntry, error) {
		<-block
		return []ScanEntry{{SSID: "Net", RSSI: -60}}, nil
	})

	start := time.Now()
	c.TriggerAsync(time.Second)
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	_, ok := c.LastResult()
	assert.False(t, ok, "scan is still in flight, cache not populated yet")

	close(block)
	require.Eventually(t, func() bool {
		_, ok := c.LastResult()
		return ok
	}, time.Second, 10*time.Millisecond)
}
