package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestGate_FirstAcquireIsImmediate(t *testing.T) {
	gate := NewGate(time.Hour, arbor.NewLogger())

	start := time.Now()
	require.NoError(t, gate.Acquire(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestGate_SpacesConcurrentGrants(t *testing.T) {
	const (
		interval = 30 * time.Millisecond
		callers  = 6
	)
	gate := NewGate(interval, arbor.NewLogger())

	var (
		mu     sync.Mutex
		grants []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gate.Acquire(context.Background()))
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, grants, callers)
	sort.Slice(grants, func(i, j int) bool { return grants[i].Before(grants[j]) })

	// Total span covers every interval between consecutive grants
	assert.GreaterOrEqual(t, grants[callers-1].Sub(grants[0]), time.Duration(callers-1)*interval-15*time.Millisecond)
}

func TestGate_WaitsUsingInjectedClock(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var slept []time.Duration

	gate := NewGate(3*time.Second, nil)
	gate.now = func() time.Time { return now }
	gate.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		now = now.Add(d)
		return nil
	}

	ctx := context.Background()
	require.NoError(t, gate.Acquire(ctx))
	now = now.Add(time.Second)
	require.NoError(t, gate.Acquire(ctx))
	now = now.Add(5 * time.Second)
	require.NoError(t, gate.Acquire(ctx))

	assert.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestGate_CancelledContext(t *testing.T) {
	gate := NewGate(time.Hour, nil)
	require.NoError(t, gate.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := gate.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGate_ZeroIntervalNeverWaits(t *testing.T) {
	gate := NewGate(0, nil)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, gate.Acquire(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
