// Package ratelimit provides the process-wide request gate shared by every batch worker.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// DefaultMinInterval is the spacing between any two external calls
const DefaultMinInterval = 3 * time.Second

// Gate enforces a minimum interval between granted acquisitions across all goroutines.
// Unlike a token bucket it never bursts: two grants are always at least MinInterval apart.
type Gate struct {
	mu          sync.Mutex
	last        time.Time
	minInterval time.Duration
	logger      arbor.ILogger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGate creates a gate. A non-positive interval disables waiting.
func NewGate(minInterval time.Duration, logger arbor.ILogger) *Gate {
	return &Gate{
		minInterval: minInterval,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// MinInterval returns the configured spacing
func (g *Gate) MinInterval() time.Duration {
	return g.minInterval
}

// Acquire blocks until MinInterval has elapsed since the previous grant.
// The wait happens while holding the gate, so callers are served in lock order.
// A cancelled context returns its error without consuming a grant.
func (g *Gate) Acquire(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if !g.last.IsZero() {
		wait := g.minInterval - g.now().Sub(g.last)
		if wait > 0 {
			if g.logger != nil {
				g.logger.Debug().
					Str("wait", wait.String()).
					Msg("Global rate limiting")
			}
			if err := g.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	g.last = g.now()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
