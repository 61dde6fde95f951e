// Package workers runs a bounded set of goroutines over a stream of jobs.
package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/psuscan/internal/common"
)

// ErrPoolClosed is returned by Submit once dispatch has stopped
var ErrPoolClosed = errors.New("worker pool is shutting down")

// Job represents a work item to be processed
type Job func(ctx context.Context) error

// Pool manages a pool of workers for parallel processing.
// Submit blocks until a worker is free, so no job is ever queued behind a
// busy worker; stopping dispatch therefore leaves nothing half-queued.
type Pool struct {
	jobs       chan Job
	maxWorkers int
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	closeOnce  sync.Once
	closed     chan struct{}
	errors     []error
	errorsMu   sync.Mutex
	logger     arbor.ILogger
}

// NewPool creates a new worker pool. Jobs run under a context derived from parent.
func NewPool(parent context.Context, maxWorkers int, logger arbor.ILogger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = arbor.NewLogger()
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		jobs:       make(chan Job),
		maxWorkers: maxWorkers,
		ctx:        ctx,
		cancel:     cancel,
		closed:     make(chan struct{}),
		errors:     make([]error, 0),
		logger:     logger,
	}
}

// Start begins the worker pool
func (p *Pool) Start() {
	p.logger.Debug().
		Int("max_workers", p.maxWorkers).
		Msg("Starting worker pool")

	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit hands job to the next free worker.
// It returns ctx's error when ctx ends first, or ErrPoolClosed after Close or Shutdown.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case <-p.closed:
		return ErrPoolClosed
	default:
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return ErrPoolClosed
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Close stops accepting jobs; running jobs continue
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
}

// Wait closes the pool and waits for all running jobs to complete
func (p *Pool) Wait() {
	p.Close()
	p.wg.Wait()
}

// WaitTimeout is Wait bounded by timeout. It reports whether every job finished.
func (p *Pool) WaitTimeout(timeout time.Duration) bool {
	p.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Shutdown cancels running jobs and waits for the workers to exit
func (p *Pool) Shutdown() {
	p.cancel()
	p.Wait()
	p.logger.Debug().Msg("Worker pool shutdown complete")
}

// Errors returns all collected errors
func (p *Pool) Errors() []error {
	p.errorsMu.Lock()
	defer p.errorsMu.Unlock()
	out := make([]error, len(p.errors))
	copy(out, p.errors)
	return out
}

// worker processes jobs until the pool closes
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			if err := p.run(id, job); err != nil {
				p.errorsMu.Lock()
				p.errors = append(p.errors, err)
				p.errorsMu.Unlock()

				p.logger.Error().
					Err(err).
					Int("worker_id", id).
					Msg("Job failed")
			}

		case <-p.closed:
			p.logger.Debug().
				Int("worker_id", id).
				Msg("Worker stopping - pool closed")
			return
		}
	}
}

// run executes one job. A panic becomes a *common.PanicError so the worker survives.
func (p *Pool) run(id int, job Job) error {
	return common.SafeCall(p.logger, fmt.Sprintf("worker-%d", id), func() error {
		return job(p.ctx)
	})
}
