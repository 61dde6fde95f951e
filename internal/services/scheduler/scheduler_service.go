// Package scheduler runs a job on a cron schedule, skipping ticks that land
// while the previous run is still going.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/psuscan/internal/common"
)

// Job is one scheduled unit of work. ctx ends when the scheduler stops.
type Job func(ctx context.Context) error

// jobEntry represents the registered job with its run status
type jobEntry struct {
	name      string
	schedule  string
	handler   Job
	cronID    cron.EntryID
	lastRun   *time.Time
	isRunning bool
	lastError string
	runs      int
	skipped   int
}

// Status is a point-in-time view of the registered job
type Status struct {
	Name      string
	Schedule  string
	IsRunning bool
	LastRun   *time.Time
	NextRun   time.Time
	LastError string
	Runs      int
	Skipped   int
}

// Service owns the cron runner
type Service struct {
	cron   *cron.Cron
	logger arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entry   *jobEntry
	running bool
}

// NewService creates a scheduler. Job contexts derive from parent.
func NewService(parent context.Context, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cron:   cron.New(cron.WithParser(common.ScheduleParser)),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterJob adds the job. Only one job may be registered.
func (s *Service) RegisterJob(name, schedule string, handler Job) error {
	if err := common.ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry != nil {
		return fmt.Errorf("job %s already registered", s.entry.name)
	}

	entry := &jobEntry{name: name, schedule: schedule, handler: handler}
	cronID, err := s.cron.AddFunc(schedule, s.executeJob)
	if err != nil {
		return fmt.Errorf("failed to add job to cron: %w", err)
	}
	entry.cronID = cronID
	s.entry = entry

	s.logger.Info().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Job registered")
	return nil
}

// Start begins firing ticks
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if s.entry == nil {
		return fmt.Errorf("no job registered")
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("job_name", s.entry.name).
		Str("next_run", s.cron.Entry(s.entry.cronID).Next.Format(time.RFC3339)).
		Msg("Scheduler started")
	return nil
}

// Stop halts new ticks, cancels the running job and waits for it to return
func (s *Service) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.cancel()
	s.mu.Unlock()

	if wasRunning {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// RunNow executes the job immediately, subject to the same overlap rule as ticks.
// It reports whether the job ran.
func (s *Service) RunNow() bool {
	return s.run()
}

// GetStatus returns the job status
func (s *Service) GetStatus() (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry == nil {
		return Status{}, false
	}
	e := s.entry
	return Status{
		Name:      e.name,
		Schedule:  e.schedule,
		IsRunning: e.isRunning,
		LastRun:   e.lastRun,
		NextRun:   s.cron.Entry(e.cronID).Next,
		LastError: e.lastError,
		Runs:      e.runs,
		Skipped:   e.skipped,
	}, true
}

func (s *Service) executeJob() {
	s.run()
}

// run marks the entry running, or counts a skip when it already is
func (s *Service) run() bool {
	s.mu.Lock()
	entry := s.entry
	if entry == nil || s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	if entry.isRunning {
		entry.skipped++
		s.mu.Unlock()
		s.logger.Warn().
			Str("job_name", entry.name).
			Msg("Previous run still in progress, skipping tick")
		return false
	}
	entry.isRunning = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()

	started := time.Now()
	s.logger.Info().Str("job_name", entry.name).Msg("Job execution started")

	err := common.SafeCall(s.logger, entry.name, func() error {
		return entry.handler(s.ctx)
	})

	finished := time.Now()
	s.mu.Lock()
	entry.isRunning = false
	entry.lastRun = &finished
	entry.runs++
	entry.lastError = ""
	if err != nil {
		entry.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().
			Str("job_name", entry.name).
			Err(err).
			Str("duration", finished.Sub(started).Round(time.Second).String()).
			Msg("Job execution failed")
	} else {
		s.logger.Info().
			Str("job_name", entry.name).
			Str("duration", finished.Sub(started).Round(time.Second).String()).
			Msg("Job execution completed")
	}
	return true
}
