// -----------------------------------------------------------------------
// Batch orchestrator - runs the per-ticker pipeline over a worker pool
// -----------------------------------------------------------------------

// Package batch drives a ticker list through the extraction pipeline with
// bounded workers, retries, periodic progress saves and graceful shutdown.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/psuscan/internal/common"
	"github.com/ternarybob/psuscan/internal/extraction"
	"github.com/ternarybob/psuscan/internal/interfaces"
	"github.com/ternarybob/psuscan/internal/models"
	"github.com/ternarybob/psuscan/internal/retry"
	"github.com/ternarybob/psuscan/internal/services/workers"
)

// Extractor produces one ticker's terminal result, or a transient error to retry
type Extractor interface {
	ExtractFromTicker(ctx context.Context, ticker string, monthsBack int) (*models.ExtractionResult, error)
}

// Settings control one batch run
type Settings struct {
	MaxWorkers          int
	MonthsBack          int
	SaveEvery           int
	ResumeFrom          string
	MaxTickers          int
	Fresh               bool
	DrainTimeout        time.Duration
	MinInterval         time.Duration
	HighUpsideThreshold float64
	OutputDir           string
	Policy              retry.Policy
	Thresholds          extraction.Thresholds
}

// Summary reports the outcome of a run
type Summary struct {
	RunID       string
	Stats       models.Stats
	Dispatched  int
	HighUpside  int
	LowUpside   int
	Results     int
	Interrupted bool
	Elapsed     time.Duration
	Files       OutputFiles
}

// Orchestrator runs batches. It is safe to call Run again after it returns.
type Orchestrator struct {
	extractor Extractor
	store     interfaces.ProgressStore
	archive   interfaces.ResultStorage
	events    *EventLog
	settings  Settings
	logger    arbor.ILogger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an orchestrator. archive may be nil.
func NewOrchestrator(
	extractor Extractor,
	store interfaces.ProgressStore,
	archive interfaces.ResultStorage,
	events *EventLog,
	settings Settings,
	logger arbor.ILogger,
) *Orchestrator {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	if events == nil {
		events, _ = NewEventLog("", logger)
	}
	if settings.MaxWorkers <= 0 {
		settings.MaxWorkers = 1
	}
	if settings.SaveEvery <= 0 {
		settings.SaveEvery = 10
	}
	return &Orchestrator{
		extractor: extractor,
		store:     store,
		archive:   archive,
		events:    events,
		settings:  settings,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Run processes tickers until every one reaches a terminal state or ctx is cancelled.
// Cancelling ctx stops dispatch; running tickers get DrainTimeout to finish before
// they are abandoned. Progress and outputs are always written before Run returns.
func (o *Orchestrator) Run(ctx context.Context, tickers []string) (*Summary, error) {
	started := o.now()
	runID := common.NewRunID()

	state := o.loadState()
	state.Stats.TotalTickers = len(tickers)
	if state.Stats.StartTime.IsZero() {
		state.Stats.StartTime = models.NewTimestamp(started)
	}

	selected := o.selectTickers(tickers)
	pending, skipped := o.skipCompleted(selected, state)
	state.Stats.SkippedTickers = skipped

	shared := NewSharedState(state, o.settings.HighUpsideThreshold)
	shared.now = o.now

	// A panic on this goroutine still persists what was recorded, then crashes as before
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Str("run_id", runID).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Batch panicked - saving progress")
			o.save(shared)
			panic(r)
		}
	}()

	o.events.Logf("Run %s: %d tickers loaded, %d selected, %d already done, %d to process with %d workers",
		runID, len(tickers), len(selected), skipped, len(pending), o.settings.MaxWorkers)

	// Work continues past a signal until the drain window closes
	pool := workers.NewPool(context.WithoutCancel(ctx), o.settings.MaxWorkers, o.logger)
	pool.Start()
	defer pool.Shutdown()

	dispatched := 0
	for _, ticker := range pending {
		if ctx.Err() != nil {
			break
		}
		err := pool.Submit(ctx, func(jobCtx context.Context) error {
			return o.processTicker(jobCtx, runID, ticker, shared)
		})
		if err != nil {
			break
		}
		dispatched++
	}

	interrupted := o.drain(ctx, pool, shared)
	if jobErrs := pool.Errors(); len(jobErrs) > 0 {
		o.events.Logf("%d ticker job(s) failed while recording - progress was saved after each", len(jobErrs))
	}

	final := shared.Snapshot()
	if err := o.store.Save(final); err != nil {
		o.logger.Error().Err(err).Msg("Failed to save final progress")
	}

	meta := RunMetadata{
		RunID:               runID,
		MonthsBack:          o.settings.MonthsBack,
		MaxWorkers:          o.settings.MaxWorkers,
		MinInterval:         o.settings.MinInterval,
		MaxRetries:          o.settings.Policy.MaxRetries,
		BaseDelay:           o.settings.Policy.BaseDelay,
		Thresholds:          o.settings.Thresholds,
		HighUpsideThreshold: o.settings.HighUpsideThreshold,
	}
	files, err := WriteOutputs(o.settings.OutputDir, final, meta, o.now())
	if err != nil {
		o.logger.Error().Err(err).Msg("Failed to write result files")
	}

	summary := &Summary{
		RunID:       runID,
		Stats:       final.Stats,
		Dispatched:  dispatched,
		HighUpside:  len(final.HighUpsideResults),
		LowUpside:   len(final.LowUpsideResults),
		Results:     len(final.Results),
		Interrupted: interrupted,
		Elapsed:     o.now().Sub(started),
		Files:       files,
	}
	o.logSummary(summary)

	return summary, err
}

// drain waits for running tickers. On cancellation it saves, then allows
// DrainTimeout before cancelling the remaining work.
func (o *Orchestrator) drain(ctx context.Context, pool *workers.Pool, shared *SharedState) bool {
	done := make(chan struct{})
	common.SafeGo(o.logger, "batch-drain", func() {
		pool.Wait()
		close(done)
	})

	select {
	case <-done:
		return ctx.Err() != nil
	case <-ctx.Done():
	}

	o.events.Log("Interrupt received - dispatch stopped, saving progress")
	o.save(shared)

	if !pool.WaitTimeout(o.settings.DrainTimeout) {
		o.events.Logf("In-flight tickers did not finish within %s - abandoning them", o.settings.DrainTimeout)
		pool.Shutdown()
	}
	<-done
	return true
}

// processTicker runs the retry cycle for one ticker and records its terminal result.
// Nothing is recorded when the work context is cancelled mid-flight.
func (o *Orchestrator) processTicker(ctx context.Context, runID, ticker string, shared *SharedState) error {
	shared.SetCurrent(ticker)
	o.events.Logf("Processing %s", ticker)

	cycle := retry.NewState(o.settings.Policy)
	var result *models.ExtractionResult

	for {
		var res *models.ExtractionResult
		err := common.SafeCall(o.logger, "extract "+ticker, func() error {
			var e error
			res, e = o.extractor.ExtractFromTicker(ctx, ticker, o.settings.MonthsBack)
			return e
		})

		if err == nil && res != nil {
			result = res
			result.Attempts = cycle.Attempts() + 1
			break
		}
		if err == nil {
			err = fmt.Errorf("no result for %s: %w", ticker, retry.ErrMalformed)
		}

		var panicErr *common.PanicError
		if errors.As(err, &panicErr) {
			result = models.NewErrorResult(ticker, o.settings.MonthsBack, panicErr.Error())
			result.Attempts = cycle.Attempts() + 1
			break
		}

		if ctx.Err() != nil {
			o.events.Logf("%s abandoned during shutdown", ticker)
			return nil
		}

		decision := cycle.Next(err)
		if decision.Kind == retry.KindRateLimit {
			shared.AddRateLimit(decision.Host)
			o.events.Logf("%s: rate limit hit (%s)", ticker, hostLabel(decision.Host))
		}

		if !decision.Retry {
			result = models.NewErrorResult(ticker, o.settings.MonthsBack,
				fmt.Sprintf("Failed after %d attempts: %v", cycle.Attempts(), err))
			result.RetryFailed = cycle.Exhausted()
			result.Attempts = cycle.Attempts()
			break
		}

		shared.AddRetry()
		o.events.Logf("%s: %s failure, retry %d/%d in %s", ticker, decision.Kind, decision.Attempt+1, o.settings.Policy.MaxRetries, decision.Delay)

		if err := o.sleep(ctx, decision.Delay); err != nil {
			o.events.Logf("%s abandoned during shutdown", ticker)
			return nil
		}
	}

	result.RunID = runID
	if result.ProcessedAt.IsZero() {
		result.ProcessedAt = models.NewTimestamp(o.now())
	}

	return o.record(ctx, result, shared)
}

// record stores a terminal result, archives it and saves on cadence.
// A panic here is returned as a *common.PanicError after progress is saved.
func (o *Orchestrator) record(ctx context.Context, result *models.ExtractionResult, shared *SharedState) error {
	err := common.SafeCall(o.logger, "record "+result.Ticker, func() error {
		processed, bucket := shared.Record(result)
		o.logOutcome(result, bucket)

		if o.archive != nil {
			if err := o.archive.SaveResult(ctx, result); err != nil {
				o.logger.Warn().Err(err).Str("ticker", result.Ticker).Msg("Failed to archive result")
			}
		}

		if processed%o.settings.SaveEvery == 0 {
			o.save(shared)
			o.events.Logf("Progress saved after %d tickers", processed)
		}
		return nil
	})
	if err != nil {
		o.save(shared)
		o.events.Logf("%s: recording failed, progress saved - %v", result.Ticker, err)
	}
	return err
}

func (o *Orchestrator) logOutcome(result *models.ExtractionResult, bucket Bucket) {
	switch result.Outcome() {
	case models.OutcomeSucceeded:
		o.events.Logf("%s: found %d targets (%d months)", result.Ticker, len(result.PSUTargets), result.SearchMonthsBack)
		label := "LOW UPSIDE"
		if bucket == BucketHigh {
			label = "HIGH UPSIDE"
		}
		o.events.Logf("%s: %s (%.1f%%)", result.Ticker, label, result.Furthest())
	case models.OutcomeRejected:
		if result.RejectionKind == models.RejectionValidation {
			o.events.Logf("%s: quality control rejection - %s", result.Ticker, result.RejectionReason)
		} else {
			o.events.Logf("%s: single target rejected - %s", result.Ticker, result.RejectionReason)
		}
	case models.OutcomeFailed:
		if result.RetryFailed {
			o.events.Logf("%s: final failure after retries - %s", result.Ticker, result.Error)
		} else {
			o.events.Logf("%s: error - %s", result.Ticker, result.Error)
		}
	}
}

func (o *Orchestrator) save(shared *SharedState) {
	err := common.SafeCall(o.logger, "save progress", func() error {
		return o.store.Save(shared.Snapshot())
	})
	if err != nil {
		o.logger.Error().Err(err).Msg("Failed to save progress")
	}
}

func (o *Orchestrator) loadState() *models.ProgressState {
	if o.settings.Fresh {
		o.store.Reset()
		o.events.Log("Starting fresh - persisted progress ignored")
		return models.NewProgressState()
	}

	state, err := o.store.Load()
	if err != nil {
		o.logger.Warn().Err(err).Msg("Could not load progress, starting fresh")
		return models.NewProgressState()
	}
	if state.Stats.ProcessedTickers > 0 {
		o.events.Logf("Loaded progress: %d processed, %d successful, %d failed",
			state.Stats.ProcessedTickers, state.Stats.SuccessfulExtractions, state.Stats.FailedExtractions)
	}
	return state
}

// selectTickers applies resume_from and max_tickers
func (o *Orchestrator) selectTickers(tickers []string) []string {
	start := 0
	if o.settings.ResumeFrom != "" {
		want, _ := common.NormalizeTicker(o.settings.ResumeFrom)
		found := false
		for i, t := range tickers {
			if t == want {
				start, found = i, true
				break
			}
		}
		if found {
			o.events.Logf("Starting from ticker %s (index %d)", want, start)
		} else {
			o.events.Logf("Ticker %s not found, starting from beginning", o.settings.ResumeFrom)
		}
	}

	selected := tickers[start:]
	if o.settings.MaxTickers > 0 && len(selected) > o.settings.MaxTickers {
		selected = selected[:o.settings.MaxTickers]
	}
	return selected
}

// skipCompleted drops tickers that already have a result in state
func (o *Orchestrator) skipCompleted(tickers []string, state *models.ProgressState) ([]string, int) {
	done := state.CompletedTickers()
	pending := make([]string, 0, len(tickers))
	skipped := 0
	for _, t := range tickers {
		if _, ok := done[t]; ok {
			skipped++
			continue
		}
		pending = append(pending, t)
	}
	return pending, skipped
}

func (o *Orchestrator) logSummary(s *Summary) {
	st := s.Stats
	o.events.Logf("Run %s finished in %s: processed %d, successful %d, single-target rejections %d, validation rejections %d, failed %d (permanently %d), retried %d, rate limits api=%d sec=%d, high upside %d, low upside %d",
		s.RunID, s.Elapsed.Round(time.Second), st.ProcessedTickers, st.SuccessfulExtractions,
		st.SingleTargetRejections, st.ValidationRejections, st.FailedExtractions, st.PermanentlyFailed,
		st.Retried, st.RateLimitErrors, st.SECRateLimitErrors, s.HighUpside, s.LowUpside)
	if s.Files.Main != "" {
		o.events.Logf("Results saved: %s", s.Files.Main)
	}
	if s.Files.High != "" {
		o.events.Logf("High upside results saved: %s", s.Files.High)
	}
	if s.Files.Low != "" {
		o.events.Logf("Low upside results saved: %s", s.Files.Low)
	}
}

func hostLabel(h retry.Host) string {
	switch h {
	case retry.HostSEC:
		return "SEC website"
	case retry.HostAPI:
		return "API Ninjas"
	default:
		return "unknown host"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
