package batch

import (
	"sync"
	"time"

	"github.com/ternarybob/psuscan/internal/models"
	"github.com/ternarybob/psuscan/internal/retry"
)

// Bucket is the output list a successful result was classified into
type Bucket string

const (
	BucketNone Bucket = ""
	BucketHigh Bucket = "high"
	BucketLow  Bucket = "low"
)

// SharedState guards the counters and all three result lists with a single mutex.
// Nothing that blocks (network, backoff, file I/O) runs while it is held.
type SharedState struct {
	mu        sync.Mutex
	state     *models.ProgressState
	threshold float64
	now       func() time.Time
}

// NewSharedState wraps state. Results above threshold (percent) go to the high list.
func NewSharedState(state *models.ProgressState, threshold float64) *SharedState {
	if state == nil {
		state = models.NewProgressState()
	}
	state.Normalize()
	return &SharedState{state: state, threshold: threshold, now: time.Now}
}

// Classify returns the bucket for a successful result
func (s *SharedState) Classify(result *models.ExtractionResult) Bucket {
	if result.Furthest() > s.threshold {
		return BucketHigh
	}
	return BucketLow
}

// SetCurrent records the ticker most recently started
func (s *SharedState) SetCurrent(ticker string) {
	s.mu.Lock()
	s.state.Stats.CurrentTicker = ticker
	s.mu.Unlock()
}

// AddRetry counts one scheduled retry
func (s *SharedState) AddRetry() {
	s.mu.Lock()
	s.state.Stats.Retried++
	s.mu.Unlock()
}

// AddRateLimit counts one rate-limit failure against host
func (s *SharedState) AddRateLimit(host retry.Host) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if host == retry.HostSEC {
		s.state.Stats.SECRateLimitErrors++
		return
	}
	s.state.Stats.RateLimitErrors++
}

// Record applies one terminal result and returns the new processed count and
// the bucket a success landed in.
func (s *SharedState) Record(result *models.ExtractionResult) (int, Bucket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state.Stats
	st.ProcessedTickers++
	st.LastProcessed = models.NewTimestamp(s.now())
	st.EmptyFilingFiltered += result.EmptyFilingsFiltered
	s.state.Results = append(s.state.Results, result)

	bucket := BucketNone
	switch result.Outcome() {
	case models.OutcomeSucceeded:
		st.SuccessfulExtractions++
		bucket = s.Classify(result)
		if bucket == BucketHigh {
			s.state.HighUpsideResults = append(s.state.HighUpsideResults, result)
		} else {
			s.state.LowUpsideResults = append(s.state.LowUpsideResults, result)
		}
	case models.OutcomeRejected:
		if result.RejectionKind == models.RejectionValidation {
			st.ValidationRejections++
		} else {
			st.SingleTargetRejections++
		}
	case models.OutcomeFailed:
		st.FailedExtractions++
		if result.RetryFailed {
			st.PermanentlyFailed++
		}
	}

	return st.ProcessedTickers, bucket
}

// Processed returns the processed count
func (s *SharedState) Processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Stats.ProcessedTickers
}

// Snapshot returns a consistent point-in-time copy.
// Results are immutable once recorded, so the lists copy pointers only.
func (s *SharedState) Snapshot() *models.ProgressState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &models.ProgressState{
		Stats:             s.state.Stats,
		Results:           append([]*models.ExtractionResult{}, s.state.Results...),
		HighUpsideResults: append([]*models.ExtractionResult{}, s.state.HighUpsideResults...),
		LowUpsideResults:  append([]*models.ExtractionResult{}, s.state.LowUpsideResults...),
		Timestamp:         models.NewTimestamp(s.now()),
	}
}
