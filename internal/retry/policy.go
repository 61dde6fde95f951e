package retry

import "time"

const (
	// DefaultMaxRetries allows four attempts in total
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the unit of every backoff schedule
	DefaultBaseDelay = 2 * time.Second
)

// Policy computes backoff delays per failure kind
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultPolicy returns the standard 3 retries on a 2s base
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// Delay returns the wait before the retry following attempt (0-based).
//   - timeout:        base * (attempt+1)
//   - rate limit:     base * 2^attempt
//   - malformed data: base
//   - anything else:  base * (attempt+1)
func (p Policy) Delay(kind Kind, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	switch kind {
	case KindRateLimit:
		return p.BaseDelay * time.Duration(1<<uint(attempt))
	case KindMalformed:
		return p.BaseDelay
	default:
		return p.BaseDelay * time.Duration(attempt+1)
	}
}

// Retryable reports whether a failure kind may be retried at all
func (p Policy) Retryable(kind Kind) bool {
	return kind != KindPermanent
}

// Decision is the outcome of feeding one failure into a State
type Decision struct {
	Retry   bool
	Delay   time.Duration
	Kind    Kind
	Host    Host
	Attempt int // 0-based index of the attempt that failed
}

// State tracks one task's attempt cycle.
// Feed every failure to Next; stop when Decision.Retry is false.
type State struct {
	policy     Policy
	attempt    int
	lastKind   Kind
	rateLimits map[Host]int
}

// NewState starts a fresh attempt cycle
func NewState(policy Policy) *State {
	return &State{
		policy:     policy,
		rateLimits: make(map[Host]int),
	}
}

// Next classifies err, records it and decides whether to retry
func (s *State) Next(err error) Decision {
	kind := Classify(err)
	host := HostOf(err)

	s.lastKind = kind
	if kind == KindRateLimit {
		s.rateLimits[host]++
	}

	d := Decision{
		Kind:    kind,
		Host:    host,
		Attempt: s.attempt,
	}

	if s.policy.Retryable(kind) && s.attempt < s.policy.MaxRetries {
		d.Retry = true
		d.Delay = s.policy.Delay(kind, s.attempt)
	}

	s.attempt++
	return d
}

// Attempts returns how many attempts have failed so far
func (s *State) Attempts() int {
	return s.attempt
}

// LastKind returns the classification of the most recent failure
func (s *State) LastKind() Kind {
	return s.lastKind
}

// Exhausted reports whether the last decision ran out of retries on a retryable failure
func (s *State) Exhausted() bool {
	return s.attempt > s.policy.MaxRetries && s.policy.Retryable(s.lastKind)
}

// RateLimits returns rate-limit failures per host for this cycle
func (s *State) RateLimits() map[Host]int {
	out := make(map[Host]int, len(s.rateLimits))
	for h, n := range s.rateLimits {
		out[h] = n
	}
	return out
}
