package models

// Stats holds the batch counters. Field names match the persisted JSON so older progress files still load.
type Stats struct {
	TotalTickers           int       `json:"total_tickers"`
	ProcessedTickers       int       `json:"processed_tickers"`
	SuccessfulExtractions  int       `json:"successful_extractions"`
	FailedExtractions      int       `json:"failed_extractions"`
	SkippedTickers         int       `json:"skipped_tickers"`
	RateLimitErrors        int       `json:"rate_limit_errors"`
	SECRateLimitErrors     int       `json:"sec_rate_limit_errors"`
	SingleTargetRejections int       `json:"single_target_rejections"`
	ValidationRejections   int       `json:"validation_rejections"`
	EmptyFilingFiltered    int       `json:"empty_filing_filtered"`
	Retried                int       `json:"retried"`
	PermanentlyFailed      int       `json:"permanently_failed"`
	StartTime              Timestamp `json:"start_time"`
	LastProcessed          Timestamp `json:"last_processed"`
	CurrentTicker          string    `json:"current_ticker"`
}

// Rejections returns the total quality-control rejections
func (s Stats) Rejections() int {
	return s.SingleTargetRejections + s.ValidationRejections
}

// ProgressState is the durable, resumable batch state.
// Results holds every terminal outcome, rejections and failures included. The
// upside lists hold successes only.
type ProgressState struct {
	Stats             Stats               `json:"stats"`
	Results           []*ExtractionResult `json:"results"`
	HighUpsideResults []*ExtractionResult `json:"high_upside_results"`
	LowUpsideResults  []*ExtractionResult `json:"low_upside_results"`
	Timestamp         Timestamp           `json:"timestamp"`
}

// NewProgressState returns an empty state with non-nil lists
func NewProgressState() *ProgressState {
	return &ProgressState{
		Results:           []*ExtractionResult{},
		HighUpsideResults: []*ExtractionResult{},
		LowUpsideResults:  []*ExtractionResult{},
	}
}

// Normalize replaces nil lists left by older or partial files
func (p *ProgressState) Normalize() {
	if p.Results == nil {
		p.Results = []*ExtractionResult{}
	}
	if p.HighUpsideResults == nil {
		p.HighUpsideResults = []*ExtractionResult{}
	}
	if p.LowUpsideResults == nil {
		p.LowUpsideResults = []*ExtractionResult{}
	}
}

// CompletedTickers returns the set of tickers present in Results
func (p *ProgressState) CompletedTickers() map[string]struct{} {
	done := make(map[string]struct{}, len(p.Results))
	for _, r := range p.Results {
		if r != nil {
			done[r.Ticker] = struct{}{}
		}
	}
	return done
}
