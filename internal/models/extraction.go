package models

import "time"

// FilingSourceForm4 is the provenance label recorded on every result
const FilingSourceForm4 = "Form 4"

// Outcome is the terminal state of one ticker task
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

// RejectionKind distinguishes which quality gate rejected a ticker
type RejectionKind string

const (
	RejectionNone       RejectionKind = ""
	RejectionRawTargets RejectionKind = "raw_targets"       // fewer than the minimum unique raw targets
	RejectionValidation RejectionKind = "validated_targets" // fewer than the minimum targets after validation
)

// PriceQuote is a current market price observation
type PriceQuote struct {
	Ticker   string    `json:"ticker"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	Exchange string    `json:"exchange"`
	Currency string    `json:"currency"`
	Updated  time.Time `json:"updated"`
}

// Filing describes one ownership filing. Its text is fetched separately by URL.
type Filing struct {
	Ticker          string `json:"ticker"`
	FilingDate      string `json:"filing_date"`
	FilingURL       string `json:"filing_url"`
	FormType        string `json:"form_type"`
	AccessionNumber string `json:"accession_number,omitempty"`
}

// AnalyzedFiling is a filing that contributed at least one raw target
type AnalyzedFiling struct {
	Date         string `json:"date"`
	Type         string `json:"type"`
	URL          string `json:"url"`
	TargetsFound int    `json:"targets_found"`
}

// ContentSnippet is the filing text surrounding an extracted target
type ContentSnippet struct {
	FilingDate   string  `json:"filing_date"`
	FilingURL    string  `json:"filing_url"`
	TargetFound  float64 `json:"target_found"`
	TargetString string  `json:"target_string"`
	Context      string  `json:"context"`
	Position     int     `json:"position"`
}

// ExtractionResult is the terminal record for one ticker. It is never mutated after it is recorded.
type ExtractionResult struct {
	RunID                 string           `json:"run_id,omitempty"`
	Ticker                string           `json:"ticker"`
	CurrentPrice          *float64         `json:"current_price"`
	PSUTargets            []float64        `json:"psu_targets"`
	FilingSource          string           `json:"filing_source,omitempty"`
	FilingDate            string           `json:"filing_date,omitempty"`
	NearestTargetUpside   *float64         `json:"nearest_target_upside"`
	FurthestTargetUpside  *float64         `json:"furthest_target_upside"`
	Form4FilingsFound     int              `json:"form4_filings_found"`
	FilingsAnalyzed       []AnalyzedFiling `json:"filings_analyzed"`
	FilingContentSnippets []ContentSnippet `json:"filing_content_snippets"`
	EmptyFilingsFiltered  int              `json:"empty_filings_filtered,omitempty"`
	SearchMonthsBack      int              `json:"search_months_back"`
	RejectionReason       string           `json:"rejection_reason,omitempty"`
	RejectionKind         RejectionKind    `json:"rejection_kind,omitempty"`
	Error                 string           `json:"error,omitempty"`
	RetryFailed           bool             `json:"retry_failed,omitempty"`
	Attempts              int              `json:"attempts,omitempty"`
	ProcessedAt           Timestamp        `json:"processed_at"`
}

// Outcome derives the terminal state from the result fields
func (r *ExtractionResult) Outcome() Outcome {
	switch {
	case r.Error != "":
		return OutcomeFailed
	case r.RejectionReason != "":
		return OutcomeRejected
	default:
		return OutcomeSucceeded
	}
}

// Furthest returns the furthest upside, or 0 when undefined
func (r *ExtractionResult) Furthest() float64 {
	if r.FurthestTargetUpside == nil {
		return 0
	}
	return *r.FurthestTargetUpside
}

// NewErrorResult builds a permanent-failure result
func NewErrorResult(ticker string, monthsBack int, message string) *ExtractionResult {
	return &ExtractionResult{
		Ticker:                ticker,
		PSUTargets:            []float64{},
		FilingsAnalyzed:       []AnalyzedFiling{},
		FilingContentSnippets: []ContentSnippet{},
		SearchMonthsBack:      monthsBack,
		Error:                 message,
		ProcessedAt:           NewTimestamp(time.Now()),
	}
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}
