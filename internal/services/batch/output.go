package batch

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ternarybob/psuscan/internal/extraction"
	"github.com/ternarybob/psuscan/internal/models"
	"github.com/ternarybob/psuscan/internal/storage/progress"
)

const (
	systemName     = "PSU Price Target Extractor"
	fileTimeLayout = "20060102_150405"

	HighUpsideDir = "high_upside_40plus"
	LowUpsideDir  = "low_upside_below_40"
)

// RunMetadata describes the settings a batch ran with
type RunMetadata struct {
	RunID               string
	MonthsBack          int
	MaxWorkers          int
	MinInterval         time.Duration
	MaxRetries          int
	BaseDelay           time.Duration
	Thresholds          extraction.Thresholds
	HighUpsideThreshold float64
}

type qualityControls struct {
	MinimumTargetsRequired int        `json:"minimum_targets_required"`
	EmptyFilingsFiltered   bool       `json:"empty_filings_filtered"`
	SingleTargetRejection  bool       `json:"single_target_rejection"`
	FilingContentSnippets  bool       `json:"filing_content_snippets"`
	PriceBounds            [2]float64 `json:"price_bounds,omitempty"`
	UpsideBoundsPercent    [2]float64 `json:"upside_bounds_percent,omitempty"`
}

type processingSettings struct {
	MaxWorkers        int    `json:"max_workers"`
	GlobalMinInterval string `json:"global_min_interval"`
	MaxRetries        int    `json:"max_retries"`
	BaseDelay         string `json:"base_delay"`
}

type mainOutput struct {
	RunID                   string                     `json:"run_id"`
	ExtractionDate          models.Timestamp           `json:"extraction_date"`
	System                  string                     `json:"system"`
	SearchPeriod            string                     `json:"search_period"`
	QualityControls         qualityControls            `json:"quality_controls"`
	ProcessingSettings      processingSettings         `json:"processing_settings"`
	Statistics              models.Stats               `json:"statistics"`
	TotalCompaniesProcessed int                        `json:"total_companies_processed"`
	Results                 []*models.ExtractionResult `json:"results"`
}

type bucketOutput struct {
	RunID           string                     `json:"run_id"`
	ExtractionDate  models.Timestamp           `json:"extraction_date"`
	System          string                     `json:"system"`
	TotalCompanies  int                        `json:"total_companies"`
	Threshold       string                     `json:"threshold"`
	SearchPeriod    string                     `json:"search_period"`
	QualityControls qualityControls            `json:"quality_controls"`
	MaxWorkers      int                        `json:"max_workers"`
	Results         []*models.ExtractionResult `json:"results"`
}

// OutputFiles lists the files written by WriteOutputs; empty paths were not written
type OutputFiles struct {
	Main string
	High string
	Low  string
}

// WriteOutputs writes the main result file and, when non-empty, the high and low upside files
func WriteOutputs(dir string, state *models.ProgressState, meta RunMetadata, now time.Time) (OutputFiles, error) {
	var files OutputFiles
	stamp := now.Format(fileTimeLayout)
	period := fmt.Sprintf("%d months", meta.MonthsBack)
	qc := qualityControls{
		MinimumTargetsRequired: meta.Thresholds.MinTargets,
		EmptyFilingsFiltered:   true,
		SingleTargetRejection:  true,
		FilingContentSnippets:  true,
		PriceBounds:            [2]float64{meta.Thresholds.MinPrice, meta.Thresholds.MaxPrice},
		UpsideBoundsPercent:    [2]float64{meta.Thresholds.MinUpside * 100, meta.Thresholds.MaxUpside * 100},
	}

	all := mainOutput{
		RunID:           meta.RunID,
		ExtractionDate:  models.NewTimestamp(now),
		System:          fmt.Sprintf("%s - parallel processing (%s, min %d targets)", systemName, period, meta.Thresholds.MinTargets),
		SearchPeriod:    period,
		QualityControls: qc,
		ProcessingSettings: processingSettings{
			MaxWorkers:        meta.MaxWorkers,
			GlobalMinInterval: meta.MinInterval.String(),
			MaxRetries:        meta.MaxRetries,
			BaseDelay:         meta.BaseDelay.String(),
		},
		Statistics:              state.Stats,
		TotalCompaniesProcessed: len(state.Results),
		Results:                 state.Results,
	}
	files.Main = filepath.Join(dir, fmt.Sprintf("psu_batch_%s.json", stamp))
	if err := writeJSON(files.Main, all); err != nil {
		return OutputFiles{}, err
	}

	bucketQC := qc
	bucketQC.FilingContentSnippets = false

	if len(state.HighUpsideResults) > 0 {
		files.High = filepath.Join(dir, HighUpsideDir, fmt.Sprintf("high_upside_%s.json", stamp))
		out := bucketOutput{
			RunID:           meta.RunID,
			ExtractionDate:  models.NewTimestamp(now),
			System:          fmt.Sprintf("%s - high upside (%g%%+)", systemName, meta.HighUpsideThreshold),
			TotalCompanies:  len(state.HighUpsideResults),
			Threshold:       fmt.Sprintf("furthest_target_upside > %g%%", meta.HighUpsideThreshold),
			SearchPeriod:    period,
			QualityControls: bucketQC,
			MaxWorkers:      meta.MaxWorkers,
			Results:         state.HighUpsideResults,
		}
		if err := writeJSON(files.High, out); err != nil {
			return files, err
		}
	}

	if len(state.LowUpsideResults) > 0 {
		files.Low = filepath.Join(dir, LowUpsideDir, fmt.Sprintf("low_upside_%s.json", stamp))
		out := bucketOutput{
			RunID:           meta.RunID,
			ExtractionDate:  models.NewTimestamp(now),
			System:          fmt.Sprintf("%s - low upside (<=%g%%)", systemName, meta.HighUpsideThreshold),
			TotalCompanies:  len(state.LowUpsideResults),
			Threshold:       fmt.Sprintf("furthest_target_upside <= %g%%", meta.HighUpsideThreshold),
			SearchPeriod:    period,
			QualityControls: bucketQC,
			MaxWorkers:      meta.MaxWorkers,
			Results:         state.LowUpsideResults,
		}
		if err := writeJSON(files.Low, out); err != nil {
			return files, err
		}
	}

	return files, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return progress.WriteFileAtomic(path, data)
}
