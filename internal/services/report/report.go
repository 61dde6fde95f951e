// Package report summarises a batch in flight from its progress file and event log.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/psuscan/internal/models"
)

const (
	// TopUpside is how many high-upside results are listed
	TopUpside = 10
	// RecentLines is how many event log lines are shown
	RecentLines = 5
)

// Leader is one row of the high-upside table
type Leader struct {
	Ticker   string
	Price    float64
	Targets  []float64
	Furthest float64
}

// Report is a point-in-time view of a batch
type Report struct {
	Found bool

	Processed int
	Total     int
	Remaining int
	Percent   float64

	Successful        int
	SingleTarget      int
	Validation        int
	Failed            int
	PermanentlyFailed int
	Skipped           int
	Retried           int
	RateLimits        int
	SECRateLimits     int
	HighUpside        int
	LowUpside         int

	SuccessRate      float64
	SingleTargetRate float64
	RateLimitRate    float64

	ElapsedHours float64
	PerHour      float64
	ETAHours     float64
	HasETA       bool

	CurrentTicker string
	LastUpdate    time.Time

	Leaders []Leader
	Recent  []string
}

// Build computes a report. A nil state means no progress file exists yet.
func Build(state *models.ProgressState, logLines []string, now time.Time) *Report {
	r := &Report{Recent: lastNonEmpty(logLines, RecentLines)}
	if state == nil {
		return r
	}
	state.Normalize()
	r.Found = true

	st := state.Stats
	r.Processed = st.ProcessedTickers
	r.Total = st.TotalTickers
	r.Remaining = max(r.Total-r.Processed, 0)
	if r.Total > 0 {
		r.Percent = float64(r.Processed) / float64(r.Total) * 100
	}

	r.Successful = st.SuccessfulExtractions
	r.SingleTarget = st.SingleTargetRejections
	r.Validation = st.ValidationRejections
	r.Failed = st.FailedExtractions
	r.PermanentlyFailed = st.PermanentlyFailed
	r.Skipped = st.SkippedTickers
	r.Retried = st.Retried
	r.RateLimits = st.RateLimitErrors
	r.SECRateLimits = st.SECRateLimitErrors
	r.HighUpside = len(state.HighUpsideResults)
	r.LowUpside = len(state.LowUpsideResults)

	if r.Processed > 0 {
		p := float64(r.Processed)
		r.SuccessRate = float64(r.Successful) / p * 100
		r.SingleTargetRate = float64(r.SingleTarget) / p * 100
		r.RateLimitRate = float64(r.RateLimits+r.SECRateLimits) / p * 100
	}

	if !st.StartTime.IsZero() {
		elapsed := now.Sub(st.StartTime.Time)
		if elapsed > 0 {
			r.ElapsedHours = elapsed.Hours()
		}
		if r.ElapsedHours > 0 && r.Processed > 0 {
			r.PerHour = float64(r.Processed) / r.ElapsedHours
			r.ETAHours = float64(r.Remaining) / r.PerHour
			r.HasETA = true
		}
	}

	r.CurrentTicker = st.CurrentTicker
	r.LastUpdate = st.LastProcessed.Time
	r.Leaders = leaders(state.HighUpsideResults, TopUpside)
	return r
}

func leaders(results []*models.ExtractionResult, n int) []Leader {
	out := make([]Leader, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		l := Leader{Ticker: res.Ticker, Targets: res.PSUTargets, Furthest: res.Furthest()}
		if res.CurrentPrice != nil {
			l.Price = *res.CurrentPrice
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Furthest > out[j].Furthest })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func lastNonEmpty(lines []string, n int) []string {
	var out []string
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			out = append(out, s)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ReadLines returns the lines of path. A missing file yields no lines.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// Render writes the report as plain text
func (r *Report) Render(w io.Writer) {
	if !r.Found {
		fmt.Fprintln(w, "No progress file found - the batch has not saved progress yet.")
		r.renderRecent(w)
		return
	}

	fmt.Fprintln(w, "PSU Batch Progress")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Progress:          %d/%d (%.1f%%), %d remaining\n", r.Processed, r.Total, r.Percent, r.Remaining)
	fmt.Fprintf(w, "Successful:        %d (%.1f%%)\n", r.Successful, r.SuccessRate)
	fmt.Fprintf(w, "Single target:     %d (%.1f%%)\n", r.SingleTarget, r.SingleTargetRate)
	fmt.Fprintf(w, "Validation:        %d\n", r.Validation)
	fmt.Fprintf(w, "Failed:            %d (%d after retries)\n", r.Failed, r.PermanentlyFailed)
	fmt.Fprintf(w, "Skipped:           %d\n", r.Skipped)
	fmt.Fprintf(w, "Retried:           %d\n", r.Retried)
	fmt.Fprintf(w, "Rate limits:       api=%d sec=%d (%.1f%%)\n", r.RateLimits, r.SECRateLimits, r.RateLimitRate)
	fmt.Fprintf(w, "Upside buckets:    high=%d low=%d\n", r.HighUpside, r.LowUpside)

	if r.ElapsedHours > 0 {
		fmt.Fprintf(w, "Elapsed:           %.2f hours\n", r.ElapsedHours)
	}
	if r.HasETA {
		fmt.Fprintf(w, "Rate:              %.1f tickers/hour\n", r.PerHour)
		fmt.Fprintf(w, "ETA:               %.2f hours\n", r.ETAHours)
	}
	if r.CurrentTicker != "" {
		fmt.Fprintf(w, "Current ticker:    %s\n", r.CurrentTicker)
	}
	if !r.LastUpdate.IsZero() {
		fmt.Fprintf(w, "Last update:       %s\n", r.LastUpdate.Format("2006-01-02 15:04:05"))
	}

	if len(r.Leaders) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Top %d high upside\n", len(r.Leaders))
		for i, l := range r.Leaders {
			fmt.Fprintf(w, "%2d. %-6s $%-9.2f %6.1f%%  targets %s\n", i+1, l.Ticker, l.Price, l.Furthest, formatTargets(l.Targets))
		}
	}

	r.renderRecent(w)
}

func (r *Report) renderRecent(w io.Writer) {
	if len(r.Recent) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Recent activity")
	for _, line := range r.Recent {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

func formatTargets(targets []float64) string {
	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = fmt.Sprintf("$%.2f", t)
	}
	return strings.Join(parts, ", ")
}
