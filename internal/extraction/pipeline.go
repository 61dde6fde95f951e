package extraction

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/psuscan/internal/common"
	"github.com/ternarybob/psuscan/internal/interfaces"
	"github.com/ternarybob/psuscan/internal/models"
	"github.com/ternarybob/psuscan/internal/retry"
)

// daysPerMonth converts the search window in months to days
const daysPerMonth = 30

// Pipeline runs the full price -> filings -> content -> targets flow for one ticker.
//
// Errors returned by ExtractFromTicker are transient and belong to the retry loop.
// Permanent failures and quality rejections come back as results instead.
type Pipeline struct {
	prices  interfaces.PriceProvider
	filings interfaces.FilingProvider
	content interfaces.ContentFetcher
	gate    interfaces.Gate
	engine  *TargetExtractor
	logger  arbor.ILogger
	now     func() time.Time
}

// NewPipeline wires the providers and gate into a pipeline
func NewPipeline(
	prices interfaces.PriceProvider,
	filings interfaces.FilingProvider,
	content interfaces.ContentFetcher,
	gate interfaces.Gate,
	engine *TargetExtractor,
	logger arbor.ILogger,
) *Pipeline {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Pipeline{
		prices:  prices,
		filings: filings,
		content: content,
		gate:    gate,
		engine:  engine,
		logger:  logger,
		now:     time.Now,
	}
}

// ExtractFromTicker produces the terminal result for ticker or a transient error
func (p *Pipeline) ExtractFromTicker(ctx context.Context, ticker string, monthsBack int) (*models.ExtractionResult, error) {
	th := p.engine.Thresholds()

	if err := p.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	quote, err := p.prices.GetStockPrice(ctx, ticker)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if retry.Classify(err) != retry.KindPermanent {
			return nil, fmt.Errorf("price for %s: %w", ticker, err)
		}
		return models.NewErrorResult(ticker, monthsBack, fmt.Sprintf("Could not get current stock price for %s: %v", ticker, err)), nil
	}
	if quote == nil || quote.Price <= 0 {
		return models.NewErrorResult(ticker, monthsBack, fmt.Sprintf("Could not get current stock price for %s", ticker)), nil
	}
	price := quote.Price
	if check := common.CheckQuoteStaleness(quote.Updated, p.now(), common.USMarketSchedule()); check.IsStale {
		p.logger.Warn().
			Str("ticker", ticker).
			Str("reason", check.Reason).
			Msg("Using stale price quote")
	}

	to := p.now()
	from := to.AddDate(0, 0, -monthsBack*daysPerMonth)

	if err := p.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	filings, err := p.filings.SearchForm4Filings(ctx, ticker, from, to)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if retry.Classify(err) != retry.KindPermanent {
			return nil, fmt.Errorf("filings for %s: %w", ticker, err)
		}
		return models.NewErrorResult(ticker, monthsBack, fmt.Sprintf("Could not search Form 4 filings for %s: %v", ticker, err)), nil
	}
	sort.SliceStable(filings, func(i, j int) bool { return filings[i].FilingDate > filings[j].FilingDate })

	result := &models.ExtractionResult{
		Ticker:                ticker,
		CurrentPrice:          models.Float64Ptr(price),
		PSUTargets:            []float64{},
		FilingSource:          models.FilingSourceForm4,
		Form4FilingsFound:     len(filings),
		FilingsAnalyzed:       []models.AnalyzedFiling{},
		FilingContentSnippets: []models.ContentSnippet{},
		SearchMonthsBack:      monthsBack,
	}

	var (
		all      []float64
		analyzed []models.AnalyzedFiling
		snippets []models.ContentSnippet
	)
	for _, f := range filings {
		if err := p.gate.Acquire(ctx); err != nil {
			return nil, err
		}
		text, err := p.content.FetchContent(ctx, f.FilingURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			switch retry.Classify(err) {
			case retry.KindRateLimit, retry.KindTimeout:
				return nil, fmt.Errorf("filing %s for %s: %w", f.FilingURL, ticker, err)
			}
			p.logger.Debug().Str("ticker", ticker).Str("url", f.FilingURL).Err(err).Msg("Skipping filing that could not be downloaded")
			result.EmptyFilingsFiltered++
			continue
		}
		if text == "" {
			result.EmptyFilingsFiltered++
			continue
		}

		targets := p.engine.Extract(text)
		if len(targets) == 0 {
			result.EmptyFilingsFiltered++
			continue
		}

		all = append(all, targets...)
		analyzed = append(analyzed, models.AnalyzedFiling{
			Date:         f.FilingDate,
			Type:         f.FormType,
			URL:          f.FilingURL,
			TargetsFound: len(targets),
		})
		snippets = append(snippets, p.engine.Snippets(text, targets, f)...)
	}

	unique := p.engine.filter(all)
	result.ProcessedAt = models.NewTimestamp(p.now())

	if len(unique) < th.MinTargets {
		result.RejectionKind = models.RejectionRawTargets
		result.RejectionReason = fmt.Sprintf("Only %d unique target(s) found - minimum %d required", len(unique), th.MinTargets)
		return result, nil
	}

	valid := p.engine.Validate(unique, price)
	if len(valid) < th.MinTargets {
		result.RejectionKind = models.RejectionValidation
		result.RejectionReason = fmt.Sprintf("Only %d valid target(s) after validation - minimum %d required", len(valid), th.MinTargets)
		return result, nil
	}

	nearest, furthest := UpsideRange(valid, price)
	result.PSUTargets = valid
	result.NearestTargetUpside = models.Float64Ptr(nearest)
	result.FurthestTargetUpside = models.Float64Ptr(furthest)
	result.FilingsAnalyzed = analyzed
	result.FilingContentSnippets = snippets
	if len(analyzed) > 0 {
		result.FilingDate = analyzed[0].Date
	}

	p.logger.Info().
		Str("ticker", ticker).
		Int("targets", len(valid)).
		Str("furthest_upside", fmt.Sprintf("%.2f%%", furthest)).
		Msg("PSU targets extracted")

	return result, nil
}
