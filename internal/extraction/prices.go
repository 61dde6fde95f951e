package extraction

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/psuscan/internal/interfaces"
	"github.com/ternarybob/psuscan/internal/models"
	"github.com/ternarybob/psuscan/internal/retry"
)

// PriceSource is a named price provider
type PriceSource struct {
	Name     string
	Provider interfaces.PriceProvider
}

// FallbackPrices asks each source in order until one has a price.
// Only permanent failures move on to the next source; anything transient is
// returned so the caller's retry cycle handles it.
type FallbackPrices struct {
	sources []PriceSource
	gate    interfaces.Gate
	logger  arbor.ILogger
}

// NewFallbackPrices creates a chain. gate, when set, is acquired before every
// fallback request; the first source is assumed to be gated by the caller.
func NewFallbackPrices(gate interfaces.Gate, logger arbor.ILogger, sources ...PriceSource) *FallbackPrices {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &FallbackPrices{
		sources: sources,
		gate:    gate,
		logger:  logger,
	}
}

// GetStockPrice implements interfaces.PriceProvider
func (f *FallbackPrices) GetStockPrice(ctx context.Context, ticker string) (*models.PriceQuote, error) {
	if len(f.sources) == 0 {
		return nil, fmt.Errorf("no price sources configured: %w", retry.ErrPermanent)
	}

	var firstErr error
	for i, src := range f.sources {
		if i > 0 && f.gate != nil {
			if err := f.gate.Acquire(ctx); err != nil {
				return nil, err
			}
		}

		quote, err := src.Provider.GetStockPrice(ctx, ticker)
		if err == nil {
			if i > 0 {
				f.logger.Info().
					Str("ticker", ticker).
					Str("source", src.Name).
					Msg("Price resolved from fallback source")
			}
			return quote, nil
		}
		if ctx.Err() != nil || retry.Classify(err) != retry.KindPermanent {
			return nil, err
		}

		if firstErr == nil {
			firstErr = err
		}
		f.logger.Debug().
			Str("ticker", ticker).
			Str("source", src.Name).
			Err(err).
			Msg("Price source has no quote")
	}
	return nil, firstErr
}
