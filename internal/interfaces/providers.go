package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/psuscan/internal/models"
)

// PriceProvider returns the current market price for a ticker
type PriceProvider interface {
	GetStockPrice(ctx context.Context, ticker string) (*models.PriceQuote, error)
}

// FilingProvider lists ownership (Form 4) filings for a ticker within a date window
type FilingProvider interface {
	SearchForm4Filings(ctx context.Context, ticker string, from, to time.Time) ([]models.Filing, error)
}

// ContentFetcher downloads a filing document and returns its text
type ContentFetcher interface {
	FetchContent(ctx context.Context, filingURL string) (string, error)
}

// Gate blocks until the caller may issue its next external request
type Gate interface {
	Acquire(ctx context.Context) error
}
