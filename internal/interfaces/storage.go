package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/psuscan/internal/models"
)

// ErrResultNotFound is returned when the archive holds no record for a ticker
var ErrResultNotFound = errors.New("result not found")

// ProgressStore persists the resumable batch state.
// Save never writes a state with fewer processed tickers than the last one written;
// Reset clears that watermark before a fresh run.
type ProgressStore interface {
	Load() (*models.ProgressState, error)
	Save(state *models.ProgressState) error
	Reset()
}

// ArchivedResult is one ticker's latest terminal result as kept by the archive
type ArchivedResult struct {
	Ticker         string                   `json:"ticker"`
	RunID          string                   `json:"run_id"`
	Outcome        models.Outcome           `json:"outcome"`
	FurthestUpside float64                  `json:"furthest_upside"`
	Result         *models.ExtractionResult `json:"result"`
}

// ResultStorage archives terminal results across runs
type ResultStorage interface {
	SaveResult(ctx context.Context, result *models.ExtractionResult) error
	GetResult(ctx context.Context, ticker string) (*ArchivedResult, error)
	ListTopUpside(ctx context.Context, limit int) ([]*ArchivedResult, error)
	Count(ctx context.Context) (int, error)
}

// StorageManager owns the archive database
type StorageManager interface {
	ResultStorage() ResultStorage
	Close() error
}
