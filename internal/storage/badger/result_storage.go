package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/psuscan/internal/interfaces"
	"github.com/ternarybob/psuscan/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ResultStorage keeps the latest terminal result per ticker
type ResultStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewResultStorage creates a new ResultStorage instance
func NewResultStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ResultStorage {
	return &ResultStorage{
		db:     db,
		logger: logger,
	}
}

func resultKey(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// SaveResult upserts the result under its ticker
func (s *ResultStorage) SaveResult(ctx context.Context, result *models.ExtractionResult) error {
	if result == nil || result.Ticker == "" {
		return errors.New("result has no ticker")
	}

	record := &interfaces.ArchivedResult{
		Ticker:         resultKey(result.Ticker),
		RunID:          result.RunID,
		Outcome:        result.Outcome(),
		FurthestUpside: result.Furthest(),
		Result:         result,
	}

	if err := s.db.Store().Upsert(record.Ticker, record); err != nil {
		return fmt.Errorf("failed to archive result for %s: %w", record.Ticker, err)
	}
	return nil
}

// GetResult returns the archived result for ticker
func (s *ResultStorage) GetResult(ctx context.Context, ticker string) (*interfaces.ArchivedResult, error) {
	var record interfaces.ArchivedResult
	err := s.db.Store().Get(resultKey(ticker), &record)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archived result: %w", err)
	}
	return &record, nil
}

// ListTopUpside returns successful results ordered by furthest upside, highest first
func (s *ResultStorage) ListTopUpside(ctx context.Context, limit int) ([]*interfaces.ArchivedResult, error) {
	query := badgerhold.Where("Outcome").Eq(models.OutcomeSucceeded).SortBy("FurthestUpside").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []interfaces.ArchivedResult
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list archived results: %w", err)
	}

	out := make([]*interfaces.ArchivedResult, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out, nil
}

// Count returns the number of archived tickers
func (s *ResultStorage) Count(ctx context.Context) (int, error) {
	n, err := s.db.Store().Count(&interfaces.ArchivedResult{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count archived results: %w", err)
	}
	return int(n), nil
}
