package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/psuscan/internal/interfaces"
	"github.com/ternarybob/psuscan/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestResultStorage(t *testing.T) interfaces.ResultStorage {
	t.Helper()

	store, err := badgerhold.Open(storeOptions(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewResultStorage(&BadgerDB{store: store}, arbor.NewLogger())
}

func succeeded(ticker string, furthest float64) *models.ExtractionResult {
	return &models.ExtractionResult{
		RunID:                "run-1",
		Ticker:               ticker,
		CurrentPrice:         models.Float64Ptr(50),
		PSUTargets:           []float64{55, 90},
		FurthestTargetUpside: models.Float64Ptr(furthest),
		ProcessedAt:          models.NewTimestamp(time.Now()),
	}
}

func TestResultStorage_SaveAndGet(t *testing.T) {
	storage := newTestResultStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveResult(ctx, succeeded("acme", 80)))

	got, err := storage.GetResult(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, "ACME", got.Ticker)
	assert.Equal(t, models.OutcomeSucceeded, got.Outcome)
	assert.Equal(t, 80.0, got.FurthestUpside)
	assert.Equal(t, []float64{55, 90}, got.Result.PSUTargets)
}

func TestResultStorage_NotFound(t *testing.T) {
	_, err := newTestResultStorage(t).GetResult(context.Background(), "NONE")
	assert.ErrorIs(t, err, interfaces.ErrResultNotFound)
}

func TestResultStorage_LatestResultWins(t *testing.T) {
	storage := newTestResultStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveResult(ctx, succeeded("ACME", 80)))
	require.NoError(t, storage.SaveResult(ctx, models.NewErrorResult("ACME", 3, "Could not get current stock price for ACME")))

	got, err := storage.GetResult(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFailed, got.Outcome)

	n, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResultStorage_ListTopUpside(t *testing.T) {
	storage := newTestResultStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveResult(ctx, succeeded("LOW", 15)))
	require.NoError(t, storage.SaveResult(ctx, succeeded("HIGH", 120)))
	require.NoError(t, storage.SaveResult(ctx, succeeded("MID", 45)))

	rejected := succeeded("REJ", 0)
	rejected.FurthestTargetUpside = nil
	rejected.RejectionReason = "Only 1 unique target(s) found - minimum 2 required"
	require.NoError(t, storage.SaveResult(ctx, rejected))

	top, err := storage.ListTopUpside(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "HIGH", top[0].Ticker)
	assert.Equal(t, "MID", top[1].Ticker)

	all, err := storage.ListTopUpside(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
