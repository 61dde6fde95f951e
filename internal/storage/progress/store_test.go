package progress

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/psuscan/internal/models"
)

func TestFileStore_MissingFileIsEmptyState(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "batch_progress.json"), nil)

	state, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Results)
	assert.NotNil(t, state.HighUpsideResults)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "batch_progress.json")
	store := NewFileStore(path, nil)

	state := models.NewProgressState()
	state.Stats.ProcessedTickers = 1
	state.Stats.SuccessfulExtractions = 1
	state.Stats.StartTime = models.NewTimestamp(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	state.Results = append(state.Results, &models.ExtractionResult{Ticker: "AAPL", PSUTargets: []float64{200, 250}})

	require.NoError(t, store.Save(state))

	loaded, err := NewFileStore(path, nil).Load()
	require.NoError(t, err)
	require.Len(t, loaded.Results, 1)
	assert.Equal(t, "AAPL", loaded.Results[0].Ticker)
	assert.Equal(t, 1, loaded.Stats.ProcessedTickers)
	assert.True(t, state.Stats.StartTime.Equal(loaded.Stats.StartTime.Time))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_LoadsLegacyTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch_progress.json")
	legacy := `{
  "stats": {"total_tickers": 3, "processed_tickers": 2, "start_time": "2024-11-05T14:30:00.123456", "last_processed": null},
  "results": [{"ticker": "MSFT", "psu_targets": [], "current_price": null}],
  "timestamp": "2024-11-05T15:00:00"
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	state, err := NewFileStore(path, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, 2, state.Stats.ProcessedTickers)
	assert.Equal(t, 2024, state.Stats.StartTime.Year())
	assert.True(t, state.Stats.LastProcessed.IsZero())
	assert.NotNil(t, state.LowUpsideResults)
	assert.Contains(t, state.CompletedTickers(), "MSFT")
}

func TestFileStore_SaveIsMonotonic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch_progress.json")
	store := NewFileStore(path, nil)

	newer := models.NewProgressState()
	newer.Stats.ProcessedTickers = 10
	require.NoError(t, store.Save(newer))

	stale := models.NewProgressState()
	stale.Stats.ProcessedTickers = 7
	require.NoError(t, store.Save(stale))

	loaded, err := NewFileStore(path, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.Stats.ProcessedTickers)

	store.Reset()
	require.NoError(t, store.Save(stale))
	loaded, err = NewFileStore(path, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Stats.ProcessedTickers)
}

func TestFileStore_CorruptFileMovedAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch_progress.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	state, err := NewFileStore(path, nil).Load()
	require.NoError(t, err)
	assert.Empty(t, state.Results)

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestFileStore_PeekLeavesFileAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch_progress.json")
	store := NewFileStore(path, nil)

	state, err := store.Peek()
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err = store.Peek()
	require.Error(t, err)
	assert.FileExists(t, path)
}
