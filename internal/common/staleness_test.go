package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestIsWorkingDay(t *testing.T) {
	weekdays := USMarketSchedule().WorkingDays
	holiday := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsWorkingDay(time.Date(2025, 7, 3, 12, 0, 0, 0, time.UTC), weekdays, nil))
	assert.False(t, IsWorkingDay(time.Date(2025, 7, 5, 12, 0, 0, 0, time.UTC), weekdays, nil), "saturday")
	assert.False(t, IsWorkingDay(time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC), weekdays, []time.Time{holiday}))
}

func TestGetLastTradingDay(t *testing.T) {
	weekdays := USMarketSchedule().WorkingDays

	sunday := time.Date(2025, 7, 6, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC), GetLastTradingDay(sunday, weekdays, nil))

	holiday := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC), GetLastTradingDay(sunday, weekdays, []time.Time{holiday}))

	wednesday := time.Date(2025, 7, 2, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC), GetLastTradingDay(wednesday, weekdays, nil))
}

func TestCheckQuoteStaleness(t *testing.T) {
	ny := newYork(t)
	schedule := USMarketSchedule()

	tests := []struct {
		name    string
		updated time.Time
		now     time.Time
		stale   bool
	}{
		{
			name:    "friday quote checked on saturday",
			updated: time.Date(2025, 7, 11, 15, 59, 0, 0, ny),
			now:     time.Date(2025, 7, 12, 10, 0, 0, 0, ny),
			stale:   false,
		},
		{
			name:    "friday quote before monday open",
			updated: time.Date(2025, 7, 11, 16, 0, 0, 0, ny),
			now:     time.Date(2025, 7, 14, 8, 0, 0, 0, ny),
			stale:   false,
		},
		{
			name:    "friday quote after monday open",
			updated: time.Date(2025, 7, 11, 16, 0, 0, 0, ny),
			now:     time.Date(2025, 7, 14, 11, 0, 0, 0, ny),
			stale:   true,
		},
		{
			name:    "week old quote",
			updated: time.Date(2025, 7, 3, 16, 0, 0, 0, ny),
			now:     time.Date(2025, 7, 10, 8, 0, 0, 0, ny),
			stale:   true,
		},
		{
			name:    "same session",
			updated: time.Date(2025, 7, 10, 10, 30, 0, 0, ny),
			now:     time.Date(2025, 7, 10, 14, 0, 0, 0, ny),
			stale:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CheckQuoteStaleness(tt.updated, tt.now, schedule)
			assert.Equal(t, tt.stale, res.IsStale, res.Reason)
		})
	}
}

func TestCheckQuoteStaleness_NoTimestamp(t *testing.T) {
	res := CheckQuoteStaleness(time.Time{}, time.Now(), USMarketSchedule())
	assert.False(t, res.IsStale)
	assert.Equal(t, "quote has no timestamp", res.Reason)
}

func TestCheckQuoteStaleness_InvalidTimezone(t *testing.T) {
	schedule := USMarketSchedule()
	schedule.Timezone = "Invalid/Zone"

	res := CheckQuoteStaleness(time.Now(), time.Now(), schedule)
	assert.False(t, res.IsStale)
	assert.Contains(t, res.Reason, "invalid timezone")
}
