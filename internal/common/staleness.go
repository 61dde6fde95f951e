package common

import (
	"fmt"
	"time"
)

// MarketSchedule describes when a listing venue trades
type MarketSchedule struct {
	Timezone     string
	OpenTime     string // "HH:MM" local
	DelayMinutes int    // quote feed delay after the open
	WorkingDays  []time.Weekday
	Holidays     []time.Time
}

// USMarketSchedule is the NYSE/Nasdaq regular session
func USMarketSchedule() MarketSchedule {
	return MarketSchedule{
		Timezone:     "America/New_York",
		OpenTime:     "09:30",
		DelayMinutes: 15,
		WorkingDays:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}
}

// StalenessResult contains the result of a staleness check.
type StalenessResult struct {
	IsStale bool
	// SessionDay is the trading day a fresh quote should come from
	SessionDay time.Time
	Reason     string
}

// CheckQuoteStaleness reports whether a price observed at updated predates the
// latest trading session that has opened (plus feed delay) by now.
func CheckQuoteStaleness(updated, now time.Time, schedule MarketSchedule) StalenessResult {
	if updated.IsZero() {
		return StalenessResult{Reason: "quote has no timestamp"}
	}

	loc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		return StalenessResult{Reason: fmt.Sprintf("invalid timezone %s: %v", schedule.Timezone, err)}
	}
	now = now.In(loc)
	updated = updated.In(loc)

	session := GetLastTradingDay(now, schedule.WorkingDays, schedule.Holidays)
	available, err := sessionAvailableTime(session, schedule)
	if err != nil {
		return StalenessResult{Reason: err.Error()}
	}
	if now.Before(available) {
		session = GetLastTradingDay(session.AddDate(0, 0, -1), schedule.WorkingDays, schedule.Holidays)
	}

	quoteDay := time.Date(updated.Year(), updated.Month(), updated.Day(), 0, 0, 0, 0, loc)
	if quoteDay.Before(session) {
		return StalenessResult{
			IsStale:    true,
			SessionDay: session,
			Reason: fmt.Sprintf("quote from %s predates trading session %s",
				quoteDay.Format("2006-01-02"), session.Format("2006-01-02")),
		}
	}

	return StalenessResult{
		SessionDay: session,
		Reason:     fmt.Sprintf("quote is from session %s", quoteDay.Format("2006-01-02")),
	}
}

// IsWorkingDay checks if a given date is a trading day.
// It accounts for both weekends (based on workingDays) and holidays.
func IsWorkingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) bool {
	isWorkDay := false
	for _, wd := range workingDays {
		if wd == t.Weekday() {
			isWorkDay = true
			break
		}
	}
	if !isWorkDay {
		return false
	}

	for _, h := range holidays {
		if h.Year() == t.Year() && h.YearDay() == t.YearDay() {
			return false
		}
	}
	return true
}

// GetLastTradingDay returns midnight of the most recent trading day on or
// before t, in t's location.
func GetLastTradingDay(t time.Time, workingDays []time.Weekday, holidays []time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())

	// Walk back far enough to clear long holiday runs
	current := day
	for i := 0; i < 10; i++ {
		if IsWorkingDay(current, workingDays, holidays) {
			return current
		}
		current = current.AddDate(0, 0, -1)
	}
	return day
}

// sessionAvailableTime is when quotes for day's session start flowing
func sessionAvailableTime(day time.Time, schedule MarketSchedule) (time.Time, error) {
	hour, min := 9, 30
	if schedule.OpenTime != "" {
		if _, err := fmt.Sscanf(schedule.OpenTime, "%d:%d", &hour, &min); err != nil {
			return time.Time{}, fmt.Errorf("invalid open time %q: %w", schedule.OpenTime, err)
		}
	}
	open := time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, day.Location())
	return open.Add(time.Duration(schedule.DelayMinutes) * time.Minute), nil
}
