// Package common provides shared utilities across the application.
package common

import (
	"time"
)

// MarketSession identifies the current US equity trading session.
type MarketSession string

const (
	SessionPreMarket  MarketSession = "premarket"
	SessionRegular    MarketSession = "regular"
	SessionAfterHours MarketSession = "afterhours"
	SessionClosed     MarketSession = "closed"
)

// MarketClock answers session questions for the US consolidated tape.
// Extended hours follow the common 04:00-09:30 and 16:00-20:00 ET windows.
type MarketClock struct {
	loc         *time.Location
	workingDays []time.Weekday
	holidays    []time.Time
}

// NewMarketClock builds a clock for the US market schedule. Holidays are
// optional; with none supplied only weekends close the market.
func NewMarketClock(holidays []time.Time) *MarketClock {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// UTC keeps the pipeline running with a skewed session map rather
		// than failing startup on a missing tzdata install.
		loc = time.UTC
	}
	return &MarketClock{
		loc:         loc,
		workingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		holidays:    holidays,
	}
}

// SessionAt returns the trading session in effect at t.
func (c *MarketClock) SessionAt(t time.Time) MarketSession {
	local := t.In(c.loc)

	if !c.IsWorkingDay(local) {
		return SessionClosed
	}

	minutes := local.Hour()*60 + local.Minute()
	switch {
	case minutes >= 4*60 && minutes < 9*60+30:
		return SessionPreMarket
	case minutes >= 9*60+30 && minutes < 16*60:
		return SessionRegular
	case minutes >= 16*60 && minutes < 20*60:
		return SessionAfterHours
	default:
		return SessionClosed
	}
}

// Session returns the session in effect now.
func (c *MarketClock) Session() MarketSession {
	return c.SessionAt(time.Now())
}

// IsWorkingDay checks if a given date is a trading day, accounting for both
// weekends and holidays.
func (c *MarketClock) IsWorkingDay(t time.Time) bool {
	dayOfWeek := t.In(c.loc).Weekday()
	isWorkDay := false
	for _, wd := range c.workingDays {
		if wd == dayOfWeek {
			isWorkDay = true
			break
		}
	}
	if !isWorkDay {
		return false
	}

	local := t.In(c.loc)
	tDate := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	for _, h := range c.holidays {
		hLocal := h.In(c.loc)
		hDate := time.Date(hLocal.Year(), hLocal.Month(), hLocal.Day(), 0, 0, 0, 0, c.loc)
		if tDate.Equal(hDate) {
			return false
		}
	}

	return true
}

// LastTradingDay returns the most recent trading day on or before t,
// walking backwards far enough to clear long holiday runs.
func (c *MarketClock) LastTradingDay(t time.Time) time.Time {
	local := t.In(c.loc)
	current := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)

	for i := 0; i < 10; i++ {
		if c.IsWorkingDay(current) {
			return current
		}
		current = current.AddDate(0, 0, -1)
	}

	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// SessionWindow returns the start and end of the session containing t, used
// to bound the price-action sentiment lookback. For closed periods it
// returns the span since the last session end.
func (c *MarketClock) SessionWindow(t time.Time) (time.Time, time.Time) {
	local := t.In(c.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)

	switch c.SessionAt(t) {
	case SessionPreMarket:
		return day.Add(4 * time.Hour), day.Add(9*time.Hour + 30*time.Minute)
	case SessionRegular:
		return day.Add(9*time.Hour + 30*time.Minute), day.Add(16 * time.Hour)
	case SessionAfterHours:
		return day.Add(16 * time.Hour), day.Add(20 * time.Hour)
	default:
		last := c.LastTradingDay(t)
		return last.Add(20 * time.Hour), local
	}
}
