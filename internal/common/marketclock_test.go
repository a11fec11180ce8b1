package common

import (
	"testing"
	"time"
)

func etTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	parsed, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return parsed
}

func TestSessionAt(t *testing.T) {
	clock := NewMarketClock(nil)

	tests := []struct {
		name     string
		at       string
		expected MarketSession
	}{
		{"weekday premarket open", "2024-03-05 04:00", SessionPreMarket},
		{"weekday premarket late", "2024-03-05 09:29", SessionPreMarket},
		{"weekday regular open", "2024-03-05 09:30", SessionRegular},
		{"weekday regular midday", "2024-03-05 12:00", SessionRegular},
		{"weekday regular last minute", "2024-03-05 15:59", SessionRegular},
		{"weekday afterhours open", "2024-03-05 16:00", SessionAfterHours},
		{"weekday afterhours late", "2024-03-05 19:59", SessionAfterHours},
		{"weekday overnight", "2024-03-05 20:00", SessionClosed},
		{"weekday early morning", "2024-03-05 03:59", SessionClosed},
		{"saturday midday", "2024-03-09 12:00", SessionClosed},
		{"sunday midday", "2024-03-10 12:00", SessionClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clock.SessionAt(etTime(t, tt.at))
			if got != tt.expected {
				t.Errorf("SessionAt(%s) = %s, expected %s", tt.at, got, tt.expected)
			}
		})
	}
}

func TestSessionAtHoliday(t *testing.T) {
	july4 := etTime(t, "2024-07-04 00:00")
	clock := NewMarketClock([]time.Time{july4})

	if got := clock.SessionAt(etTime(t, "2024-07-04 12:00")); got != SessionClosed {
		t.Errorf("holiday midday = %s, expected closed", got)
	}
	if got := clock.SessionAt(etTime(t, "2024-07-05 12:00")); got != SessionRegular {
		t.Errorf("day after holiday = %s, expected regular", got)
	}
}

func TestLastTradingDay(t *testing.T) {
	clock := NewMarketClock(nil)

	// Saturday walks back to Friday.
	got := clock.LastTradingDay(etTime(t, "2024-03-09 12:00"))
	if got.Weekday() != time.Friday || got.Day() != 8 {
		t.Errorf("LastTradingDay(saturday) = %s, expected Friday the 8th", got)
	}

	// A trading day resolves to itself.
	got = clock.LastTradingDay(etTime(t, "2024-03-05 12:00"))
	if got.Day() != 5 {
		t.Errorf("LastTradingDay(tuesday) = %s, expected same day", got)
	}
}

func TestSessionWindow(t *testing.T) {
	clock := NewMarketClock(nil)

	start, end := clock.SessionWindow(etTime(t, "2024-03-05 12:00"))
	if start.Hour() != 9 || start.Minute() != 30 {
		t.Errorf("regular window start = %s, expected 09:30", start)
	}
	if end.Hour() != 16 {
		t.Errorf("regular window end = %s, expected 16:00", end)
	}

	start, end = clock.SessionWindow(etTime(t, "2024-03-05 05:00"))
	if start.Hour() != 4 {
		t.Errorf("premarket window start = %s, expected 04:00", start)
	}
	if end.Hour() != 9 || end.Minute() != 30 {
		t.Errorf("premarket window end = %s, expected 09:30", end)
	}
}
