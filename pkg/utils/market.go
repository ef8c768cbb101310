package utils

import (
	"time"
)

// MarketStatus represents the US equity session state.
type MarketStatus string

const (
	MarketPreOpen    MarketStatus = "PRE_OPEN"
	MarketOpen       MarketStatus = "OPEN"
	MarketAfterHours MarketStatus = "AFTER_HOURS"
	MarketClosed     MarketStatus = "CLOSED"
)

// NewYork is the timezone for US equity markets.
var NewYork *time.Location

func init() {
	var err error
	NewYork, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback to EST, ignoring daylight saving
		NewYork = time.FixedZone("EST", -5*60*60)
	}
}

// MarketStatusAt returns the US equity session state at t.
func MarketStatusAt(t time.Time) MarketStatus {
	now := t.In(NewYork)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return MarketClosed
	}

	minutes := now.Hour()*60 + now.Minute()

	switch {
	case minutes >= 240 && minutes < 570: // 4:00 - 9:30
		return MarketPreOpen
	case minutes >= 570 && minutes < 960: // 9:30 - 16:00
		return MarketOpen
	case minutes >= 960 && minutes < 1200: // 16:00 - 20:00
		return MarketAfterHours
	}
	return MarketClosed
}

// IsMarketOpen returns true if the regular session is open at t.
func IsMarketOpen(t time.Time) bool {
	return MarketStatusAt(t) == MarketOpen
}

// NextMarketOpen returns the next regular session open after t.
func NextMarketOpen(t time.Time) time.Time {
	now := t.In(NewYork)

	next := time.Date(now.Year(), now.Month(), now.Day(), 9, 30, 0, 0, NewYork)
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}

	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}

	return next
}
