package clock

import (
	"fmt"
	"time"
)

// TradingHours is a UTC session window, Start inclusive and End exclusive, on weekdays only
type TradingHours struct {
	Start int
	End   int
}

// IsTradingTime reports whether t falls inside the session
func (h TradingHours) IsTradingTime(t time.Time) bool {
	t = t.UTC()
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return t.Hour() >= h.Start && t.Hour() < h.End
}

// UntilNextSession returns zero inside a session, otherwise the time until the next session opens
func (h TradingHours) UntilNextSession(t time.Time) time.Duration {
	t = t.UTC()
	if h.IsTradingTime(t) {
		return 0
	}

	next := time.Date(t.Year(), t.Month(), t.Day(), h.Start, 0, 0, 0, time.UTC)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(t)
}

// SessionEnd returns the close of the session containing t
func (h TradingHours) SessionEnd(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), h.End, 0, 0, 0, time.UTC)
}

// NextUTCMidnight returns the start of the UTC day after t
func NextUTCMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// SameUTCDay reports whether a and b fall on the same UTC date
func SameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// FormatRemaining renders a duration as "2h 5m" style text
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
