package models

import (
	"fmt"
	"time"
)

// IntervalDuration converts a Twelve Data interval name into the candle duration
func IntervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "1min":
		return time.Minute, nil
	case "5min":
		return 5 * time.Minute, nil
	case "15min":
		return 15 * time.Minute, nil
	case "30min":
		return 30 * time.Minute, nil
	case "45min":
		return 45 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "2h":
		return 2 * time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "8h":
		return 8 * time.Hour, nil
	case "1day":
		return 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unsupported interval %q", interval)
}

// CandlesForDays estimates how many candles of the interval cover the given number of days
func CandlesForDays(interval string, days int) int {
	d, err := IntervalDuration(interval)
	if err != nil || days < 1 {
		return 0
	}
	perDay := int((24 * time.Hour) / d)
	if perDay < 1 {
		perDay = 1
	}

	// Add a buffer for gaps in the provider history
	return int(float64(perDay) * float64(days) * 1.1)
}
