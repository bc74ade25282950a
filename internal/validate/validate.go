// Package validate checks provider payloads and filters out candles that have not closed yet.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Alias1177/fxguard/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var logger = log.With().Str("component", "validator").Logger()

// Accepted candle datetime layouts, all read as UTC when no zone is given
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

var errEmptySeries = errors.New("empty series")

// ValidatePrice reports whether raw is a strictly positive number
func ValidatePrice(raw string) bool {
	if _, err := positive("price", raw); err != nil {
		logger.Error().Err(err).Msg("Invalid price")
		return false
	}
	return true
}

// ValidateQuote applies the OHLCV rules to a quote
func ValidateQuote(q models.RawQuote) bool {
	if _, err := parseOHLCV(q.Open, q.High, q.Low, q.Close, q.Volume); err != nil {
		logger.Error().Err(err).Str("symbol", q.Symbol).Msg("Invalid quote")
		return false
	}
	return true
}

// ValidateCandle applies the OHLCV and datetime rules to a single candle
func ValidateCandle(raw models.RawCandle) bool {
	if _, err := ParseCandle(raw); err != nil {
		logger.Error().Err(err).Str("datetime", raw.Datetime).Msg("Invalid candle")
		return false
	}
	return true
}

// ValidateSeries is all-or-nothing: one bad candle invalidates the batch
func ValidateSeries(raw []models.RawCandle) bool {
	if _, err := ParseSeries(raw); err != nil {
		logger.Error().Err(err).Int("count", len(raw)).Msg("Invalid series")
		return false
	}
	return true
}

// ParseCandle validates raw and converts it to a typed candle
func ParseCandle(raw models.RawCandle) (models.Candle, error) {
	ts, err := ParseTime(raw.Datetime)
	if err != nil {
		return models.Candle{}, err
	}
	c, err := parseOHLCV(raw.Open, raw.High, raw.Low, raw.Close, raw.Volume)
	if err != nil {
		return models.Candle{}, err
	}
	c.Timestamp = ts
	return c, nil
}

// ParseSeries converts every candle or fails on the first invalid one
func ParseSeries(raw []models.RawCandle) ([]models.Candle, error) {
	if len(raw) == 0 {
		return nil, errEmptySeries
	}
	out := make([]models.Candle, 0, len(raw))
	for i, r := range raw {
		c, err := ParseCandle(r)
		if err != nil {
			return nil, fmt.Errorf("candle %d (%s): %w", i, r.Datetime, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// ParseQuote converts a validated quote into a candle stamped with now
func ParseQuote(q models.RawQuote, now time.Time) (models.Candle, error) {
	c, err := parseOHLCV(q.Open, q.High, q.Low, q.Close, q.Volume)
	if err != nil {
		return models.Candle{}, err
	}
	c.Timestamp = now.UTC()
	return c, nil
}

// ParsePrice converts a validated price string
func ParsePrice(raw string) (float64, error) {
	d, err := positive("price", raw)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// ParseTime reads a provider datetime in one of the accepted layouts
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable datetime %q", s)
}

// IsClosed reports whether the candle's period has fully elapsed at now
func IsClosed(c models.Candle, now time.Time, timeframeMinutes int) bool {
	end := c.Timestamp.Add(time.Duration(timeframeMinutes) * time.Minute)
	return !now.Before(end)
}

// FilterClosed keeps only closed candles, judged against a single now
func FilterClosed(candles []models.Candle, now time.Time, timeframeMinutes int) []models.Candle {
	closed := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		if IsClosed(c, now, timeframeMinutes) {
			closed = append(closed, c)
			continue
		}
		logger.Debug().Time("candle", c.Timestamp).Msg("Dropping candle that has not closed")
	}
	logger.Debug().Int("closed", len(closed)).Int("total", len(candles)).Msg("Filtered closed candles")
	return closed
}

func parseOHLCV(open, high, low, closePrice, volume string) (models.Candle, error) {
	o, err := positive("open", open)
	if err != nil {
		return models.Candle{}, err
	}
	h, err := positive("high", high)
	if err != nil {
		return models.Candle{}, err
	}
	l, err := positive("low", low)
	if err != nil {
		return models.Candle{}, err
	}
	c, err := positive("close", closePrice)
	if err != nil {
		return models.Candle{}, err
	}

	v := decimal.Zero
	if strings.TrimSpace(volume) != "" {
		if v, err = number("volume", volume); err != nil {
			return models.Candle{}, err
		}
		if v.IsNegative() {
			return models.Candle{}, fmt.Errorf("negative volume %s", v)
		}
	}

	if h.LessThan(l) {
		return models.Candle{}, fmt.Errorf("high %s below low %s", h, l)
	}
	if o.LessThan(l) || o.GreaterThan(h) {
		return models.Candle{}, fmt.Errorf("open %s outside [%s, %s]", o, l, h)
	}
	if c.LessThan(l) || c.GreaterThan(h) {
		return models.Candle{}, fmt.Errorf("close %s outside [%s, %s]", c, l, h)
	}

	return models.Candle{
		Open:   o.InexactFloat64(),
		High:   h.InexactFloat64(),
		Low:    l.InexactFloat64(),
		Close:  c.InexactFloat64(),
		Volume: v.InexactFloat64(),
	}, nil
}

func number(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s %q is not numeric", field, raw)
	}
	return d, nil
}

func positive(field, raw string) (decimal.Decimal, error) {
	d, err := number(field, raw)
	if err != nil {
		return d, err
	}
	if !d.IsPositive() {
		return d, fmt.Errorf("%s %s must be positive", field, d)
	}
	return d, nil
}
