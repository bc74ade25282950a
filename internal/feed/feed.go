// Package feed fetches validated, closed market data through the call governor.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Alias1177/fxguard/internal/clock"
	httpClient "github.com/Alias1177/fxguard/internal/platform/http"
	"github.com/Alias1177/fxguard/internal/validate"
	"github.com/Alias1177/fxguard/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned whenever the feed could not produce usable data
var ErrUnavailable = errors.New("market data unavailable")

// Guard is the part of the call governor the feed depends on
type Guard interface {
	CanCall() (bool, string)
	RecordCall()
	RecordSuccess()
	RecordFailure(cause string)
}

// Options selects the instrument and history window
type Options struct {
	Symbol           string
	Interval         string
	CandleCount      int
	TimeframeMinutes int
}

// MarketData is the per-cycle market snapshot
type MarketData struct {
	Price     float64
	Candles   []models.Candle
	Timestamp time.Time
}

// Feed combines the provider, the governor and the validator
type Feed struct {
	provider models.MarketDataProvider
	guard    Guard
	clock    clock.Clock
	opts     Options
	logger   zerolog.Logger
}

// New creates a feed
func New(provider models.MarketDataProvider, guard Guard, clk clock.Clock, opts Options) *Feed {
	return &Feed{
		provider: provider,
		guard:    guard,
		clock:    clk,
		opts:     opts,
		logger:   log.With().Str("component", "feed").Str("symbol", opts.Symbol).Logger(),
	}
}

// CurrentPrice returns the latest validated price
func (f *Feed) CurrentPrice(ctx context.Context) (float64, error) {
	if err := f.admit(); err != nil {
		return 0, err
	}

	raw, err := f.provider.GetPrice(ctx, f.opts.Symbol)
	f.guard.RecordCall()
	if err != nil {
		return 0, f.fail("price request", err)
	}

	if !validate.ValidatePrice(raw) {
		return 0, f.fail("price validation", fmt.Errorf("invalid price %q", raw))
	}
	price, err := validate.ParsePrice(raw)
	if err != nil {
		return 0, f.fail("price validation", err)
	}

	f.guard.RecordSuccess()
	return price, nil
}

// Quote returns the current OHLCV quote as a candle stamped with now
func (f *Feed) Quote(ctx context.Context) (models.Candle, error) {
	if err := f.admit(); err != nil {
		return models.Candle{}, err
	}

	raw, err := f.provider.GetQuote(ctx, f.opts.Symbol)
	f.guard.RecordCall()
	if err != nil {
		return models.Candle{}, f.fail("quote request", err)
	}

	if !validate.ValidateQuote(raw) {
		return models.Candle{}, f.fail("quote validation", errors.New("invalid quote"))
	}
	c, err := validate.ParseQuote(raw, f.clock.Now())
	if err != nil {
		return models.Candle{}, f.fail("quote validation", err)
	}

	f.guard.RecordSuccess()
	return c, nil
}

// HistoricalCandles returns the closed candles of the configured window, oldest first
func (f *Feed) HistoricalCandles(ctx context.Context) ([]models.Candle, error) {
	if err := f.admit(); err != nil {
		return nil, err
	}

	raw, err := f.provider.GetSeries(ctx, f.opts.Symbol, f.opts.Interval, f.opts.CandleCount)
	f.guard.RecordCall()
	if err != nil {
		return nil, f.fail("series request", err)
	}

	if !validate.ValidateSeries(raw) {
		return nil, f.fail("series validation", errors.New("invalid series"))
	}
	candles, err := validate.ParseSeries(raw)
	if err != nil {
		return nil, f.fail("series validation", err)
	}

	closed := validate.FilterClosed(candles, f.clock.Now(), f.opts.TimeframeMinutes)
	if len(closed) == 0 {
		return nil, f.fail("anti-repainting filter", errors.New("no closed candles"))
	}

	f.guard.RecordSuccess()
	f.logger.Debug().Int("closed", len(closed)).Int("fetched", len(candles)).Msg("Fetched historical candles")
	return closed, nil
}

// MarketData fetches the price and then the candle history
func (f *Feed) MarketData(ctx context.Context) (*MarketData, error) {
	price, err := f.CurrentPrice(ctx)
	if err != nil {
		return nil, err
	}
	candles, err := f.HistoricalCandles(ctx)
	if err != nil {
		return nil, err
	}
	return &MarketData{
		Price:     price,
		Candles:   candles,
		Timestamp: f.clock.Now(),
	}, nil
}

func (f *Feed) admit() error {
	if ok, reason := f.guard.CanCall(); !ok {
		f.logger.Error().Str("reason", reason).Msg("API call blocked")
		return fmt.Errorf("%w: %s", ErrUnavailable, reason)
	}
	return nil
}

func (f *Feed) fail(stage string, err error) error {
	cause := classify(err)
	f.logger.Error().Err(err).Str("stage", stage).Str("cause", cause).Msg("Market data request failed")
	f.guard.RecordFailure(cause + ": " + err.Error())
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, stage, err)
}

// classify separates rate limiting and timeouts from generic failures
func classify(err error) string {
	switch {
	case errors.Is(err, httpClient.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, httpClient.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
