package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/Alias1177/fxguard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var replayStart = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

// generateFlatCandles builds n 15 minute candles with a constant close
func generateFlatCandles(start time.Time, n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * 15 * time.Minute),
			Open:      1.0850,
			High:      1.0860,
			Low:       1.0840,
			Close:     1.0855,
		}
	}
	return out
}

// withBar appends one candle after the series
func withBar(candles []models.Candle, open, high, low, close float64) []models.Candle {
	last := candles[len(candles)-1]
	return append(candles, models.Candle{
		Timestamp: last.Timestamp.Add(15 * time.Minute),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
	})
}

// testOptions fire a LONG on every flat window: z=0, RSI=100, ADX=0
func testOptions() Options {
	opts := DefaultOptions()
	opts.WindowSize = 30
	opts.Thresholds.ZLong = 0
	opts.Thresholds.RSIOversold = 101
	return opts
}

func TestReplayRespectsOpenPositionLimit(t *testing.T) {
	res, err := NewEngine(testOptions(), nil).Run(context.Background(), generateFlatCandles(replayStart, 40))
	require.NoError(t, err)

	assert.Equal(t, 10, res.Signals)
	assert.Equal(t, 3, res.Approved)
	assert.Equal(t, 7, res.Rejected)
	assert.Equal(t, 7, res.RejectReasons["Max open positions reached"])

	// flattened at the final close, 5 pips on 0.5 lots each
	require.Len(t, res.Trades, 3)
	for _, tr := range res.Trades {
		assert.Equal(t, models.ExitManual, tr.ExitReason)
		assert.InDelta(t, 25.0, tr.PnL, 1e-6)
	}
	assert.Equal(t, 3, res.Statistics.Wins)
	assert.Equal(t, 3, res.MaxConsecutive.Wins)
	assert.InDelta(t, 1.5, res.TotalReturn, 1e-6)
	assert.InDelta(t, 0, res.MaxDrawdown, 1e-9)
	assert.Len(t, res.EquityCurve, 4)
}

func TestReplayExits(t *testing.T) {
	flat := func() []models.Candle { return generateFlatCandles(replayStart, 30) }

	tests := []struct {
		name     string
		candles  []models.Candle
		trades   int
		unfilled int
		reason   models.ExitReason
		pnl      float64
	}{
		{
			name:    "stop loss",
			candles: withBar(flat(), 1.0850, 1.0855, 1.0800, 1.0810),
			trades:  1,
			reason:  models.ExitStopLoss,
			pnl:     -100,
		},
		{
			name:    "take profit",
			candles: withBar(flat(), 1.0850, 1.0900, 1.0845, 1.0895),
			trades:  1,
			reason:  models.ExitTakeProfit,
			pnl:     200,
		},
		{
			name:    "stop checked before target",
			candles: withBar(flat(), 1.0850, 1.0950, 1.0800, 1.0900),
			trades:  1,
			reason:  models.ExitStopLoss,
			pnl:     -100,
		},
		{
			name:     "limit not reached",
			candles:  withBar(flat(), 1.0860, 1.0870, 1.0852, 1.0865),
			unfilled: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewEngine(testOptions(), nil).Run(context.Background(), tt.candles)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Approved)
			assert.Equal(t, tt.unfilled, res.Unfilled)
			require.Len(t, res.Trades, tt.trades)
			if tt.trades == 0 {
				return
			}
			assert.Equal(t, tt.reason, res.Trades[0].ExitReason)
			assert.InDelta(t, tt.pnl, res.Trades[0].PnL, 1e-6)
		})
	}
}

func TestReplayStopLossDrawdown(t *testing.T) {
	candles := withBar(generateFlatCandles(replayStart, 30), 1.0850, 1.0855, 1.0800, 1.0810)
	res, err := NewEngine(testOptions(), nil).Run(context.Background(), candles)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Statistics.Losses)
	assert.Equal(t, 1, res.MaxConsecutive.Losses)
	assert.InDelta(t, 100, res.AverageLoss, 1e-6)
	assert.InDelta(t, 2.0, res.MaxDrawdown, 1e-6)
	assert.InDelta(t, -2.0, res.MonthlyReturns["2024-03"], 1e-6)
}

func TestReplaySessionOnly(t *testing.T) {
	opts := testOptions()
	opts.SessionOnly = true

	// Saturday
	saturday := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	res, err := NewEngine(opts, nil).Run(context.Background(), generateFlatCandles(saturday, 40))
	require.NoError(t, err)
	assert.Zero(t, res.Signals)
	assert.Empty(t, res.Trades)
}

func TestReplayErrors(t *testing.T) {
	_, err := NewEngine(testOptions(), nil).Run(context.Background(), generateFlatCandles(replayStart, 30))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewEngine(testOptions(), nil).Run(ctx, generateFlatCandles(replayStart, 40))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReasonKey(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"Max daily trades reached (10)", "Max daily trades reached"},
		{"Trade risk $120.00 exceeds max $100.00", "Trade risk"},
		{"Risk limit reached: LIMIT_REACHED", "Risk limit reached: LIMIT_REACHED"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reasonKey(tt.reason))
	}
}

func TestSharpeRatio(t *testing.T) {
	assert.Zero(t, sharpeRatio([]float64{100, 110}))
	assert.Zero(t, sharpeRatio([]float64{100, 110, 121}), "constant returns have no deviation")
	assert.Greater(t, sharpeRatio([]float64{100, 110, 115, 130}), 0.0)
	assert.Less(t, sharpeRatio([]float64{100, 90, 85, 70}), 0.0)
}

func TestFormatResults(t *testing.T) {
	assert.Equal(t, "No replay results available", FormatResults(nil))

	res, err := NewEngine(testOptions(), nil).Run(context.Background(), generateFlatCandles(replayStart, 40))
	require.NoError(t, err)
	out := FormatResults(res)
	assert.Contains(t, out, "REPLAY RESULTS")
	assert.Contains(t, out, "Signals: 10 (approved 3, rejected 7, unfilled 0)")
	assert.Contains(t, out, "- Max open positions reached: 7")
	assert.Contains(t, out, "- 2024-03: +1.50%")
}
