package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/Alias1177/fxguard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestCandles(count int, generator func(i int) models.Candle) []models.Candle {
	candles := make([]models.Candle, count)
	for i := 0; i < count; i++ {
		candles[i] = generator(i)
	}
	return candles
}

func closesOf(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func series(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func TestZScore(t *testing.T) {
	tests := []struct {
		name     string
		closes   []float64
		expected float64
	}{
		{"linear ramp", series(20, func(i int) float64 { return float64(i + 1) }), 9.5 / math.Sqrt(33.25)},
		{"flat", series(30, func(int) float64 { return 1.1 }), 0},
		{"insufficient data", series(10, func(i int) float64 { return float64(i) }), 0},
		{"uses last window only", append(series(5, func(int) float64 { return 1000 }),
			series(20, func(i int) float64 { return float64(i + 1) })...), 9.5 / math.Sqrt(33.25)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ZScore(tt.closes, 20), 1e-9)
		})
	}
}

func TestBollinger(t *testing.T) {
	t.Run("flat market has degenerate bands", func(t *testing.T) {
		b := Bollinger(series(20, func(int) float64 { return 1.2 }), 20, 2.0)
		assert.InDelta(t, 1.2, b.Middle, 1e-12)
		assert.Equal(t, 0.0, b.Width)
		assert.Equal(t, 0.5, b.PercentB)
	})

	t.Run("insufficient data", func(t *testing.T) {
		assert.Equal(t, Bands{}, Bollinger(series(5, func(int) float64 { return 1 }), 20, 2.0))
	})

	t.Run("ramp", func(t *testing.T) {
		closes := series(20, func(i int) float64 { return float64(i + 1) })
		b := Bollinger(closes, 20, 2.0)
		sd := math.Sqrt(33.25)
		assert.InDelta(t, 10.5, b.Middle, 1e-9)
		assert.InDelta(t, 10.5+2*sd, b.Upper, 1e-9)
		assert.InDelta(t, 10.5-2*sd, b.Lower, 1e-9)
		assert.InDelta(t, 4*sd/10.5, b.Width, 1e-9)
		assert.InDelta(t, (20-b.Lower)/(b.Upper-b.Lower), b.PercentB, 1e-9)
	})
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name     string
		closes   []float64
		expected float64
	}{
		{"insufficient data", series(14, func(i int) float64 { return float64(i) }), 50},
		{"only gains", series(30, func(i int) float64 { return float64(i) }), 100},
		{"flat", series(30, func(int) float64 { return 1 }), 100},
		{"only losses", series(30, func(i int) float64 { return 100 - float64(i) }), 0},
		{"alternating", series(31, func(i int) float64 { return 10 + float64(i%2) }), 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, RSI(tt.closes, 14), 1e-9)
		})
	}
}

func TestADX(t *testing.T) {
	t.Run("insufficient data", func(t *testing.T) {
		h := series(14, func(i int) float64 { return float64(i) + 1 })
		assert.Equal(t, 0.0, ADX(h, h, h, 14))
	})

	t.Run("steady trend saturates", func(t *testing.T) {
		n := 60
		highs := series(n, func(i int) float64 { return float64(i) + 1 })
		lows := series(n, func(i int) float64 { return float64(i) - 1 })
		closes := series(n, func(i int) float64 { return float64(i) })
		assert.InDelta(t, 100, ADX(highs, lows, closes, 14), 1e-6)
	})

	t.Run("flat market", func(t *testing.T) {
		flat := series(40, func(int) float64 { return 1.1 })
		assert.Equal(t, 0.0, ADX(flat, flat, flat, 14))
	})

	t.Run("ranging market stays low", func(t *testing.T) {
		n := 100
		closes := series(n, func(i int) float64 { return 1.1 + 0.001*math.Sin(float64(i)) })
		highs := series(n, func(i int) float64 { return closes[i] + 0.0005 })
		lows := series(n, func(i int) float64 { return closes[i] - 0.0005 })
		adx := ADX(highs, lows, closes, 14)
		assert.GreaterOrEqual(t, adx, 0.0)
		assert.Less(t, adx, 100.0)
	})
}

func TestCalculate(t *testing.T) {
	t.Run("too few candles", func(t *testing.T) {
		candles := generateTestCandles(19, func(i int) models.Candle {
			return models.Candle{Close: 1, High: 1, Low: 1}
		})
		_, err := Calculate(candles, DefaultParams())
		assert.Error(t, err)
	})

	t.Run("full set", func(t *testing.T) {
		base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
		candles := generateTestCandles(50, func(i int) models.Candle {
			c := 1.08 + 0.0005*math.Sin(float64(i)/3)
			return models.Candle{
				Timestamp: base.Add(time.Duration(i) * 15 * time.Minute),
				Open:      c,
				High:      c + 0.0003,
				Low:       c - 0.0003,
				Close:     c,
			}
		})

		ind, err := Calculate(candles, DefaultParams())
		require.NoError(t, err)

		closes := closesOf(candles)
		assert.Equal(t, candles[49].Close, ind.CurrentPrice)
		assert.InDelta(t, ZScore(closes, 20), ind.ZScore, 1e-12)
		assert.InDelta(t, RSI(closes, 14), ind.RSI, 1e-12)
		assert.True(t, ind.BBUpper > ind.BBMiddle && ind.BBMiddle > ind.BBLower)
		assert.GreaterOrEqual(t, ind.RSI, 0.0)
		assert.LessOrEqual(t, ind.RSI, 100.0)
	})
}
