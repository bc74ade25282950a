package indicators

import (
	"fmt"
	"math"

	"github.com/Alias1177/fxguard/models"
	"github.com/rs/zerolog/log"
)

// MinCandles is the shortest history Calculate accepts
const MinCandles = 20

// Params holds the indicator periods
type Params struct {
	MAPeriod  int
	BBPeriod  int
	BBStdDev  float64
	RSIPeriod int
	ADXPeriod int
}

// DefaultParams returns the production periods
func DefaultParams() Params {
	return Params{
		MAPeriod:  20,
		BBPeriod:  20,
		BBStdDev:  2.0,
		RSIPeriod: 14,
		ADXPeriod: 14,
	}
}

// Bands is a Bollinger Bands result
type Bands struct {
	Upper    float64
	Middle   float64
	Lower    float64
	Width    float64
	PercentB float64
}

// ZScore returns how many population standard deviations the last close is from the mean
func ZScore(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	window := closes[len(closes)-period:]
	m, sd := meanStdDev(window)
	if sd == 0 {
		return 0
	}
	return (closes[len(closes)-1] - m) / sd
}

// Bollinger calculates Bollinger Bands over the last period closes
func Bollinger(closes []float64, period int, stdDev float64) Bands {
	if period <= 0 || len(closes) < period {
		return Bands{}
	}

	window := closes[len(closes)-period:]
	middle, sd := meanStdDev(window)
	upper := middle + stdDev*sd
	lower := middle - stdDev*sd

	b := Bands{Upper: upper, Middle: middle, Lower: lower, PercentB: 0.5}
	if middle != 0 {
		b.Width = (upper - lower) / middle
	}
	if upper != lower {
		b.PercentB = (closes[len(closes)-1] - lower) / (upper - lower)
	}
	return b
}

// RSI calculates the relative strength index from simple averages of the last period changes
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50.0 // neutral value when history is short
	}

	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// ADX calculates the average directional index with EMA smoothing
func ADX(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if period <= 0 || n < period+1 || len(highs) != n || len(lows) != n {
		return 0
	}

	tr := make([]float64, n-1)
	plusDM := make([]float64, n-1)
	minusDM := make([]float64, n-1)
	for i := 1; i < n; i++ {
		tr[i-1] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))

		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	trSmooth := ema(tr, period)
	plusSmooth := ema(plusDM, period)
	minusSmooth := ema(minusDM, period)

	dx := make([]float64, len(tr))
	for i := range dx {
		if trSmooth[i] == 0 {
			continue
		}
		plusDI := 100 * plusSmooth[i] / trSmooth[i]
		minusDI := 100 * minusSmooth[i] / trSmooth[i]
		dx[i] = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI + 1e-10)
	}

	adx := ema(dx, period)
	return adx[len(adx)-1]
}

// Calculate computes every indicator over the candle history, oldest first
func Calculate(candles []models.Candle, p Params) (*models.Indicators, error) {
	if len(candles) < MinCandles {
		log.Error().Str("component", "indicators").Int("candles", len(candles)).Msg("Insufficient candles for indicators")
		return nil, fmt.Errorf("insufficient candles for indicators: %d < %d", len(candles), MinCandles)
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	bands := Bollinger(closes, p.BBPeriod, p.BBStdDev)
	return &models.Indicators{
		ZScore:       ZScore(closes, p.MAPeriod),
		RSI:          RSI(closes, p.RSIPeriod),
		ADX:          ADX(highs, lows, closes, p.ADXPeriod),
		BBUpper:      bands.Upper,
		BBMiddle:     bands.Middle,
		BBLower:      bands.Lower,
		BBWidth:      bands.Width,
		BBPercentB:   bands.PercentB,
		CurrentPrice: closes[len(closes)-1],
	}, nil
}

// ema is a recursive exponential average seeded with the first value
func ema(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func meanStdDev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += math.Pow(v-m, 2)
	}
	return m, math.Sqrt(variance / float64(len(values)))
}
