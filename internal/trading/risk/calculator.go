package risk

import (
	"fmt"
	"math"

	"github.com/Alias1177/fxguard/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Calculator holds the pure risk arithmetic
type Calculator struct {
	limits Limits
	logger zerolog.Logger
}

// NewCalculator creates a calculator for limits
func NewCalculator(limits Limits) *Calculator {
	return &Calculator{
		limits: limits,
		logger: log.With().Str("component", "risk_calculator").Logger(),
	}
}

// Limits returns the configured limits
func (c *Calculator) Limits() Limits {
	return c.limits
}

// RemainingRisk derives the daily budget snapshot from realized and floating P&L
func (c *Calculator) RemainingRisk(closedPnL, floatingPnL float64) models.RiskSnapshot {
	maxDaily := c.limits.MaxDailyLoss()
	totalLoss := math.Abs(math.Min(closedPnL, 0)) + math.Abs(math.Min(floatingPnL, 0))
	remaining := math.Max(maxDaily-totalLoss-c.limits.RiskBuffer(), 0)

	var pctUsed float64
	if maxDaily > 0 {
		pctUsed = totalLoss / maxDaily * 100
	}

	status := models.RiskOK
	switch {
	case totalLoss >= maxDaily:
		status = models.RiskLimitReached
	case remaining < c.limits.MaxLossPerTrade:
		status = models.RiskInsufficient
	}

	c.logger.Debug().
		Float64("remaining", remaining).
		Float64("pct_used", pctUsed).
		Str("status", string(status)).
		Msg("Risk snapshot")

	return models.RiskSnapshot{
		RemainingRisk: remaining,
		TotalLoss:     totalLoss,
		MaxDailyLoss:  maxDaily,
		PctUsed:       pctUsed,
		Status:        status,
	}
}

// PipDistance returns |entry-stop| in pips
func (c *Calculator) PipDistance(entry, stop float64) float64 {
	d := decimal.NewFromFloat(entry).Sub(decimal.NewFromFloat(stop)).Abs()
	return d.Div(decimal.NewFromFloat(c.limits.PipSize)).InexactFloat64()
}

// TradeRisk is the dollar loss if the stop is hit
func (c *Calculator) TradeRisk(entry, stop, lots float64) float64 {
	return c.PipDistance(entry, stop) * c.limits.PipValuePerLot * lots
}

// PositionSize sizes a trade so the stop costs at most riskAmount, capped by the per-trade limit.
// A riskAmount of zero or less uses AccountSize*DefaultRiskPct.
func (c *Calculator) PositionSize(entry, stop, riskAmount float64) float64 {
	if riskAmount <= 0 {
		riskAmount = c.limits.AccountSize * c.limits.DefaultRiskPct
	}
	riskAmount = math.Min(riskAmount, c.limits.MaxLossPerTrade)

	pips := c.PipDistance(entry, stop)
	if pips == 0 {
		c.logger.Error().Float64("entry", entry).Float64("stop", stop).Msg("Zero pip risk, using minimum lot")
		return c.limits.MinLot
	}

	raw := decimal.NewFromFloat(riskAmount).
		Div(decimal.NewFromFloat(pips * c.limits.PipValuePerLot))

	// round down to the lot step so sizing never exceeds the risk amount
	step := decimal.NewFromFloat(c.limits.LotStep)
	stepped := raw.Div(step).Floor().Mul(step)

	lots := math.Max(c.limits.MinLot, math.Min(stepped.InexactFloat64(), c.limits.MaxLot))

	c.logger.Info().Float64("lots", lots).Float64("risk", riskAmount).Float64("pips", pips).Msg("Position sized")
	return lots
}

// ValidateTrade checks the trade risk against the per-trade cap and the remaining budget
func (c *Calculator) ValidateTrade(entry, stop, lots, remaining float64) (bool, string) {
	risk := c.TradeRisk(entry, stop, lots)
	if risk > c.limits.MaxLossPerTrade {
		return false, fmt.Sprintf("Trade risk $%.2f exceeds max $%.2f", risk, c.limits.MaxLossPerTrade)
	}
	if risk > remaining {
		return false, fmt.Sprintf("Trade risk $%.2f exceeds remaining $%.2f", risk, remaining)
	}
	return true, "Trade validated"
}
