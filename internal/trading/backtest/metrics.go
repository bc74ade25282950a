package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/Alias1177/fxguard/internal/trading/risk"
	"github.com/Alias1177/fxguard/models"
)

// calculateMetrics derives the equity based metrics from the closed trades
func calculateMetrics(results *Results, initial float64) {
	trades := append([]models.Trade{}, results.Trades...)
	sort.SliceStable(trades, func(i, j int) bool {
		return closeTime(trades[i]).Before(closeTime(trades[j]))
	})

	results.EquityCurve = risk.EquityCurve(initial, trades)
	results.MaxDrawdown = risk.MaxDrawdown(results.EquityCurve)

	if len(trades) == 0 {
		return
	}

	var grossWin, grossLoss float64
	var wins, losses, consecutiveWins, consecutiveLosses int
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
			grossWin += t.PnL
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			losses++
			grossLoss -= t.PnL
			consecutiveLosses++
			consecutiveWins = 0
		}
		if consecutiveWins > results.MaxConsecutive.Wins {
			results.MaxConsecutive.Wins = consecutiveWins
		}
		if consecutiveLosses > results.MaxConsecutive.Losses {
			results.MaxConsecutive.Losses = consecutiveLosses
		}

		month := closeTime(t).Format("2006-01")
		results.MonthlyReturns[month] += t.PnL / initial * 100
	}

	if wins > 0 {
		results.AverageWin = grossWin / float64(wins)
	}
	if losses > 0 {
		results.AverageLoss = grossLoss / float64(losses)
	}

	final := results.EquityCurve[len(results.EquityCurve)-1]
	results.TotalReturn = (final - initial) / initial * 100
	results.SharpeRatio = sharpeRatio(results.EquityCurve)
}

// sharpeRatio is the per-trade Sharpe ratio of the equity curve, annualized over 252 periods
func sharpeRatio(curve []float64) float64 {
	if len(curve) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] == 0 {
			continue
		}
		returns = append(returns, (curve[i]-curve[i-1])/curve[i-1])
	}

	m := mean(returns)
	sd := stdDev(returns, m)
	if sd == 0 {
		return 0
	}
	return m / sd * math.Sqrt(252)
}

func closeTime(t models.Trade) time.Time {
	if t.ClosedAt != nil {
		return *t.ClosedAt
	}
	return t.OpenedAt
}

// Helper functions
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var sumSquaredDiff float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}

	return math.Sqrt(sumSquaredDiff / float64(len(values)-1))
}
