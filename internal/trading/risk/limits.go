// Package risk sizes positions, tracks manually executed trades and gates new proposals
// against the daily loss budget.
package risk

// Limits are the account and daily loss rules
type Limits struct {
	AccountSize      float64
	MaxDailyLossPct  float64
	MaxLossPerTrade  float64
	RiskBufferPct    float64
	DefaultRiskPct   float64
	MinLot           float64
	MaxLot           float64
	LotStep          float64
	PipSize          float64
	PipValuePerLot   float64
	MaxOpenPositions int
	MaxDailyTrades   int
}

// DefaultLimits returns the production limits
func DefaultLimits() Limits {
	return Limits{
		AccountSize:      5000,
		MaxDailyLossPct:  0.05,
		MaxLossPerTrade:  100,
		RiskBufferPct:    0.20,
		DefaultRiskPct:   0.02,
		MinLot:           0.01,
		MaxLot:           1.0,
		LotStep:          0.01,
		PipSize:          0.0001,
		PipValuePerLot:   10,
		MaxOpenPositions: 3,
		MaxDailyTrades:   10,
	}
}

// MaxDailyLoss is the absolute daily loss limit
func (l Limits) MaxDailyLoss() float64 {
	return l.AccountSize * l.MaxDailyLossPct
}

// RiskBuffer is the slice of the daily limit that is never allocated to new trades
func (l Limits) RiskBuffer() float64 {
	return l.MaxDailyLoss() * l.RiskBufferPct
}
