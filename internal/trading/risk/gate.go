package risk

import (
	"fmt"
	"math"

	"github.com/Alias1177/fxguard/internal/metrics"
	"github.com/Alias1177/fxguard/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Decision is the gate verdict for one signal
type Decision struct {
	Approved bool                 `json:"approved"`
	Reason   string               `json:"reason"`
	Status   models.RiskStatus    `json:"status"`
	Details  *models.TradeDetails `json:"details,omitempty"`
}

// GateStatus summarizes the budget and position counters
type GateStatus struct {
	CanTrade         bool              `json:"can_trade"`
	Status           models.RiskStatus `json:"status"`
	RemainingRisk    float64           `json:"remaining_risk"`
	PctUsed          float64           `json:"pct_used"`
	OpenPositions    int               `json:"open_positions"`
	MaxOpenPositions int               `json:"max_open_positions"`
	DailyTrades      int               `json:"daily_trades"`
	MaxDailyTrades   int               `json:"max_daily_trades"`
	ClosedPnL        float64           `json:"closed_pnl"`
	FloatingPnL      float64           `json:"floating_pnl"`
	TotalPnL         float64           `json:"total_pnl"`
}

// Gate is the only path from a signal to an actionable proposal
type Gate struct {
	calc   *Calculator
	ledger *Ledger
	logger zerolog.Logger
}

// NewGate creates a gate over the calculator and the ledger
func NewGate(calc *Calculator, ledger *Ledger) *Gate {
	return &Gate{
		calc:   calc,
		ledger: ledger,
		logger: log.With().Str("component", "risk_gate").Logger(),
	}
}

// Validate runs every check in order and sizes the trade when all pass
func (g *Gate) Validate(sig *models.Signal, o *models.Order) Decision {
	d := g.validate(sig, o)
	metrics.IncGateDecision(d.Approved)

	ev := g.logger.Info()
	if !d.Approved {
		ev = g.logger.Warn()
	}
	ev.Bool("approved", d.Approved).Str("reason", d.Reason).Str("status", string(d.Status)).Msg("Gate decision")
	return d
}

func (g *Gate) validate(sig *models.Signal, o *models.Order) Decision {
	limits := g.calc.Limits()
	pnl := g.ledger.DailyPnL()
	snap := g.calc.RemainingRisk(pnl.Closed, pnl.Floating)

	reject := func(reason string) Decision {
		return Decision{Reason: reason, Status: snap.Status}
	}

	if sig == nil || o == nil {
		return reject("Missing signal or order")
	}
	if open := len(g.ledger.OpenTrades()); open >= limits.MaxOpenPositions {
		return reject(fmt.Sprintf("Max open positions reached (%d)", limits.MaxOpenPositions))
	}
	if g.ledger.TradesToday() >= limits.MaxDailyTrades {
		return reject(fmt.Sprintf("Max daily trades reached (%d)", limits.MaxDailyTrades))
	}
	if !snap.CanTrade() {
		return reject(fmt.Sprintf("Risk limit reached: %s", snap.Status))
	}

	lots := g.calc.PositionSize(o.Entry, o.StopLoss, 0)
	risk := g.calc.TradeRisk(o.Entry, o.StopLoss, lots)
	if ok, reason := g.calc.ValidateTrade(o.Entry, o.StopLoss, lots, snap.RemainingRisk); !ok {
		return reject(reason)
	}

	return Decision{
		Approved: true,
		Reason:   "Signal approved",
		Status:   snap.Status,
		Details: &models.TradeDetails{
			SignalID:       sig.ID,
			Direction:      sig.Direction,
			Entry:          o.Entry,
			StopLoss:       o.StopLoss,
			TakeProfit:     o.TakeProfit,
			Lots:           lots,
			RiskAmount:     risk,
			RiskReward:     o.RiskReward,
			Confidence:     sig.Confidence,
			RemainingRisk:  snap.RemainingRisk,
			RemainingAfter: math.Max(0, snap.RemainingRisk-risk),
			PctUsed:        snap.PctUsed,
		},
	}
}

// RiskStatus reports the current budget and counters
func (g *Gate) RiskStatus() GateStatus {
	limits := g.calc.Limits()
	pnl := g.ledger.DailyPnL()
	snap := g.calc.RemainingRisk(pnl.Closed, pnl.Floating)

	return GateStatus{
		CanTrade:         snap.CanTrade(),
		Status:           snap.Status,
		RemainingRisk:    snap.RemainingRisk,
		PctUsed:          snap.PctUsed,
		OpenPositions:    len(g.ledger.OpenTrades()),
		MaxOpenPositions: limits.MaxOpenPositions,
		DailyTrades:      g.ledger.TradesToday(),
		MaxDailyTrades:   limits.MaxDailyTrades,
		ClosedPnL:        pnl.Closed,
		FloatingPnL:      pnl.Floating,
		TotalPnL:         pnl.Total,
	}
}
