package models

import (
	"time"
)

// Direction of a trade candidate
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Valid reports whether d is one of the known directions
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// TradeStatus is the lifecycle state of a ledger trade
type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// ExitReason explains why a trade was closed
type ExitReason string

const (
	ExitStopLoss   ExitReason = "SL"
	ExitTakeProfit ExitReason = "TP"
	ExitManual     ExitReason = "MANUAL"
)

// SignalIndicators is the snapshot of values that triggered a signal
type SignalIndicators struct {
	ZScore float64 `json:"z_score"`
	ADX    float64 `json:"adx"`
	RSI    float64 `json:"rsi"`
}

// Signal is a directional trade candidate
type Signal struct {
	ID            int64            `json:"signal_id"`
	Direction     Direction        `json:"direction"`
	Timestamp     time.Time        `json:"timestamp"`
	EntryPrice    float64          `json:"entry_price"`
	Indicators    SignalIndicators `json:"indicators"`
	Confidence    float64          `json:"ml_confidence"`
	HasClassifier bool             `json:"has_classifier"`
	Reason        string           `json:"reason"`
}

// Order holds the limit order geometry for a signal
type Order struct {
	Direction  Direction `json:"direction"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	SLPips     float64   `json:"sl_pips"`
	TPPips     float64   `json:"tp_pips"`
	RiskReward float64   `json:"risk_reward_ratio"`
}

// Trade is a position tracked by the ledger
type Trade struct {
	SignalID     int64       `json:"signal_id"`
	Direction    Direction   `json:"direction"`
	Entry        float64     `json:"entry"`
	StopLoss     float64     `json:"stop_loss"`
	TakeProfit   float64     `json:"take_profit"`
	Lots         float64     `json:"lots"`
	Status       TradeStatus `json:"status"`
	PnL          float64     `json:"pnl"`
	CurrentPrice float64     `json:"current_price,omitempty"`
	ExitPrice    float64     `json:"exit_price,omitempty"`
	ExitReason   ExitReason  `json:"exit_reason,omitempty"`
	OpenedAt     time.Time   `json:"opened_at"`
	ClosedAt     *time.Time  `json:"closed_at,omitempty"`
}

// RiskStatus is the verdict of the daily loss accounting
type RiskStatus string

const (
	RiskOK           RiskStatus = "OK"
	RiskInsufficient RiskStatus = "INSUFFICIENT"
	RiskLimitReached RiskStatus = "LIMIT_REACHED"
)

// RiskSnapshot is derived from the ledger P&L and never persisted
type RiskSnapshot struct {
	RemainingRisk float64    `json:"remaining_risk"`
	TotalLoss     float64    `json:"total_loss"`
	MaxDailyLoss  float64    `json:"max_daily_loss"`
	PctUsed       float64    `json:"pct_used"`
	Status        RiskStatus `json:"status"`
}

// CanTrade reports whether the snapshot permits opening a new trade
func (s RiskSnapshot) CanTrade() bool {
	return s.Status == RiskOK
}

// TradeDetails is the concrete proposal produced by an approving gate
type TradeDetails struct {
	SignalID      int64     `json:"signal_id"`
	Direction     Direction `json:"direction"`
	Entry         float64   `json:"entry"`
	StopLoss      float64   `json:"stop_loss"`
	TakeProfit    float64   `json:"take_profit"`
	Lots          float64   `json:"lots"`
	RiskAmount    float64   `json:"risk_amount"`
	RiskReward    float64   `json:"risk_reward_ratio"`
	Confidence    float64   `json:"ml_confidence"`
	RemainingRisk float64   `json:"remaining_risk"`
	PctUsed       float64   `json:"risk_pct_used"`

	// RemainingAfter is the budget left once this trade's risk is committed
	RemainingAfter float64 `json:"remaining_risk_after"`
}

// PnLSummary splits realized and floating P&L
type PnLSummary struct {
	Closed   float64 `json:"closed_pnl"`
	Floating float64 `json:"floating_pnl"`
	Total    float64 `json:"total_pnl"`
}

// Statistics aggregates closed trade performance
type Statistics struct {
	TotalTrades  int     `json:"total_trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	ClosedPnL    float64 `json:"closed_pnl"`
	FloatingPnL  float64 `json:"floating_pnl"`
	TotalPnL     float64 `json:"total_pnl"`
	ProfitFactor float64 `json:"profit_factor"`
	MaxDrawdown  float64 `json:"max_drawdown_pct"`
}
