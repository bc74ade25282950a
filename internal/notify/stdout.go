package notify

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Stdout logs every notification instead of delivering it
type Stdout struct {
	logger zerolog.Logger
}

// NewStdout creates a logging notifier
func NewStdout() *Stdout {
	return &Stdout{logger: log.With().Str("component", "notify_stdout").Logger()}
}

func (s *Stdout) SendSignal(_ context.Context, p Proposal) {
	d := p.Details
	s.logger.Info().
		Str("cycle_id", p.CycleID).
		Int64("signal_id", d.SignalID).
		Str("direction", string(d.Direction)).
		Float64("entry", d.Entry).
		Float64("stop_loss", d.StopLoss).
		Float64("take_profit", d.TakeProfit).
		Float64("lots", d.Lots).
		Float64("risk", d.RiskAmount).
		Msg("Trade proposal")
}

func (s *Stdout) SendHeartbeat(_ context.Context, h Heartbeat) {
	s.logger.Info().
		Float64("price", h.Price).
		Str("circuit", string(h.CircuitState)).
		Int("daily_calls", h.DailyCalls).
		Int("open_positions", h.OpenPositions).
		Float64("remaining_risk", h.RemainingRisk).
		Float64("pnl", h.TotalPnL).
		Msg("Heartbeat")
}

func (s *Stdout) SendAlert(_ context.Context, sev Severity, msg string) {
	var ev *zerolog.Event
	switch sev {
	case SeverityInfo:
		ev = s.logger.Info()
	case SeverityWarning:
		ev = s.logger.Warn()
	default:
		ev = s.logger.Error()
	}
	ev.Str("severity", string(sev)).Msg(msg)
}

func (s *Stdout) SendMessage(_ context.Context, text string) {
	s.logger.Info().Msg(text)
}
