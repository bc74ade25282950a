package risk

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/internal/metrics"
	"github.com/Alias1177/fxguard/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Ledger tracks manually executed trades and their P&L
type Ledger struct {
	mu     sync.Mutex
	limits Limits
	clock  clock.Clock
	open   []models.Trade
	closed []models.Trade
	logger zerolog.Logger
}

// NewLedger creates an empty ledger
func NewLedger(limits Limits, clk clock.Clock) *Ledger {
	return &Ledger{
		limits: limits,
		clock:  clk,
		open:   []models.Trade{},
		closed: []models.Trade{},
		logger: log.With().Str("component", "ledger").Logger(),
	}
}

// Add registers a new open trade
func (l *Ledger) Add(t models.Trade) error {
	if t.Lots <= 0 {
		return fmt.Errorf("trade %d: lots must be positive, got %v", t.SignalID, t.Lots)
	}
	if !t.Direction.Valid() {
		return fmt.Errorf("trade %d: invalid direction %q", t.SignalID, t.Direction)
	}
	if t.Entry <= 0 {
		return fmt.Errorf("trade %d: invalid entry %v", t.SignalID, t.Entry)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.known(t.SignalID) {
		return fmt.Errorf("trade %d already exists", t.SignalID)
	}

	t.Status = models.TradeOpen
	t.PnL = 0
	t.ExitPrice = 0
	t.ExitReason = ""
	t.ClosedAt = nil
	if t.OpenedAt.IsZero() {
		t.OpenedAt = l.clock.Now()
	}
	l.open = append(l.open, t)
	l.publish()

	l.logger.Info().
		Int64("signal_id", t.SignalID).
		Str("direction", string(t.Direction)).
		Float64("lots", t.Lots).
		Float64("entry", t.Entry).
		Msg("Trade added")
	return nil
}

// UpdatePnL marks one open trade to price
func (l *Ledger) UpdatePnL(id int64, price float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.openIndex(id)
	if i < 0 {
		return fmt.Errorf("open trade %d not found", id)
	}
	l.open[i].PnL = l.pnl(l.open[i], price)
	l.open[i].CurrentPrice = price
	l.publish()
	return nil
}

// UpdateAll marks every open trade to price
func (l *Ledger) UpdateAll(price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.open {
		l.open[i].PnL = l.pnl(l.open[i], price)
		l.open[i].CurrentPrice = price
	}
	l.publish()
}

// CheckExit reports whether price has crossed the trade's stop or target
func (l *Ledger) CheckExit(id int64, price float64) (models.ExitReason, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.openIndex(id)
	if i < 0 {
		return "", false
	}
	return exitReason(l.open[i], price)
}

// Close realizes the trade at price and moves it to the closed list
func (l *Ledger) Close(id int64, reason models.ExitReason, price float64) (*models.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.openIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("open trade %d not found", id)
	}

	t := l.open[i]
	now := l.clock.Now()
	t.Status = models.TradeClosed
	t.ExitReason = reason
	t.ExitPrice = price
	t.CurrentPrice = price
	t.PnL = l.pnl(t, price)
	t.ClosedAt = &now

	l.open = append(l.open[:i], l.open[i+1:]...)
	l.closed = append(l.closed, t)
	l.publish()

	l.logger.Info().
		Int64("signal_id", id).
		Str("reason", string(reason)).
		Float64("exit", price).
		Float64("pnl", t.PnL).
		Msg("Trade closed")
	return &t, nil
}

// OpenTrades returns a copy of the open trades
func (l *Ledger) OpenTrades() []models.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Trade{}, l.open...)
}

// ClosedTrades returns a copy of the closed trades
func (l *Ledger) ClosedTrades() []models.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Trade{}, l.closed...)
}

// Trade looks up an open or closed trade by id
func (l *Ledger) Trade(id int64) (models.Trade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := l.openIndex(id); i >= 0 {
		return l.open[i], true
	}
	for _, t := range l.closed {
		if t.SignalID == id {
			return t, true
		}
	}
	return models.Trade{}, false
}

// TotalPnL splits realized and floating P&L
func (l *Ledger) TotalPnL() models.PnLSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals()
}

// DailyPnL is TotalPnL restricted to trades closed on the current UTC day, plus all floating P&L
func (l *Ledger) DailyPnL() models.PnLSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	var s models.PnLSummary
	for _, t := range l.closed {
		if clock.SameUTCDay(closedAt(t), now) {
			s.Closed += t.PnL
		}
	}
	for _, t := range l.open {
		s.Floating += t.PnL
	}
	s.Total = s.Closed + s.Floating
	return s
}

// TradesToday counts trades opened on the current UTC day, open or closed
func (l *Ledger) TradesToday() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	n := 0
	for _, list := range [][]models.Trade{l.open, l.closed} {
		for _, t := range list {
			if clock.SameUTCDay(t.OpenedAt, now) {
				n++
			}
		}
	}
	return n
}

// Statistics aggregates closed trade performance
func (l *Ledger) Statistics() models.Statistics {
	l.mu.Lock()
	defer l.mu.Unlock()

	pnl := l.totals()
	st := models.Statistics{
		TotalTrades: len(l.closed),
		ClosedPnL:   pnl.Closed,
		FloatingPnL: pnl.Floating,
		TotalPnL:    pnl.Total,
	}
	if st.TotalTrades == 0 {
		return st
	}

	var grossProfit, grossLoss float64
	for _, t := range l.closed {
		if t.PnL > 0 {
			st.Wins++
			grossProfit += t.PnL
		} else {
			st.Losses++
			grossLoss -= t.PnL
		}
	}
	st.WinRate = float64(st.Wins) / float64(st.TotalTrades) * 100
	if grossLoss > 0 {
		st.ProfitFactor = grossProfit / grossLoss
	}
	st.MaxDrawdown = MaxDrawdown(EquityCurve(l.limits.AccountSize, l.closed))
	return st
}

// Restore replaces the ledger contents with persisted trades
func (l *Ledger) Restore(open, closed []models.Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.open = append([]models.Trade{}, open...)
	l.closed = append([]models.Trade{}, closed...)
	l.publish()
	l.logger.Info().Int("open", len(l.open)).Int("closed", len(l.closed)).Msg("Ledger restored")
}

// Snapshot returns copies of both lists for persistence
func (l *Ledger) Snapshot() (open, closed []models.Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Trade{}, l.open...), append([]models.Trade{}, l.closed...)
}

// EquityCurve replays closed trades in close order on top of the starting balance
func EquityCurve(start float64, closed []models.Trade) []float64 {
	trades := append([]models.Trade{}, closed...)
	sort.SliceStable(trades, func(i, j int) bool {
		return closedAt(trades[i]).Before(closedAt(trades[j]))
	})

	curve := make([]float64, 0, len(trades)+1)
	equity := start
	curve = append(curve, equity)
	for _, t := range trades {
		equity += t.PnL
		curve = append(curve, equity)
	}
	return curve
}

// MaxDrawdown returns the largest peak to trough decline of curve in percent
func MaxDrawdown(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	maxDD := 0.0
	peak := curve[0]
	for _, equity := range curve {
		if equity > peak {
			peak = equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - equity) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD * 100
}

func exitReason(t models.Trade, price float64) (models.ExitReason, bool) {
	switch t.Direction {
	case models.Long:
		if price <= t.StopLoss {
			return models.ExitStopLoss, true
		}
		if price >= t.TakeProfit {
			return models.ExitTakeProfit, true
		}
	case models.Short:
		if price >= t.StopLoss {
			return models.ExitStopLoss, true
		}
		if price <= t.TakeProfit {
			return models.ExitTakeProfit, true
		}
	}
	return "", false
}

func (l *Ledger) pnl(t models.Trade, price float64) float64 {
	move := price - t.Entry
	if t.Direction == models.Short {
		move = -move
	}
	return move / l.limits.PipSize * l.limits.PipValuePerLot * t.Lots
}

func (l *Ledger) totals() models.PnLSummary {
	var s models.PnLSummary
	for _, t := range l.closed {
		s.Closed += t.PnL
	}
	for _, t := range l.open {
		s.Floating += t.PnL
	}
	s.Total = s.Closed + s.Floating
	return s
}

func (l *Ledger) publish() {
	pnl := l.totals()
	metrics.SetOpenPositions(len(l.open))
	metrics.SetPnL(pnl.Closed, pnl.Floating)
}

func (l *Ledger) openIndex(id int64) int {
	for i, t := range l.open {
		if t.SignalID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) known(id int64) bool {
	if l.openIndex(id) >= 0 {
		return true
	}
	for _, t := range l.closed {
		if t.SignalID == id {
			return true
		}
	}
	return false
}

func closedAt(t models.Trade) time.Time {
	if t.ClosedAt != nil {
		return *t.ClosedAt
	}
	return t.OpenedAt
}
