package risk

import (
	"testing"
	"time"

	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ledgerStart = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func newTestLedger() (*Ledger, *clock.Fake) {
	clk := clock.NewFake(ledgerStart)
	return NewLedger(DefaultLimits(), clk), clk
}

func longTrade(id int64) models.Trade {
	return models.Trade{
		SignalID:   id,
		Direction:  models.Long,
		Entry:      1.08500,
		StopLoss:   1.08300,
		TakeProfit: 1.08900,
		Lots:       0.05,
	}
}

func shortTrade(id int64) models.Trade {
	return models.Trade{
		SignalID:   id,
		Direction:  models.Short,
		Entry:      1.08500,
		StopLoss:   1.08700,
		TakeProfit: 1.08100,
		Lots:       0.1,
	}
}

func TestLedgerAdd(t *testing.T) {
	l, _ := newTestLedger()

	require.NoError(t, l.Add(longTrade(1)))
	assert.Error(t, l.Add(longTrade(1)), "duplicate id")

	bad := longTrade(2)
	bad.Lots = 0
	assert.Error(t, l.Add(bad))

	bad = longTrade(3)
	bad.Direction = "FLAT"
	assert.Error(t, l.Add(bad))

	open := l.OpenTrades()
	require.Len(t, open, 1)
	assert.Equal(t, models.TradeOpen, open[0].Status)
	assert.Equal(t, ledgerStart, open[0].OpenedAt)

	// closed ids stay reserved
	_, err := l.Close(1, models.ExitManual, 1.085)
	require.NoError(t, err)
	assert.Error(t, l.Add(longTrade(1)))
}

func TestLedgerPnL(t *testing.T) {
	l, _ := newTestLedger()
	require.NoError(t, l.Add(longTrade(1)))
	require.NoError(t, l.Add(shortTrade(2)))

	require.NoError(t, l.UpdatePnL(1, 1.08600))
	assert.Error(t, l.UpdatePnL(99, 1.0))

	tr, ok := l.Trade(1)
	require.True(t, ok)
	// 10 pips * $10 * 0.05 lots
	assert.InDelta(t, 5.0, tr.PnL, 1e-6)
	assert.Equal(t, 1.08600, tr.CurrentPrice)

	l.UpdateAll(1.08400)
	pnl := l.TotalPnL()
	// long: -10 pips * 0.05 lots, short: +10 pips * 0.1 lots
	assert.InDelta(t, 5.0, pnl.Floating, 1e-6)
	assert.InDelta(t, 0, pnl.Closed, 1e-9)
	assert.InDelta(t, 5.0, pnl.Total, 1e-6)
}

func TestLedgerCheckExit(t *testing.T) {
	l, _ := newTestLedger()
	require.NoError(t, l.Add(longTrade(1)))
	require.NoError(t, l.Add(shortTrade(2)))

	tests := []struct {
		name   string
		id     int64
		price  float64
		reason models.ExitReason
		hit    bool
	}{
		{"long inside range", 1, 1.08600, "", false},
		{"long stop", 1, 1.08300, models.ExitStopLoss, true},
		{"long target", 1, 1.08950, models.ExitTakeProfit, true},
		{"short inside range", 2, 1.08400, "", false},
		{"short stop", 2, 1.08750, models.ExitStopLoss, true},
		{"short target", 2, 1.08100, models.ExitTakeProfit, true},
		{"unknown trade", 42, 1.0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, hit := l.CheckExit(tt.id, tt.price)
			assert.Equal(t, tt.hit, hit)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestLedgerCloseAndStatistics(t *testing.T) {
	l, clk := newTestLedger()
	require.NoError(t, l.Add(longTrade(1)))
	require.NoError(t, l.Add(shortTrade(2)))
	require.NoError(t, l.Add(longTrade(3)))

	clk.Advance(time.Hour)
	closed, err := l.Close(1, models.ExitTakeProfit, 1.08900)
	require.NoError(t, err)
	assert.Equal(t, models.TradeClosed, closed.Status)
	assert.InDelta(t, 20.0, closed.PnL, 1e-6)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, ledgerStart.Add(time.Hour), *closed.ClosedAt)

	clk.Advance(time.Hour)
	_, err = l.Close(2, models.ExitStopLoss, 1.08700)
	require.NoError(t, err)

	_, err = l.Close(2, models.ExitStopLoss, 1.08700)
	assert.Error(t, err, "already closed")

	assert.Len(t, l.OpenTrades(), 1)
	assert.Len(t, l.ClosedTrades(), 2)

	st := l.Statistics()
	assert.Equal(t, 2, st.TotalTrades)
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.InDelta(t, 50.0, st.WinRate, 1e-9)
	assert.InDelta(t, 0, st.ClosedPnL, 1e-6)
	assert.InDelta(t, 1.0, st.ProfitFactor, 1e-6)
	// 5020 peak then 5000
	assert.InDelta(t, 20.0/5020*100, st.MaxDrawdown, 1e-6)
}

func TestLedgerDailyScope(t *testing.T) {
	l, clk := newTestLedger()
	require.NoError(t, l.Add(shortTrade(1)))
	_, err := l.Close(1, models.ExitStopLoss, 1.08700)
	require.NoError(t, err)

	assert.Equal(t, 1, l.TradesToday())
	assert.InDelta(t, -20.0, l.DailyPnL().Closed, 1e-6)

	clk.Advance(24 * time.Hour)
	assert.Equal(t, 0, l.TradesToday())
	assert.InDelta(t, 0, l.DailyPnL().Closed, 1e-9)
	assert.InDelta(t, -20.0, l.TotalPnL().Closed, 1e-6)

	// opened yesterday, closed today
	overnight := longTrade(2)
	overnight.OpenedAt = ledgerStart
	require.NoError(t, l.Add(overnight))
	_, err = l.Close(2, models.ExitManual, 1.08500)
	require.NoError(t, err)
	assert.Equal(t, 0, l.TradesToday())

	require.NoError(t, l.Add(longTrade(3)))
	assert.Equal(t, 1, l.TradesToday())
}

func TestLedgerRestoreSnapshot(t *testing.T) {
	l, _ := newTestLedger()
	closedAt := ledgerStart
	closed := longTrade(1)
	closed.Status = models.TradeClosed
	closed.PnL = -10
	closed.ClosedAt = &closedAt

	l.Restore([]models.Trade{longTrade(2)}, []models.Trade{closed})
	open, done := l.Snapshot()
	assert.Len(t, open, 1)
	assert.Len(t, done, 1)

	// snapshots are copies
	open[0].Lots = 99
	assert.Equal(t, 0.05, l.OpenTrades()[0].Lots)
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name  string
		curve []float64
		want  float64
	}{
		{"empty", nil, 0},
		{"monotonic", []float64{100, 110, 120}, 0},
		{"single dip", []float64{100, 120, 90, 130}, 25},
		{"two dips keeps worst", []float64{100, 90, 100, 95}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MaxDrawdown(tt.curve), 1e-9)
		})
	}
}
