// Package backtest replays the decision pipeline over a candle history.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Alias1177/fxguard/internal/classifier"
	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/internal/indicators"
	"github.com/Alias1177/fxguard/internal/order"
	"github.com/Alias1177/fxguard/internal/signal"
	"github.com/Alias1177/fxguard/internal/trading/risk"
	"github.com/Alias1177/fxguard/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Predictor scores a feature vector
type Predictor interface {
	Predict(features []float64) (*models.Prediction, error)
}

// Options configure a replay
type Options struct {
	WindowSize       int
	TimeframeMinutes int
	Indicators       indicators.Params
	Thresholds       signal.Thresholds
	Geometry         order.Geometry
	Limits           risk.Limits
	// Hours restricts signals to the trading session when SessionOnly is set
	Hours       clock.TradingHours
	SessionOnly bool
}

// DefaultOptions returns the production pipeline settings
func DefaultOptions() Options {
	return Options{
		WindowSize:       100,
		TimeframeMinutes: 15,
		Indicators:       indicators.DefaultParams(),
		Thresholds:       signal.DefaultThresholds(),
		Geometry:         order.DefaultGeometry(),
		Limits:           risk.DefaultLimits(),
		Hours:            clock.TradingHours{Start: 9, End: 14},
	}
}

// Results summarizes a replay
type Results struct {
	Candles        int                `json:"candles"`
	Signals        int                `json:"signals"`
	Approved       int                `json:"approved"`
	Rejected       int                `json:"rejected"`
	Unfilled       int                `json:"unfilled"`
	RejectReasons  map[string]int     `json:"reject_reasons"`
	Statistics     models.Statistics  `json:"statistics"`
	Trades         []models.Trade     `json:"trades"`
	EquityCurve    []float64          `json:"equity_curve"`
	MaxDrawdown    float64            `json:"max_drawdown_pct"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
	AverageWin     float64            `json:"average_win"`
	AverageLoss    float64            `json:"average_loss"`
	TotalReturn    float64            `json:"total_return_pct"`
	MonthlyReturns map[string]float64 `json:"monthly_returns"`
	MaxConsecutive struct {
		Wins   int `json:"wins"`
		Losses int `json:"losses"`
	} `json:"max_consecutive"`
}

// Engine replays candles through indicators, signals, order geometry and the risk gate
type Engine struct {
	opts      Options
	predictor Predictor
	logger    zerolog.Logger
}

// NewEngine creates a replay engine. predictor may be nil.
func NewEngine(opts Options, predictor Predictor) *Engine {
	return &Engine{
		opts:      opts,
		predictor: predictor,
		logger:    log.With().Str("component", "replay").Logger(),
	}
}

// Run replays candles, oldest first. Every step sees only the window of closed
// candles before it; the following candle decides fills and exits.
func (e *Engine) Run(ctx context.Context, candles []models.Candle) (*Results, error) {
	window := e.opts.WindowSize
	if window < indicators.MinCandles {
		window = indicators.MinCandles
	}
	if len(candles) <= window {
		return nil, fmt.Errorf("insufficient historical data for replay, got %d candles, need more than %d", len(candles), window)
	}

	tf := time.Duration(e.opts.TimeframeMinutes) * time.Minute
	clk := clock.NewFake(candles[window-1].Timestamp.Add(tf))
	ledger := risk.NewLedger(e.opts.Limits, clk)
	gate := risk.NewGate(risk.NewCalculator(e.opts.Limits), ledger)
	signals := signal.NewGenerator(e.opts.Thresholds, 0, clk)
	orders := order.NewCalculator(e.opts.Geometry)

	results := &Results{
		Candles:        len(candles),
		RejectReasons:  make(map[string]int),
		MonthlyReturns: make(map[string]float64),
	}

	for i := window; i < len(candles); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		last := candles[i-1]
		bar := candles[i]
		now := last.Timestamp.Add(tf)
		clk.Set(now)

		if !e.opts.SessionOnly || e.opts.Hours.IsTradingTime(now) {
			e.step(candles[i-window:i], bar, ledger, gate, signals, orders, results)
		}

		// the next bar decides exits for everything open, stop first
		clk.Set(bar.Timestamp.Add(tf))
		for _, t := range ledger.OpenTrades() {
			reason, price, hit := barExit(t, bar)
			if !hit {
				continue
			}
			if _, err := ledger.Close(t.SignalID, reason, price); err != nil {
				return nil, fmt.Errorf("closing trade %d: %w", t.SignalID, err)
			}
		}
		ledger.UpdateAll(bar.Close)
	}

	// flatten whatever is still open at the final close
	final := candles[len(candles)-1].Close
	for _, t := range ledger.OpenTrades() {
		if _, err := ledger.Close(t.SignalID, models.ExitManual, final); err != nil {
			return nil, fmt.Errorf("closing trade %d: %w", t.SignalID, err)
		}
	}

	results.Trades = ledger.ClosedTrades()
	results.Statistics = ledger.Statistics()
	calculateMetrics(results, e.opts.Limits.AccountSize)

	e.logger.Info().
		Int("signals", results.Signals).
		Int("approved", results.Approved).
		Int("trades", results.Statistics.TotalTrades).
		Float64("pnl", results.Statistics.ClosedPnL).
		Float64("max_drawdown", results.MaxDrawdown).
		Msg("Replay finished")
	return results, nil
}

func (e *Engine) step(
	window []models.Candle,
	bar models.Candle,
	ledger *risk.Ledger,
	gate *risk.Gate,
	signals *signal.Generator,
	orders *order.Calculator,
	results *Results,
) {
	ind, err := indicators.Calculate(window, e.opts.Indicators)
	if err != nil {
		e.logger.Debug().Err(err).Msg("Skipping step")
		return
	}

	var pred *models.Prediction
	if e.predictor != nil {
		ts := window[len(window)-1].Timestamp.Add(time.Duration(e.opts.TimeframeMinutes) * time.Minute)
		if pred, err = e.predictor.Predict(classifier.Features(ind, ts)); err != nil {
			e.logger.Debug().Err(err).Msg("Classifier failed, skipping step")
			return
		}
	}

	sig, ok := signals.Generate(ind, pred)
	if !ok {
		return
	}
	results.Signals++

	ord, err := orders.Calculate(sig.Direction, ind.CurrentPrice)
	if err != nil {
		return
	}

	d := gate.Validate(sig, ord)
	if !d.Approved {
		results.Rejected++
		results.RejectReasons[reasonKey(d.Reason)]++
		return
	}
	results.Approved++

	// the limit order only fills if the next bar trades through the entry
	if !filled(ord, bar) {
		results.Unfilled++
		return
	}

	t := models.Trade{
		SignalID:   sig.ID,
		Direction:  ord.Direction,
		Entry:      ord.Entry,
		StopLoss:   ord.StopLoss,
		TakeProfit: ord.TakeProfit,
		Lots:       d.Details.Lots,
		OpenedAt:   sig.Timestamp,
	}
	if err := ledger.Add(t); err != nil {
		e.logger.Error().Err(err).Msg("Failed to add replay trade")
	}
}

func filled(o *models.Order, bar models.Candle) bool {
	if o.Direction == models.Long {
		return bar.Low <= o.Entry
	}
	return bar.High >= o.Entry
}

// barExit checks the stop before the target so an ambiguous bar counts as a loss
func barExit(t models.Trade, bar models.Candle) (models.ExitReason, float64, bool) {
	switch t.Direction {
	case models.Long:
		if bar.Low <= t.StopLoss {
			return models.ExitStopLoss, t.StopLoss, true
		}
		if bar.High >= t.TakeProfit {
			return models.ExitTakeProfit, t.TakeProfit, true
		}
	case models.Short:
		if bar.High >= t.StopLoss {
			return models.ExitStopLoss, t.StopLoss, true
		}
		if bar.Low <= t.TakeProfit {
			return models.ExitTakeProfit, t.TakeProfit, true
		}
	}
	return "", 0, false
}

// reasonKey drops the numbers from a rejection reason so similar reasons group together
func reasonKey(reason string) string {
	if i := strings.IndexAny(reason, "($"); i > 0 {
		return strings.TrimSpace(reason[:i])
	}
	return reason
}

// FormatResults creates a human-readable summary of replay results
func FormatResults(results *Results) string {
	if results == nil {
		return "No replay results available"
	}
	st := results.Statistics

	output := "\n===== REPLAY RESULTS =====\n"
	output += fmt.Sprintf("Candles: %d\n", results.Candles)
	output += fmt.Sprintf("Signals: %d (approved %d, rejected %d, unfilled %d)\n",
		results.Signals, results.Approved, results.Rejected, results.Unfilled)
	output += fmt.Sprintf("Total trades: %d\n", st.TotalTrades)
	output += fmt.Sprintf("Winning trades: %d (%.2f%%)\n", st.Wins, st.WinRate)
	output += fmt.Sprintf("Closed P&L: $%.2f\n", st.ClosedPnL)
	output += fmt.Sprintf("Total return: %.2f%%\n", results.TotalReturn)
	output += fmt.Sprintf("Average win: $%.2f\n", results.AverageWin)
	output += fmt.Sprintf("Average loss: $%.2f\n", results.AverageLoss)
	output += fmt.Sprintf("Profit factor: %.2f\n", st.ProfitFactor)
	output += fmt.Sprintf("Maximum drawdown: %.2f%%\n", results.MaxDrawdown)
	output += fmt.Sprintf("Sharpe ratio: %.2f\n", results.SharpeRatio)
	output += fmt.Sprintf("Max consecutive wins: %d\n", results.MaxConsecutive.Wins)
	output += fmt.Sprintf("Max consecutive losses: %d\n", results.MaxConsecutive.Losses)

	if len(results.RejectReasons) > 0 {
		output += "\nRejections:\n"
		reasons := make([]string, 0, len(results.RejectReasons))
		for r := range results.RejectReasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			output += fmt.Sprintf("- %s: %d\n", r, results.RejectReasons[r])
		}
	}

	if len(results.MonthlyReturns) > 0 {
		output += "\nMonthly returns:\n"

		// Sort months for chronological display
		months := make([]string, 0, len(results.MonthlyReturns))
		for month := range results.MonthlyReturns {
			months = append(months, month)
		}
		sort.Strings(months)

		for _, month := range months {
			returnValue := results.MonthlyReturns[month]
			sign := ""
			if returnValue > 0 {
				sign = "+"
			}
			output += fmt.Sprintf("- %s: %s%.2f%%\n", month, sign, returnValue)
		}
	}

	return output
}
