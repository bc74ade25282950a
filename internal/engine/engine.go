// Package engine runs the decision cycle around the trading core.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Alias1177/fxguard/internal/classifier"
	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/internal/feed"
	"github.com/Alias1177/fxguard/internal/governor"
	"github.com/Alias1177/fxguard/internal/indicators"
	"github.com/Alias1177/fxguard/internal/metrics"
	"github.com/Alias1177/fxguard/internal/notify"
	"github.com/Alias1177/fxguard/internal/order"
	"github.com/Alias1177/fxguard/internal/signal"
	"github.com/Alias1177/fxguard/internal/state"
	"github.com/Alias1177/fxguard/internal/trading/risk"
	"github.com/Alias1177/fxguard/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MarketSource is the part of the feed the engine depends on
type MarketSource interface {
	CurrentPrice(ctx context.Context) (float64, error)
	MarketData(ctx context.Context) (*feed.MarketData, error)
}

// Predictor scores a feature vector
type Predictor interface {
	Predict(features []float64) (*models.Prediction, error)
}

// Journal records signals and trades outside the state file
type Journal interface {
	RecordSignal(ctx context.Context, cycleID string, sig *models.Signal, d risk.Decision) error
	RecordTrade(ctx context.Context, t models.Trade) error
}

// Options are the loop timings and account settings
type Options struct {
	Symbol            string
	Hours             clock.TradingHours
	CycleInterval     time.Duration
	ErrorDelay        time.Duration
	HeartbeatInterval time.Duration
	StatusInterval    time.Duration
	AccountSize       float64
}

// DefaultOptions returns the production timings
func DefaultOptions() Options {
	return Options{
		Symbol:            "EUR/USD",
		Hours:             clock.TradingHours{Start: 9, End: 14},
		CycleInterval:     900 * time.Second,
		ErrorDelay:        60 * time.Second,
		HeartbeatInterval: 1800 * time.Second,
		StatusInterval:    3600 * time.Second,
		AccountSize:       5000,
	}
}

// Deps are the components the engine drives. Predictor, Journal and Commands may be nil.
type Deps struct {
	Market     MarketSource
	Governor   *governor.Governor
	Store      *state.Store
	Indicators indicators.Params
	Thresholds signal.Thresholds
	Predictor  Predictor
	Orders     *order.Calculator
	Ledger     *risk.Ledger
	Gate       *risk.Gate
	Notifier   notify.Notifier
	Journal    Journal
	Commands   <-chan notify.Command
	Clock      clock.Clock
}

// CycleResult describes what one decision cycle saw and did
type CycleResult struct {
	CycleID      string             `json:"cycle_id"`
	Started      time.Time          `json:"started"`
	Duration     time.Duration      `json:"duration"`
	Price        float64            `json:"price"`
	Commands     int                `json:"commands"`
	ClosedTrades []models.Trade     `json:"closed_trades,omitempty"`
	Indicators   *models.Indicators `json:"indicators,omitempty"`
	Prediction   *models.Prediction `json:"prediction,omitempty"`
	Signal       *models.Signal     `json:"signal,omitempty"`
	Order        *models.Order      `json:"order,omitempty"`
	Decision     *risk.Decision     `json:"decision,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Status is the snapshot served by the status endpoint
type Status struct {
	Time         time.Time         `json:"time"`
	Ready        bool              `json:"ready"`
	Trading      bool              `json:"trading_session"`
	Governor     governor.Status   `json:"governor"`
	Risk         risk.GateStatus   `json:"risk"`
	Statistics   models.Statistics `json:"statistics"`
	OpenTrades   []models.Trade    `json:"open_trades"`
	Pending      []int64           `json:"pending_signals"`
	LastSignalID int64             `json:"last_signal_id"`
	LastCycle    *CycleResult      `json:"last_cycle,omitempty"`
}

// Engine owns the single decision goroutine
type Engine struct {
	deps   Deps
	opts   Options
	ready  atomic.Bool
	logger zerolog.Logger

	mu            sync.Mutex
	signals       *signal.Generator
	pending       map[int64]notify.Proposal
	lastCycle     *CycleResult
	lastPrice     float64
	lastHeartbeat time.Time
	lastStatusLog time.Time
}

// New creates an engine. Startup must succeed before Run.
func New(deps Deps, opts Options) *Engine {
	return &Engine{
		deps:    deps,
		opts:    opts,
		signals: signal.NewGenerator(deps.Thresholds, 0, deps.Clock),
		pending: make(map[int64]notify.Proposal),
		logger:  log.With().Str("component", "engine").Logger(),
	}
}

// Ready reports whether the startup checks passed
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// Startup probes the provider, restores persisted state and announces the start
func (e *Engine) Startup(ctx context.Context) error {
	e.logger.Info().Str("symbol", e.opts.Symbol).Msg("Running startup checks")

	doc := e.deps.Store.Load()
	e.deps.Governor.RestoreDailyCalls(doc.APICallsToday, doc.LastUpdated)

	price, err := e.deps.Market.CurrentPrice(ctx)
	if err != nil {
		e.deps.Notifier.SendAlert(ctx, notify.SeverityCritical, "API connection failed: "+err.Error())
		return fmt.Errorf("provider probe: %w", err)
	}
	e.logger.Info().Float64("price", price).Msg("Provider reachable")

	e.deps.Ledger.Restore(doc.OpenTrades, doc.ClosedTrades)

	e.mu.Lock()
	e.signals = signal.NewGenerator(e.deps.Thresholds, doc.LastSignalID, e.deps.Clock)
	e.lastPrice = price
	e.mu.Unlock()

	e.persist()
	e.ready.Store(true)

	e.logger.Info().
		Int("open_trades", len(doc.OpenTrades)).
		Int("closed_trades", len(doc.ClosedTrades)).
		Int64("last_signal_id", doc.LastSignalID).
		Msg("Startup checks passed")
	e.deps.Notifier.SendMessage(ctx, fmt.Sprintf("🚀 fxguard started\n%s: `%.5f`", e.opts.Symbol, price))
	return nil
}

// RunCycle performs one decision cycle
func (e *Engine) RunCycle(ctx context.Context) (*CycleResult, error) {
	res := &CycleResult{
		CycleID: uuid.New().String(),
		Started: e.deps.Clock.Now(),
	}
	logger := e.logger.With().Str("cycle_id", res.CycleID).Logger()
	logger.Info().Msg("Cycle started")

	err := e.cycle(ctx, res, logger)

	res.Duration = e.deps.Clock.Now().Sub(res.Started)
	if err != nil {
		res.Error = err.Error()
	}
	metrics.ObserveCycle(res.Duration.Seconds())
	e.persist()

	e.mu.Lock()
	e.lastCycle = res
	e.mu.Unlock()

	logger.Info().Dur("duration", res.Duration).Bool("signal", res.Signal != nil).Msg("Cycle finished")
	return res, err
}

func (e *Engine) cycle(ctx context.Context, res *CycleResult, logger zerolog.Logger) error {
	res.Commands = e.drainCommands(ctx)

	md, err := e.deps.Market.MarketData(ctx)
	if err != nil {
		return fmt.Errorf("fetching market data: %w", err)
	}
	res.Price = md.Price
	e.mu.Lock()
	e.lastPrice = md.Price
	e.mu.Unlock()
	logger.Info().Float64("price", md.Price).Int("candles", len(md.Candles)).Msg("Market data")

	res.ClosedTrades = e.markToMarket(ctx, md.Price)

	ind, err := indicators.Calculate(md.Candles, e.deps.Indicators)
	if err != nil {
		return fmt.Errorf("calculating indicators: %w", err)
	}
	res.Indicators = ind
	logger.Info().
		Float64("z_score", ind.ZScore).
		Float64("adx", ind.ADX).
		Float64("rsi", ind.RSI).
		Msg("Indicators")

	var pred *models.Prediction
	if e.deps.Predictor != nil {
		pred, err = e.deps.Predictor.Predict(classifier.Features(ind, res.Started))
		if err != nil {
			logger.Error().Err(err).Msg("Classifier failed, skipping signal")
			return nil
		}
		res.Prediction = pred
	}

	e.mu.Lock()
	gen := e.signals
	e.mu.Unlock()

	sig, ok := gen.Generate(ind, pred)
	if !ok {
		return nil
	}
	if err := signal.ValidateSignal(sig); err != nil {
		return fmt.Errorf("invalid signal: %w", err)
	}
	res.Signal = sig

	ord, err := e.deps.Orders.Calculate(sig.Direction, md.Price)
	if err != nil {
		return fmt.Errorf("calculating order: %w", err)
	}
	res.Order = ord

	d := e.deps.Gate.Validate(sig, ord)
	res.Decision = &d

	if d.Approved {
		p := notify.Proposal{CycleID: res.CycleID, Signal: *sig, Details: *d.Details}
		e.mu.Lock()
		e.pending[sig.ID] = p
		e.mu.Unlock()
		e.deps.Notifier.SendSignal(ctx, p)
	} else {
		e.deps.Notifier.SendAlert(ctx, notify.SeverityWarning, "Signal rejected: "+d.Reason)
	}

	if e.deps.Journal != nil {
		if err := e.deps.Journal.RecordSignal(ctx, res.CycleID, sig, d); err != nil {
			logger.Error().Err(err).Msg("Failed to journal signal")
		}
	}
	return nil
}

// markToMarket updates open trades and closes those whose stop or target was crossed
func (e *Engine) markToMarket(ctx context.Context, price float64) []models.Trade {
	e.deps.Ledger.UpdateAll(price)

	var closed []models.Trade
	for _, t := range e.deps.Ledger.OpenTrades() {
		reason, hit := e.deps.Ledger.CheckExit(t.SignalID, price)
		if !hit {
			continue
		}
		ct, err := e.deps.Ledger.Close(t.SignalID, reason, price)
		if err != nil {
			e.logger.Error().Err(err).Int64("signal_id", t.SignalID).Msg("Failed to close trade")
			continue
		}
		closed = append(closed, *ct)
		e.deps.Notifier.SendMessage(ctx, fmt.Sprintf("🔔 Trade #%d closed: %s\nP&L: $%.2f", ct.SignalID, ct.ExitReason, ct.PnL))
		e.journalTrade(ctx, *ct)
	}
	return closed
}

// Run alternates between waiting for the session and cycling inside it until ctx is done
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := e.waitForSession(ctx); err != nil {
			return err
		}
		if err := e.session(ctx); err != nil {
			return err
		}
	}
}

func (e *Engine) waitForSession(ctx context.Context) error {
	wait := e.opts.Hours.UntilNextSession(e.deps.Clock.Now())
	if wait == 0 {
		return nil
	}

	e.logger.Info().Str("remaining", clock.FormatRemaining(wait)).Msg("Outside trading hours, waiting")
	e.deps.Notifier.SendMessage(ctx, "⏰ Waiting for trading hours\nTime remaining: "+clock.FormatRemaining(wait))

	for wait > 0 {
		if err := e.idle(ctx, min(wait, time.Hour)); err != nil {
			return err
		}
		wait = e.opts.Hours.UntilNextSession(e.deps.Clock.Now())
		if wait > 0 {
			e.logger.Info().Str("remaining", clock.FormatRemaining(wait)).Msg("Still waiting for trading hours")
		}
	}

	e.logger.Info().Msg("Trading hours started")
	e.deps.Notifier.SendMessage(ctx, "🟢 Trading hours started!")
	return nil
}

func (e *Engine) session(ctx context.Context) error {
	for e.opts.Hours.IsTradingTime(e.deps.Clock.Now()) {
		// an in-flight cycle always completes
		if _, err := e.RunCycle(context.WithoutCancel(ctx)); err != nil {
			e.logger.Error().Err(err).Msg("Cycle failed")
			e.deps.Notifier.SendAlert(ctx, notify.SeverityError, "Main loop error: "+err.Error())
			if err := e.idle(ctx, e.opts.ErrorDelay); err != nil {
				return err
			}
			continue
		}

		now := e.deps.Clock.Now()
		if now.Sub(e.lastHeartbeat) >= e.opts.HeartbeatInterval {
			e.deps.Notifier.SendHeartbeat(ctx, e.heartbeat(now))
			e.lastHeartbeat = now
		}
		if now.Sub(e.lastStatusLog) >= e.opts.StatusInterval {
			e.logStatus()
			e.lastStatusLog = now
		}

		if err := e.idle(ctx, e.opts.CycleInterval); err != nil {
			return err
		}
	}

	e.logger.Info().Msg("Outside trading hours, session ended")
	return nil
}

// Shutdown sends the daily summary and persists the final state
func (e *Engine) Shutdown(ctx context.Context) error {
	e.logger.Info().Msg("Shutting down")

	stats := e.deps.Ledger.Statistics()
	e.deps.Notifier.SendMessage(ctx, fmt.Sprintf(
		"📊 *Daily Summary*\n\n"+
			"💰 Total P&L: $%.2f\n"+
			"📈 Closed P&L: $%.2f\n"+
			"📉 Floating P&L: $%.2f\n\n"+
			"🎯 Total Trades: %d\n"+
			"✅ Wins: %d\n"+
			"❌ Losses: %d\n"+
			"📊 Win Rate: %.1f%%\n\n"+
			"🟢 Open Positions: %d",
		stats.TotalPnL, stats.ClosedPnL, stats.FloatingPnL,
		stats.TotalTrades, stats.Wins, stats.Losses, stats.WinRate,
		len(e.deps.Ledger.OpenTrades())))
	e.deps.Notifier.SendMessage(ctx, "🛑 fxguard stopped")

	if err := e.persist(); err != nil {
		return fmt.Errorf("saving final state: %w", err)
	}
	return nil
}

// Status returns the current snapshot
func (e *Engine) Status() Status {
	now := e.deps.Clock.Now()

	e.mu.Lock()
	pending := make([]int64, 0, len(e.pending))
	for id := range e.pending {
		pending = append(pending, id)
	}
	lastID := e.signals.LastID()
	lastCycle := e.lastCycle
	e.mu.Unlock()

	return Status{
		Time:         now,
		Ready:        e.Ready(),
		Trading:      e.opts.Hours.IsTradingTime(now),
		Governor:     e.deps.Governor.Status(),
		Risk:         e.deps.Gate.RiskStatus(),
		Statistics:   e.deps.Ledger.Statistics(),
		OpenTrades:   e.deps.Ledger.OpenTrades(),
		Pending:      pending,
		LastSignalID: lastID,
		LastCycle:    lastCycle,
	}
}

func (e *Engine) heartbeat(now time.Time) notify.Heartbeat {
	gov := e.deps.Governor.Status()
	rs := e.deps.Gate.RiskStatus()

	e.mu.Lock()
	price := e.lastPrice
	e.mu.Unlock()

	return notify.Heartbeat{
		Time:           now,
		Price:          price,
		CircuitState:   gov.State,
		DailyCalls:     gov.DailyCalls,
		MaxDailyCalls:  gov.MaxDailyCalls,
		OpenPositions:  rs.OpenPositions,
		RemainingRisk:  rs.RemainingRisk,
		TotalPnL:       e.deps.Ledger.TotalPnL().Total,
		TradingSession: e.opts.Hours.IsTradingTime(now),
		SessionLeft:    e.opts.Hours.SessionEnd(now).Sub(now),
	}
}

func (e *Engine) logStatus() {
	gov := e.deps.Governor.Status()
	rs := e.deps.Gate.RiskStatus()
	e.logger.Info().
		Str("circuit", string(gov.State)).
		Int("daily_calls", gov.DailyCalls).
		Int("daily_remaining", gov.RemainingDaily).
		Int("failures", gov.FailureCount).
		Str("risk_status", string(rs.Status)).
		Float64("remaining_risk", rs.RemainingRisk).
		Int("open_positions", rs.OpenPositions).
		Msg("Status")
}

// persist writes the ledger and counters into the state document
func (e *Engine) persist() error {
	open, closed := e.deps.Ledger.Snapshot()
	daily := e.deps.Ledger.DailyPnL()
	stats := e.deps.Ledger.Statistics()
	gov := e.deps.Governor.Status()

	e.mu.Lock()
	lastID := e.signals.LastID()
	e.mu.Unlock()

	err := e.deps.Store.Update(func(doc *models.Document) {
		doc.OpenTrades = open
		doc.ClosedTrades = closed
		doc.LastSignalID = lastID
		doc.APICallsToday = gov.DailyCalls
		doc.DailyPnL = daily.Total
		doc.StartingBalance = e.opts.AccountSize
		doc.CurrentBalance = e.opts.AccountSize + stats.ClosedPnL
		doc.TotalTrades = stats.TotalTrades
		doc.Wins = stats.Wins
		doc.Losses = stats.Losses
	})
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to save state")
	}
	return err
}

func (e *Engine) journalTrade(ctx context.Context, t models.Trade) {
	if e.deps.Journal == nil {
		return
	}
	if err := e.deps.Journal.RecordTrade(ctx, t); err != nil {
		e.logger.Error().Err(err).Int64("signal_id", t.SignalID).Msg("Failed to journal trade")
	}
}
