// Package governor guards provider calls with a circuit breaker and a daily plus per-minute budget.
package governor

import (
	"fmt"
	"sync"
	"time"

	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/internal/metrics"
	"github.com/Alias1177/fxguard/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const minuteWindow = time.Minute

// Options configures the budgets and breaker thresholds
type Options struct {
	MaxPerDay          int
	MaxPerMinute       int
	FailureThreshold   int
	Cooldown           time.Duration
	HalfOpenProbeLimit int
}

// DefaultOptions returns the production budgets
func DefaultOptions() Options {
	return Options{
		MaxPerDay:          740,
		MaxPerMinute:       8,
		FailureThreshold:   5,
		Cooldown:           300 * time.Second,
		HalfOpenProbeLimit: 3,
	}
}

// Status is a point-in-time view of the governor
type Status struct {
	State          models.CircuitState `json:"state"`
	DailyCalls     int                 `json:"daily_calls"`
	MaxDailyCalls  int                 `json:"max_daily_calls"`
	RemainingDaily int                 `json:"daily_remaining"`
	MinuteCalls    int                 `json:"minute_calls"`
	MaxMinuteCalls int                 `json:"max_minute_calls"`
	FailureCount   int                 `json:"failure_count"`
	HalfOpenCalls  int                 `json:"half_open_calls"`
	OpenedAt       *time.Time          `json:"opened_at,omitempty"`
	NextReset      time.Time           `json:"next_reset"`
}

// Governor decides whether an outbound provider call may be made
type Governor struct {
	mu    sync.Mutex
	opts  Options
	clock clock.Clock

	state         models.CircuitState
	failureCount  int
	openedAt      time.Time
	halfOpenCalls int

	dailyCalls  int
	dailyReset  time.Time
	minuteCalls []time.Time

	logger zerolog.Logger
}

// New creates a governor in the closed state. Zero options fall back to defaults.
func New(opts Options, clk clock.Clock) *Governor {
	def := DefaultOptions()
	if opts.MaxPerDay <= 0 {
		opts.MaxPerDay = def.MaxPerDay
	}
	if opts.MaxPerMinute <= 0 {
		opts.MaxPerMinute = def.MaxPerMinute
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = def.FailureThreshold
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = def.Cooldown
	}
	if opts.HalfOpenProbeLimit <= 0 {
		opts.HalfOpenProbeLimit = def.HalfOpenProbeLimit
	}

	g := &Governor{
		opts:       opts,
		clock:      clk,
		state:      models.CircuitClosed,
		dailyReset: clock.NextUTCMidnight(clk.Now()),
		logger:     log.With().Str("component", "governor").Logger(),
	}
	metrics.SetGovernorState(string(g.state))

	g.logger.Info().
		Int("max_per_day", opts.MaxPerDay).
		Int("max_per_minute", opts.MaxPerMinute).
		Msg("Call governor initialized")
	return g
}

// CanCall reports whether a call is allowed now and why not when it is refused
func (g *Governor) CanCall() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.rollDay(now)
	g.pruneWindow(now)

	if g.state == models.CircuitOpen {
		if now.Sub(g.openedAt) < g.opts.Cooldown {
			metrics.IncAPICall("blocked")
			return false, "circuit open"
		}
		g.logger.Info().Msg("Cooldown elapsed, circuit entering half-open")
		g.setState(models.CircuitHalfOpen)
		g.halfOpenCalls = 0
	}

	if g.dailyCalls >= g.opts.MaxPerDay {
		metrics.IncAPICall("blocked")
		return false, fmt.Sprintf("daily limit reached (%d/%d)", g.dailyCalls, g.opts.MaxPerDay)
	}
	if len(g.minuteCalls) >= g.opts.MaxPerMinute {
		metrics.IncAPICall("blocked")
		return false, fmt.Sprintf("per-minute limit reached (%d/%d)", len(g.minuteCalls), g.opts.MaxPerMinute)
	}
	if g.state == models.CircuitHalfOpen && g.halfOpenCalls >= g.opts.HalfOpenProbeLimit {
		metrics.IncAPICall("blocked")
		return false, "circuit half-open, probe limit reached"
	}

	return true, "OK"
}

// RecordCall counts a call against both budgets
func (g *Governor) RecordCall() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.rollDay(now)
	g.dailyCalls++
	g.minuteCalls = append(g.minuteCalls, now)
	if g.state == models.CircuitHalfOpen {
		g.halfOpenCalls++
	}
	metrics.SetDailyCalls(g.dailyCalls)

	g.logger.Debug().
		Int("daily", g.dailyCalls).
		Int("minute", len(g.minuteCalls)).
		Msg("API call recorded")
}

// RecordSuccess closes a half-open breaker once enough probes passed
func (g *Governor) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	metrics.IncAPICall("success")
	switch g.state {
	case models.CircuitHalfOpen:
		if g.halfOpenCalls >= g.opts.HalfOpenProbeLimit {
			g.logger.Info().Int("probes", g.halfOpenCalls).Msg("Circuit closing after successful probes")
			g.setState(models.CircuitClosed)
			g.failureCount = 0
			g.halfOpenCalls = 0
		}
	case models.CircuitClosed:
		g.failureCount = 0
	}
}

// RecordFailure counts a failure and opens the breaker at the threshold
func (g *Governor) RecordFailure(cause string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	metrics.IncAPICall("failure")
	now := g.clock.Now()
	g.failureCount++

	g.logger.Warn().
		Str("cause", cause).
		Int("failures", g.failureCount).
		Int("threshold", g.opts.FailureThreshold).
		Msg("API failure recorded")

	switch g.state {
	case models.CircuitHalfOpen:
		g.logger.Warn().Msg("Probe failed, circuit reopening")
		g.open(now)
	case models.CircuitClosed:
		if g.failureCount >= g.opts.FailureThreshold {
			g.logger.Error().Int("failures", g.failureCount).Msg("Circuit opened after repeated failures")
			g.open(now)
		}
	}
}

// Status returns the current counters, pruning the minute window first
func (g *Governor) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.rollDay(now)
	g.pruneWindow(now)

	st := Status{
		State:          g.state,
		DailyCalls:     g.dailyCalls,
		MaxDailyCalls:  g.opts.MaxPerDay,
		RemainingDaily: max(g.opts.MaxPerDay-g.dailyCalls, 0),
		MinuteCalls:    len(g.minuteCalls),
		MaxMinuteCalls: g.opts.MaxPerMinute,
		FailureCount:   g.failureCount,
		HalfOpenCalls:  g.halfOpenCalls,
		NextReset:      g.dailyReset,
	}
	if !g.openedAt.IsZero() {
		opened := g.openedAt
		st.OpenedAt = &opened
	}
	return st
}

// RestoreDailyCalls carries a persisted daily count over a restart.
// Counts recorded on an earlier UTC day are ignored.
func (g *Governor) RestoreDailyCalls(n int, recordedAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.rollDay(now)
	if n <= g.dailyCalls || !clock.SameUTCDay(recordedAt, now) {
		return
	}
	g.dailyCalls = n
	metrics.SetDailyCalls(n)
	g.logger.Info().Int("daily", n).Msg("Daily call count restored")
}

// Reset forces the breaker closed. Budgets are left alone.
func (g *Governor) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.setState(models.CircuitClosed)
	g.failureCount = 0
	g.halfOpenCalls = 0
	g.openedAt = time.Time{}
	g.logger.Info().Msg("Circuit manually reset")
}

func (g *Governor) open(now time.Time) {
	g.setState(models.CircuitOpen)
	g.openedAt = now
}

func (g *Governor) setState(s models.CircuitState) {
	g.state = s
	metrics.SetGovernorState(string(s))
}

func (g *Governor) rollDay(now time.Time) {
	if now.Before(g.dailyReset) {
		return
	}
	g.dailyCalls = 0
	g.dailyReset = clock.NextUTCMidnight(now)
	metrics.SetDailyCalls(0)
	g.logger.Info().Time("next_reset", g.dailyReset).Msg("Daily call counter reset")
}

func (g *Governor) pruneWindow(now time.Time) {
	cutoff := now.Add(-minuteWindow)
	kept := g.minuteCalls[:0]
	for _, t := range g.minuteCalls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	g.minuteCalls = kept
}
