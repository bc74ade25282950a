// Package metrics holds the Prometheus collectors the service updates while running.
//
// Exposed series:
//   - fxguard_governor_state{state}       1 for the current circuit state, 0 otherwise
//   - fxguard_api_calls_total{outcome}    provider calls by outcome (success|failure|blocked)
//   - fxguard_api_daily_calls             calls counted against today's budget
//   - fxguard_signals_total{direction}    signals emitted by the generator
//   - fxguard_gate_decisions_total{result} gate verdicts (approved|rejected)
//   - fxguard_open_positions              open trades in the ledger
//   - fxguard_pnl{kind}                   closed|floating|total P&L
//   - fxguard_cycle_seconds               decision cycle latency
//   - fxguard_state_saves_total{result}   state store writes (ok|error)
//
// Collectors are registered in init() and served at /metrics by the status server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var circuitStates = []string{"closed", "open", "half_open"}

var (
	governorState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fxguard_governor_state",
			Help: "Circuit breaker state, one labeled series per state.",
		},
		[]string{"state"},
	)

	apiCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxguard_api_calls_total",
			Help: "Provider calls by outcome",
		},
		[]string{"outcome"},
	)

	apiDailyCalls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fxguard_api_daily_calls",
			Help: "Provider calls counted against the current UTC day budget",
		},
	)

	signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxguard_signals_total",
			Help: "Signals emitted",
		},
		[]string{"direction"},
	)

	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxguard_gate_decisions_total",
			Help: "Risk gate verdicts",
		},
		[]string{"result"},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fxguard_open_positions",
			Help: "Open trades tracked by the ledger",
		},
	)

	pnl = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fxguard_pnl",
			Help: "Ledger P&L in USD",
		},
		[]string{"kind"},
	)

	cycleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fxguard_cycle_seconds",
			Help:    "Decision cycle duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	stateSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxguard_state_saves_total",
			Help: "State store writes by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		governorState,
		apiCalls,
		apiDailyCalls,
		signals,
		gateDecisions,
		openPositions,
		pnl,
		cycleSeconds,
		stateSaves,
	)
}

// SetGovernorState flips the labeled state series so exactly one reads 1
func SetGovernorState(state string) {
	for _, s := range circuitStates {
		v := 0.0
		if s == state {
			v = 1
		}
		governorState.WithLabelValues(s).Set(v)
	}
}

// IncAPICall counts a provider call outcome
func IncAPICall(outcome string) {
	apiCalls.WithLabelValues(outcome).Inc()
}

// SetDailyCalls reports the current daily budget usage
func SetDailyCalls(n int) {
	apiDailyCalls.Set(float64(n))
}

// IncSignal counts an emitted signal
func IncSignal(direction string) {
	signals.WithLabelValues(direction).Inc()
}

// IncGateDecision counts a gate verdict
func IncGateDecision(approved bool) {
	result := "rejected"
	if approved {
		result = "approved"
	}
	gateDecisions.WithLabelValues(result).Inc()
}

// SetOpenPositions reports the ledger's open trade count
func SetOpenPositions(n int) {
	openPositions.Set(float64(n))
}

// SetPnL reports closed, floating and total P&L
func SetPnL(closed, floating float64) {
	pnl.WithLabelValues("closed").Set(closed)
	pnl.WithLabelValues("floating").Set(floating)
	pnl.WithLabelValues("total").Set(closed + floating)
}

// ObserveCycle records a cycle duration in seconds
func ObserveCycle(seconds float64) {
	cycleSeconds.Observe(seconds)
}

// IncStateSave counts a state write
func IncStateSave(err error) {
	if err != nil {
		stateSaves.WithLabelValues("error").Inc()
		return
	}
	stateSaves.WithLabelValues("ok").Inc()
}
