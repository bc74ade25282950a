package governor

import (
	"testing"
	"time"

	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func newTestGovernor(opts Options) (*Governor, *clock.Fake) {
	clk := clock.NewFake(start)
	return New(opts, clk), clk
}

func call(t *testing.T, g *Governor) {
	t.Helper()
	ok, reason := g.CanCall()
	require.True(t, ok, reason)
	g.RecordCall()
}

func TestMinuteWindow(t *testing.T) {
	g, clk := newTestGovernor(Options{MaxPerMinute: 3})

	for i := 0; i < 3; i++ {
		call(t, g)
		g.RecordSuccess()
	}

	ok, reason := g.CanCall()
	assert.False(t, ok)
	assert.Contains(t, reason, "per-minute")

	clk.Advance(61 * time.Second)
	ok, _ = g.CanCall()
	assert.True(t, ok)
	assert.Equal(t, 0, g.Status().MinuteCalls)
}

func TestDailyBudgetResetsAtMidnight(t *testing.T) {
	g, clk := newTestGovernor(Options{MaxPerDay: 2, MaxPerMinute: 10})

	call(t, g)
	call(t, g)
	ok, reason := g.CanCall()
	assert.False(t, ok)
	assert.Contains(t, reason, "daily limit")

	st := g.Status()
	assert.Equal(t, 2, st.DailyCalls)
	assert.Equal(t, 0, st.RemainingDaily)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), st.NextReset)

	clk.Set(time.Date(2024, 3, 5, 0, 0, 1, 0, time.UTC))
	ok, _ = g.CanCall()
	assert.True(t, ok)
	assert.Equal(t, 0, g.Status().DailyCalls)
}

func TestBreakerLifecycle(t *testing.T) {
	g, clk := newTestGovernor(Options{
		MaxPerMinute:       100,
		FailureThreshold:   5,
		Cooldown:           300 * time.Second,
		HalfOpenProbeLimit: 3,
	})

	for i := 0; i < 4; i++ {
		g.RecordFailure("boom")
	}
	assert.Equal(t, models.CircuitClosed, g.Status().State)
	g.RecordFailure("boom")
	require.Equal(t, models.CircuitOpen, g.Status().State)

	ok, reason := g.CanCall()
	assert.False(t, ok)
	assert.Equal(t, "circuit open", reason)

	clk.Advance(299 * time.Second)
	ok, _ = g.CanCall()
	assert.False(t, ok)

	clk.Advance(time.Second)
	ok, _ = g.CanCall()
	require.True(t, ok)
	assert.Equal(t, models.CircuitHalfOpen, g.Status().State)

	// Two probes succeed, breaker still half-open
	for i := 0; i < 2; i++ {
		g.RecordCall()
		g.RecordSuccess()
		assert.Equal(t, models.CircuitHalfOpen, g.Status().State)
	}

	call(t, g)
	ok, reason = g.CanCall()
	assert.False(t, ok)
	assert.Contains(t, reason, "probe limit")

	g.RecordSuccess()
	st := g.Status()
	assert.Equal(t, models.CircuitClosed, st.State)
	assert.Equal(t, 0, st.FailureCount)
	assert.Equal(t, 0, st.HalfOpenCalls)
}

func TestHalfOpenFailureReopens(t *testing.T) {
	g, clk := newTestGovernor(Options{FailureThreshold: 1, Cooldown: time.Minute})

	g.RecordFailure("first")
	require.Equal(t, models.CircuitOpen, g.Status().State)
	firstOpen := *g.Status().OpenedAt

	clk.Advance(time.Minute)
	call(t, g)
	require.Equal(t, models.CircuitHalfOpen, g.Status().State)

	g.RecordFailure("probe failed")
	st := g.Status()
	assert.Equal(t, models.CircuitOpen, st.State)
	require.NotNil(t, st.OpenedAt)
	assert.True(t, st.OpenedAt.After(firstOpen))
}

func TestSuccessResetsFailureCount(t *testing.T) {
	g, _ := newTestGovernor(Options{FailureThreshold: 3})

	g.RecordFailure("a")
	g.RecordFailure("b")
	g.RecordSuccess()
	g.RecordFailure("c")
	g.RecordFailure("d")

	assert.Equal(t, models.CircuitClosed, g.Status().State)
	assert.Equal(t, 2, g.Status().FailureCount)
}

func TestOutcomesDoNotTouchBudgets(t *testing.T) {
	g, _ := newTestGovernor(Options{})

	g.RecordSuccess()
	g.RecordFailure("x")

	st := g.Status()
	assert.Equal(t, 0, st.DailyCalls)
	assert.Equal(t, 0, st.MinuteCalls)
}

func TestReset(t *testing.T) {
	g, _ := newTestGovernor(Options{FailureThreshold: 1})
	call(t, g)
	g.RecordFailure("x")
	require.Equal(t, models.CircuitOpen, g.Status().State)

	g.Reset()
	st := g.Status()
	assert.Equal(t, models.CircuitClosed, st.State)
	assert.Nil(t, st.OpenedAt)
	assert.Equal(t, 1, st.DailyCalls)
}

func TestRestoreDailyCalls(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		recordedAt time.Time
		want       int
	}{
		{"same day", 738, start.Add(-time.Hour), 738},
		{"previous day", 738, start.Add(-24 * time.Hour), 0},
		{"negative", -5, start, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGovernor(Options{MaxPerDay: 740})
			g.RestoreDailyCalls(tt.n, tt.recordedAt)
			assert.Equal(t, tt.want, g.Status().DailyCalls)
		})
	}

	g, _ := newTestGovernor(Options{MaxPerDay: 740})
	g.RestoreDailyCalls(739, start)
	call(t, g)
	ok, reason := g.CanCall()
	assert.False(t, ok)
	assert.Contains(t, reason, "daily limit")
}
