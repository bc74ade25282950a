package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetGovernorState(t *testing.T) {
	SetGovernorState("open")
	assert.Equal(t, 1.0, testutil.ToFloat64(governorState.WithLabelValues("open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(governorState.WithLabelValues("closed")))

	SetGovernorState("closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(governorState.WithLabelValues("open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(governorState.WithLabelValues("closed")))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(gateDecisions.WithLabelValues("approved"))
	IncGateDecision(true)
	assert.Equal(t, before+1, testutil.ToFloat64(gateDecisions.WithLabelValues("approved")))

	beforeErr := testutil.ToFloat64(stateSaves.WithLabelValues("error"))
	IncStateSave(errors.New("disk full"))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(stateSaves.WithLabelValues("error")))

	SetPnL(-50, 20)
	assert.Equal(t, -30.0, testutil.ToFloat64(pnl.WithLabelValues("total")))
}
