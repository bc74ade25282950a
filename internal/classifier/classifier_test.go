package classifier

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel() *Model {
	// negative z-score pushes towards LONG
	return &Model{
		Version:   "test-1",
		TrainedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Weights:   []float64{-1.5, 0, 0, 0, 0, 0, 0},
		Bias:      0,
	}
}

func TestFeatures(t *testing.T) {
	ind := &models.Indicators{ZScore: -2.5, ADX: 25, RSI: 35, BBWidth: 0.02, BBPercentB: 0.15}

	tests := []struct {
		name    string
		ts      time.Time
		hour    float64
		weekday float64
	}{
		{"monday", time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC), 10, 0},
		{"friday", time.Date(2024, 3, 8, 13, 0, 0, 0, time.UTC), 13, 4},
		{"sunday", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 0, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Features(ind, tt.ts)
			require.Len(t, f, NumFeatures)
			assert.Equal(t, []float64{-2.5, 25, 35, 0.02, 0.15, tt.hour, tt.weekday}, f)
		})
	}
}

func TestValidateFeatures(t *testing.T) {
	assert.NoError(t, ValidateFeatures(make([]float64, 7)))
	assert.Error(t, ValidateFeatures(make([]float64, 6)))
	assert.Error(t, ValidateFeatures([]float64{0, 0, math.NaN(), 0, 0, 0, 0}))
	assert.Error(t, ValidateFeatures([]float64{0, 0, 0, math.Inf(1), 0, 0, 0}))
}

func TestPredict(t *testing.T) {
	c, err := New(testModel())
	require.NoError(t, err)

	p, err := c.Predict([]float64{-2, 25, 35, 0.02, 0.15, 10, 0})
	require.NoError(t, err)
	require.NoError(t, CheckPrediction(p))
	assert.Equal(t, models.Long, *p.Direction)
	assert.InDelta(t, 1/(1+math.Exp(-3)), *p.Confidence, 1e-12)
	assert.InDelta(t, 1.0, p.Probabilities[models.Long]+p.Probabilities[models.Short], 1e-12)

	p, err = c.Predict([]float64{2, 25, 65, 0.02, 0.85, 10, 0})
	require.NoError(t, err)
	assert.Equal(t, models.Short, *p.Direction)
	assert.Greater(t, *p.Confidence, 0.5)

	_, err = c.Predict([]float64{1, 2})
	assert.Error(t, err)
}

func TestPredictScaling(t *testing.T) {
	m := testModel()
	m.Means = []float64{1, 0, 0, 0, 0, 0, 0}
	m.Stds = []float64{2, 1, 1, 1, 1, 1, 1}
	c, err := New(m)
	require.NoError(t, err)

	// (1-1)/2 = 0 so the logit is the bias
	p, err := c.Predict([]float64{1, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.Probabilities[models.Long], 1e-12)
}

func TestCheckPrediction(t *testing.T) {
	long := models.Long
	bogus := models.Direction("FLAT")
	conf := 0.7
	over := 1.2
	nan := math.NaN()

	tests := []struct {
		name    string
		p       *models.Prediction
		wantErr bool
	}{
		{"valid", &models.Prediction{Direction: &long, Confidence: &conf}, false},
		{"nil", nil, true},
		{"missing direction", &models.Prediction{Confidence: &conf}, true},
		{"missing confidence", &models.Prediction{Direction: &long}, true},
		{"unknown direction", &models.Prediction{Direction: &bogus, Confidence: &conf}, true},
		{"confidence above one", &models.Prediction{Direction: &long, Confidence: &over}, true},
		{"nan confidence", &models.Prediction{Direction: &long, Confidence: &nan}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPrediction(tt.p)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedPrediction)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classifier.json")
	clk := clock.NewFake(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, Save(path, testModel()))
	c, err := Load(path, 90, clk)
	require.NoError(t, err)
	assert.Equal(t, "test-1", c.Version())

	_, err = Load(filepath.Join(dir, "missing.json"), 90, clk)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"weights":[1,2,3]}`), 0o644))
	_, err = Load(path, 90, clk)
	assert.Error(t, err)
}
