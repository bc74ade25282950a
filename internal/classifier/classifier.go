// Package classifier scores signal setups with a JSON-persisted logistic model.
//
// The model file carries the weights, the bias and the per-feature scaling
// fitted offline. Features are always ordered as FeatureNames.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FeatureNames is the fixed feature order
var FeatureNames = []string{"z_score", "adx", "rsi", "bb_width", "bb_percent_b", "hour", "day_of_week"}

// NumFeatures is len(FeatureNames)
const NumFeatures = 7

// ErrMalformedPrediction marks a prediction missing required fields or carrying an invalid confidence
var ErrMalformedPrediction = errors.New("malformed prediction")

// Model is the persisted artifact
type Model struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	Means     []float64 `json:"means"`
	Stds      []float64 `json:"stds"`
}

// Validate checks the artifact dimensions
func (m *Model) Validate() error {
	if len(m.Weights) != NumFeatures {
		return fmt.Errorf("expected %d weights, got %d", NumFeatures, len(m.Weights))
	}
	if len(m.Means) != 0 && len(m.Means) != NumFeatures {
		return fmt.Errorf("expected %d means, got %d", NumFeatures, len(m.Means))
	}
	if len(m.Stds) != 0 && len(m.Stds) != NumFeatures {
		return fmt.Errorf("expected %d stds, got %d", NumFeatures, len(m.Stds))
	}
	for _, v := range append(append([]float64{m.Bias}, m.Weights...), m.Means...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("model contains non-finite parameters")
		}
	}
	return nil
}

// Classifier wraps a loaded model
type Classifier struct {
	model  *Model
	logger zerolog.Logger
}

// New wraps an in-memory model
func New(m *Model) (*Classifier, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return &Classifier{
		model:  m,
		logger: log.With().Str("component", "classifier").Str("version", m.Version).Logger(),
	}, nil
}

// Load reads the model at path and warns when it is older than maxAgeDays
func Load(path string, maxAgeDays int, clk clock.Clock) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}

	c, err := New(&m)
	if err != nil {
		return nil, err
	}

	age := clk.Now().Sub(m.TrainedAt)
	if maxAgeDays > 0 && !m.TrainedAt.IsZero() && age > time.Duration(maxAgeDays)*24*time.Hour {
		c.logger.Warn().
			Int("age_days", int(age.Hours()/24)).
			Int("max_age_days", maxAgeDays).
			Msg("Model is stale, consider retraining")
	}
	c.logger.Info().Str("path", path).Time("trained_at", m.TrainedAt).Msg("Model loaded")
	return c, nil
}

// Save writes m as indented JSON
func Save(path string, m *Model) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid model: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Version returns the artifact version
func (c *Classifier) Version() string {
	return c.model.Version
}

// Features builds the feature vector for the indicators observed at ts
func Features(ind *models.Indicators, ts time.Time) []float64 {
	ts = ts.UTC()
	// Monday is day 0
	weekday := (int(ts.Weekday()) + 6) % 7
	return []float64{
		ind.ZScore,
		ind.ADX,
		ind.RSI,
		ind.BBWidth,
		ind.BBPercentB,
		float64(ts.Hour()),
		float64(weekday),
	}
}

// ValidateFeatures rejects vectors of the wrong size or with non-finite values
func ValidateFeatures(features []float64) error {
	if len(features) != NumFeatures {
		return fmt.Errorf("invalid feature count: %d (expected %d)", len(features), NumFeatures)
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("feature %s is not finite", FeatureNames[i])
		}
	}
	return nil
}

// Predict scores features. p(LONG) is the logistic output.
func (c *Classifier) Predict(features []float64) (*models.Prediction, error) {
	if err := ValidateFeatures(features); err != nil {
		return nil, err
	}

	z := c.model.Bias
	for i, x := range features {
		if len(c.model.Means) == NumFeatures {
			x -= c.model.Means[i]
		}
		if len(c.model.Stds) == NumFeatures && c.model.Stds[i] != 0 {
			x /= c.model.Stds[i]
		}
		z += c.model.Weights[i] * x
	}
	pLong := sigmoid(z)

	direction := models.Short
	confidence := 1 - pLong
	if pLong >= 0.5 {
		direction = models.Long
		confidence = pLong
	}

	c.logger.Debug().
		Str("direction", string(direction)).
		Float64("confidence", confidence).
		Msg("Prediction")

	return &models.Prediction{
		Direction:  &direction,
		Confidence: &confidence,
		Probabilities: map[models.Direction]float64{
			models.Long:  pLong,
			models.Short: 1 - pLong,
		},
	}, nil
}

// CheckPrediction rejects predictions missing a direction or a usable confidence
func CheckPrediction(p *models.Prediction) error {
	if p == nil {
		return fmt.Errorf("%w: nil prediction", ErrMalformedPrediction)
	}
	if p.Direction == nil {
		return fmt.Errorf("%w: missing direction", ErrMalformedPrediction)
	}
	if !p.Direction.Valid() {
		return fmt.Errorf("%w: unknown direction %q", ErrMalformedPrediction, *p.Direction)
	}
	if p.Confidence == nil {
		return fmt.Errorf("%w: missing confidence", ErrMalformedPrediction)
	}
	conf := *p.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrMalformedPrediction, conf)
	}
	return nil
}

// sigmoid returns 1/(1+e^-x) clamped for numerical stability
func sigmoid(x float64) float64 {
	if x > 20 {
		return 1
	}
	if x < -20 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}
