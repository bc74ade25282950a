// Package signal turns indicator readings and an optional classifier opinion into trade signals.
package signal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Alias1177/fxguard/internal/classifier"
	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/internal/metrics"
	"github.com/Alias1177/fxguard/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Thresholds are the mean reversion entry rules
type Thresholds struct {
	ZLong         float64
	ZShort        float64
	ADXMax        float64
	RSIOversold   float64
	RSIOverbought float64
	MinConfidence float64
}

// DefaultThresholds returns the production rules
func DefaultThresholds() Thresholds {
	return Thresholds{
		ZLong:         -2.0,
		ZShort:        2.0,
		ADXMax:        30,
		RSIOversold:   40,
		RSIOverbought: 60,
		MinConfidence: 0.65,
	}
}

// Generator emits signals with monotonically increasing ids
type Generator struct {
	mu     sync.Mutex
	th     Thresholds
	lastID int64
	clock  clock.Clock
	logger zerolog.Logger
}

// NewGenerator creates a generator whose next id is startID+1
func NewGenerator(th Thresholds, startID int64, clk clock.Clock) *Generator {
	return &Generator{
		th:     th,
		lastID: startID,
		clock:  clk,
		logger: log.With().Str("component", "signal_generator").Logger(),
	}
}

// LastID returns the id of the most recent signal
func (g *Generator) LastID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastID
}

// Generate evaluates the entry rules. A nil prediction means no classifier is in use;
// a malformed one blocks the signal.
func (g *Generator) Generate(ind *models.Indicators, pred *models.Prediction) (*models.Signal, bool) {
	if ind == nil {
		g.logger.Warn().Msg("No indicators provided")
		return nil, false
	}

	hasClassifier := pred != nil
	var confidence float64
	var mlDirection models.Direction
	if hasClassifier {
		if err := classifier.CheckPrediction(pred); err != nil {
			g.logger.Error().Err(err).Msg("Rejecting classifier output")
			return nil, false
		}
		confidence = *pred.Confidence
		mlDirection = *pred.Direction
	}

	g.logger.Debug().
		Float64("z_score", ind.ZScore).
		Float64("adx", ind.ADX).
		Float64("rsi", ind.RSI).
		Float64("confidence", confidence).
		Msg("Signal check")

	agrees := func(d models.Direction) bool {
		return !hasClassifier || (confidence >= g.th.MinConfidence && mlDirection == d)
	}

	var direction models.Direction
	switch {
	case ind.ZScore <= g.th.ZLong && ind.ADX < g.th.ADXMax && ind.RSI < g.th.RSIOversold && agrees(models.Long):
		direction = models.Long
	case ind.ZScore >= g.th.ZShort && ind.ADX < g.th.ADXMax && ind.RSI > g.th.RSIOverbought && agrees(models.Short):
		direction = models.Short
	default:
		g.logger.Debug().Msg("No signal conditions met")
		return nil, false
	}

	g.mu.Lock()
	g.lastID++
	id := g.lastID
	g.mu.Unlock()

	sig := &models.Signal{
		ID:         id,
		Direction:  direction,
		Timestamp:  g.clock.Now(),
		EntryPrice: ind.CurrentPrice,
		Indicators: models.SignalIndicators{
			ZScore: ind.ZScore,
			ADX:    ind.ADX,
			RSI:    ind.RSI,
		},
		Confidence:    confidence,
		HasClassifier: hasClassifier,
		Reason:        reason(direction, ind, confidence, hasClassifier),
	}

	metrics.IncSignal(string(direction))
	g.logger.Info().Int64("signal_id", id).Str("reason", sig.Reason).Msg("Signal generated")
	return sig, true
}

// ValidateSignal checks a signal before it is sized and proposed
func ValidateSignal(s *models.Signal) error {
	if s == nil {
		return errors.New("nil signal")
	}
	if !s.Direction.Valid() {
		return fmt.Errorf("invalid signal direction %q", s.Direction)
	}
	if s.EntryPrice <= 0 {
		return fmt.Errorf("invalid entry price %v", s.EntryPrice)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("invalid confidence %v", s.Confidence)
	}
	return nil
}

func reason(d models.Direction, ind *models.Indicators, confidence float64, hasClassifier bool) string {
	ml := "n/a"
	if hasClassifier {
		ml = fmt.Sprintf("%.1f%%", confidence*100)
	}
	return fmt.Sprintf("Mean reversion %s: Z=%.2f, ADX=%.1f, RSI=%.1f, ML=%s", d, ind.ZScore, ind.ADX, ind.RSI, ml)
}
