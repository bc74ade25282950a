// Package order derives the limit entry, stop loss and take profit for a signal.
package order

import (
	"errors"
	"fmt"

	"github.com/Alias1177/fxguard/models"
	"github.com/shopspring/decimal"
)

// ErrInvalidDirection is returned for anything other than LONG or SHORT
var ErrInvalidDirection = errors.New("invalid direction")

// pricePlaces is the quote precision of the instrument
const pricePlaces = 5

// Geometry is the pip distance model
type Geometry struct {
	Pip            float64
	OffsetPips     float64
	StopLossPips   float64
	TakeProfitPips float64
}

// DefaultGeometry returns the production distances
func DefaultGeometry() Geometry {
	return Geometry{
		Pip:            0.0001,
		OffsetPips:     5,
		StopLossPips:   20,
		TakeProfitPips: 40,
	}
}

// Calculator builds orders with a fixed geometry
type Calculator struct {
	g Geometry
}

// NewCalculator creates a calculator
func NewCalculator(g Geometry) *Calculator {
	return &Calculator{g: g}
}

// Calculate places the entry offset pips better than price, then SL and TP around the entry
func (c *Calculator) Calculate(direction models.Direction, price float64) (*models.Order, error) {
	if !direction.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}

	pip := decimal.NewFromFloat(c.g.Pip)
	offset := pip.Mul(decimal.NewFromFloat(c.g.OffsetPips))
	sl := pip.Mul(decimal.NewFromFloat(c.g.StopLossPips))
	tp := pip.Mul(decimal.NewFromFloat(c.g.TakeProfitPips))
	p := decimal.NewFromFloat(price)

	var entry, stop, target decimal.Decimal
	if direction == models.Long {
		entry = p.Sub(offset)
		stop = entry.Sub(sl)
		target = entry.Add(tp)
	} else {
		entry = p.Add(offset)
		stop = entry.Add(sl)
		target = entry.Sub(tp)
	}

	var rr float64
	if c.g.StopLossPips != 0 {
		rr = c.g.TakeProfitPips / c.g.StopLossPips
	}

	return &models.Order{
		Direction:  direction,
		Entry:      entry.Round(pricePlaces).InexactFloat64(),
		StopLoss:   stop.Round(pricePlaces).InexactFloat64(),
		TakeProfit: target.Round(pricePlaces).InexactFloat64(),
		SLPips:     c.g.StopLossPips,
		TPPips:     c.g.TakeProfitPips,
		RiskReward: rr,
	}, nil
}
