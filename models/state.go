package models

import (
	"fmt"
	"time"
)

// DocumentVersion is written into every fresh state document
const DocumentVersion = "3.1"

// RequiredDocumentFields must be present at the top level of a persisted document
var RequiredDocumentFields = []string{"created_at", "last_updated", "open_trades", "closed_trades"}

// Document is the persisted state of the service
type Document struct {
	CreatedAt       time.Time `json:"created_at"`
	LastUpdated     time.Time `json:"last_updated"`
	Version         string    `json:"version"`
	OpenTrades      []Trade   `json:"open_trades"`
	ClosedTrades    []Trade   `json:"closed_trades"`
	DailyPnL        float64   `json:"daily_pnl"`
	StartingBalance float64   `json:"starting_balance"`
	CurrentBalance  float64   `json:"current_balance"`
	TotalTrades     int       `json:"total_trades"`
	Wins            int       `json:"wins"`
	Losses          int       `json:"losses"`
	APICallsToday   int       `json:"api_calls_today"`
	LastSignalID    int64     `json:"last_signal_id"`
}

// NewDocument returns a fresh default document
func NewDocument(now time.Time) *Document {
	now = now.UTC()
	return &Document{
		CreatedAt:    now,
		LastUpdated:  now,
		Version:      DocumentVersion,
		OpenTrades:   []Trade{},
		ClosedTrades: []Trade{},
	}
}

// Validate checks that open and closed trades are disjoint and every signal id is unique
func (d *Document) Validate() error {
	seen := make(map[int64]TradeStatus, len(d.OpenTrades)+len(d.ClosedTrades))
	for _, t := range d.OpenTrades {
		if _, dup := seen[t.SignalID]; dup {
			return fmt.Errorf("duplicate open trade %d", t.SignalID)
		}
		seen[t.SignalID] = TradeOpen
	}
	for _, t := range d.ClosedTrades {
		if status, dup := seen[t.SignalID]; dup {
			if status == TradeOpen {
				return fmt.Errorf("trade %d is both open and closed", t.SignalID)
			}
			return fmt.Errorf("duplicate closed trade %d", t.SignalID)
		}
		seen[t.SignalID] = TradeClosed
	}
	return nil
}

// Clone returns a deep copy so callers cannot alias the store's slices
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.OpenTrades = append([]Trade(nil), d.OpenTrades...)
	c.ClosedTrades = append([]Trade(nil), d.ClosedTrades...)
	if c.OpenTrades == nil {
		c.OpenTrades = []Trade{}
	}
	if c.ClosedTrades == nil {
		c.ClosedTrades = []Trade{}
	}
	return &c
}
