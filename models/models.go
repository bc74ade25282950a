package models

import (
	"time"
)

// Candle represents a single closed or forming price candle
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// RawCandle is a candle as the provider sends it, before any numeric coercion
type RawCandle struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume,omitempty"`
}

// RawQuote is the provider's quote payload
type RawQuote struct {
	Symbol string `json:"symbol"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume,omitempty"`
}

// TwelveResponse represents the time_series response from Twelve Data
type TwelveResponse struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values  []RawCandle `json:"values"`
	Status  string      `json:"status"`
	Code    int         `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// TwelvePrice represents the /price response
type TwelvePrice struct {
	Price   string `json:"price"`
	Status  string `json:"status,omitempty"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Indicators holds every value the signal rule and the classifier consume
type Indicators struct {
	ZScore       float64 `json:"z_score"`
	RSI          float64 `json:"rsi"`
	ADX          float64 `json:"adx"`
	BBUpper      float64 `json:"bb_upper"`
	BBMiddle     float64 `json:"bb_middle"`
	BBLower      float64 `json:"bb_lower"`
	BBWidth      float64 `json:"bb_width"`
	BBPercentB   float64 `json:"bb_percent_b"`
	CurrentPrice float64 `json:"current_price"`
}

// Prediction is the classifier output. Pointer fields are nil when the model did not provide them.
type Prediction struct {
	Direction     *Direction            `json:"direction,omitempty"`
	Confidence    *float64              `json:"confidence,omitempty"`
	Probabilities map[Direction]float64 `json:"probabilities,omitempty"`
}

// CircuitState is the call governor's breaker state
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)
