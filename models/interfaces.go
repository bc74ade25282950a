package models

import "context"

// MarketDataProvider is the raw market data source the feed governs
type MarketDataProvider interface {
	GetPrice(ctx context.Context, symbol string) (string, error)
	GetQuote(ctx context.Context, symbol string) (RawQuote, error)
	GetSeries(ctx context.Context, symbol, interval string, count int) ([]RawCandle, error)
}
