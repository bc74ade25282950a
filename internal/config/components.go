package config

import (
	"github.com/Alias1177/fxguard/internal/api/twelvedata"
	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/internal/database"
	"github.com/Alias1177/fxguard/internal/engine"
	"github.com/Alias1177/fxguard/internal/feed"
	"github.com/Alias1177/fxguard/internal/governor"
	"github.com/Alias1177/fxguard/internal/indicators"
	"github.com/Alias1177/fxguard/internal/order"
	"github.com/Alias1177/fxguard/internal/signal"
	"github.com/Alias1177/fxguard/internal/trading/risk"
)

// TwelveDataOptions maps the API section onto client options
func (c *Config) TwelveDataOptions() twelvedata.ClientOptions {
	return twelvedata.ClientOptions{
		APIKey:            c.TwelveAPIKey,
		BaseURL:           c.TwelveBaseURL,
		ConnectTimeout:    Seconds(c.ConnectTimeout),
		RequestTimeout:    Seconds(c.RequestTimeout),
		RequestsPerSec:    c.RequestsPerSec,
		MaxRetries:        c.MaxRetries,
		RetryDelay:        Seconds(c.RetryDelay),
		BackoffMultiplier: c.BackoffMultiplier,
	}
}

func (c *Config) GovernorOptions() governor.Options {
	return governor.Options{
		MaxPerDay:          c.MaxCallsPerDay,
		MaxPerMinute:       c.MaxCallsPerMinute,
		FailureThreshold:   c.BreakerThreshold,
		Cooldown:           Seconds(c.BreakerCooldown),
		HalfOpenProbeLimit: c.BreakerProbeLimit,
	}
}

func (c *Config) FeedOptions() feed.Options {
	return feed.Options{
		Symbol:           c.Symbol,
		Interval:         c.Interval,
		CandleCount:      c.CandleCount,
		TimeframeMinutes: c.TimeframeMinutes,
	}
}

func (c *Config) IndicatorParams() indicators.Params {
	return indicators.Params{
		MAPeriod:  c.MAPeriod,
		BBPeriod:  c.BBPeriod,
		BBStdDev:  c.BBStdDev,
		RSIPeriod: c.RSIPeriod,
		ADXPeriod: c.ADXPeriod,
	}
}

func (c *Config) SignalThresholds() signal.Thresholds {
	return signal.Thresholds{
		ZLong:         c.ZScoreLong,
		ZShort:        c.ZScoreShort,
		ADXMax:        c.ADXMax,
		RSIOversold:   c.RSIOversold,
		RSIOverbought: c.RSIOverbought,
		MinConfidence: c.MinConfidence,
	}
}

func (c *Config) OrderGeometry() order.Geometry {
	return order.Geometry{
		Pip:            c.PipSize,
		OffsetPips:     c.OffsetPips,
		StopLossPips:   c.StopLossPips,
		TakeProfitPips: c.TakeProfitPips,
	}
}

func (c *Config) RiskLimits() risk.Limits {
	return risk.Limits{
		AccountSize:      c.AccountSize,
		MaxDailyLossPct:  c.MaxDailyLossPct,
		MaxLossPerTrade:  c.MaxLossPerTrade,
		RiskBufferPct:    c.RiskBufferPct,
		DefaultRiskPct:   c.DefaultRiskPct,
		MinLot:           c.MinLotSize,
		MaxLot:           c.MaxLotSize,
		LotStep:          c.LotSizeStep,
		PipSize:          c.PipSize,
		PipValuePerLot:   c.PipValuePerLot,
		MaxOpenPositions: c.MaxOpenPositions,
		MaxDailyTrades:   c.MaxDailyTrades,
	}
}

func (c *Config) TradingHours() clock.TradingHours {
	return clock.TradingHours{Start: c.TradingStartHour, End: c.TradingEndHour}
}

func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Symbol:            c.Symbol,
		Hours:             c.TradingHours(),
		CycleInterval:     Seconds(c.CycleInterval),
		ErrorDelay:        Seconds(c.ErrorRetryDelay),
		HeartbeatInterval: Seconds(c.HeartbeatInterval),
		StatusInterval:    Seconds(c.StatusInterval),
		AccountSize:       c.AccountSize,
	}
}

func (c *Config) DatabaseParams() database.ConnectionParams {
	return database.ConnectionParams{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		DBName:   c.DBName,
		SSLMode:  c.DBSSLMode,
	}
}
