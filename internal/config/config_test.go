package config

import (
	"testing"
	"time"

	"github.com/Alias1177/fxguard/internal/engine"
	"github.com/Alias1177/fxguard/internal/governor"
	"github.com/Alias1177/fxguard/internal/indicators"
	"github.com/Alias1177/fxguard/internal/order"
	"github.com/Alias1177/fxguard/internal/signal"
	"github.com/Alias1177/fxguard/internal/trading/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TWELVE_API_KEY", "demo")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "EUR/USD", cfg.Symbol)
	assert.Equal(t, "15min", cfg.Interval)
	assert.Equal(t, 740, cfg.MaxCallsPerDay)
	assert.Equal(t, 8, cfg.MaxCallsPerMinute)
	assert.Equal(t, 300, cfg.BreakerCooldown)
	assert.Equal(t, 0.0001, cfg.PipSize)
	assert.Equal(t, 5000.0, cfg.AccountSize)
	assert.False(t, cfg.DatabaseEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TWELVE_API_KEY", "demo")
	t.Setenv("MAX_CALLS_PER_DAY", "100")
	t.Setenv("BB_STD_DEV", "2.5")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("MAX_OPEN_POSITIONS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.MaxCallsPerDay)
	assert.Equal(t, 2.5, cfg.BBStdDev)
	assert.Equal(t, int64(-100123), cfg.TelegramChatID)
	assert.True(t, cfg.TelegramEnabled())
	assert.Equal(t, 3, cfg.MaxOpenPositions)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing api key", func(c *Config) { c.TwelveAPIKey = "" }, "TWELVE_API_KEY"},
		{"inverted hours", func(c *Config) { c.TradingEndHour = 9 }, "trading end hour"},
		{"daily loss too high", func(c *Config) { c.MaxDailyLossPct = 0.2 }, "MAX_DAILY_LOSS_PCT"},
		{"per trade above daily", func(c *Config) { c.MaxLossPerTrade = 300 }, "cannot exceed"},
		{"confidence too low", func(c *Config) { c.MinConfidence = 0.4 }, "ML_CONFIDENCE_THRESHOLD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TWELVE_API_KEY", "demo")
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestComponentOptionsMatchDefaults(t *testing.T) {
	t.Setenv("TWELVE_API_KEY", "demo")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, governor.DefaultOptions(), cfg.GovernorOptions())
	assert.Equal(t, indicators.DefaultParams(), cfg.IndicatorParams())
	assert.Equal(t, signal.DefaultThresholds(), cfg.SignalThresholds())
	assert.Equal(t, order.DefaultGeometry(), cfg.OrderGeometry())
	assert.Equal(t, risk.DefaultLimits(), cfg.RiskLimits())
	assert.Equal(t, engine.DefaultOptions(), cfg.EngineOptions())

	td := cfg.TwelveDataOptions()
	assert.Equal(t, 10*time.Second, td.ConnectTimeout)
	assert.Equal(t, 30*time.Second, td.RequestTimeout)
	assert.Equal(t, "disable", cfg.DatabaseParams().SSLMode)
}
