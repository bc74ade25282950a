package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	// API
	TwelveAPIKey      string  `env:"TWELVE_API_KEY"`
	TwelveBaseURL     string  `env:"TWELVE_BASE_URL" envDefault:"https://api.twelvedata.com"`
	ConnectTimeout    int     `env:"CONNECT_TIMEOUT" envDefault:"10"` // seconds
	RequestTimeout    int     `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds
	RequestsPerSec    int     `env:"REQUESTS_PER_SEC" envDefault:"1"`
	MaxRetries        int     `env:"MAX_RETRIES" envDefault:"3"`
	RetryDelay        int     `env:"RETRY_DELAY" envDefault:"5"` // seconds
	BackoffMultiplier float64 `env:"BACKOFF_MULTIPLIER" envDefault:"2"`

	// Governor
	MaxCallsPerDay    int `env:"MAX_CALLS_PER_DAY" envDefault:"740"`
	MaxCallsPerMinute int `env:"MAX_CALLS_PER_MINUTE" envDefault:"8"`
	BreakerThreshold  int `env:"CIRCUIT_BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown   int `env:"CIRCUIT_BREAKER_TIMEOUT" envDefault:"300"` // seconds
	BreakerProbeLimit int `env:"CIRCUIT_BREAKER_HALF_OPEN_CALLS" envDefault:"3"`

	// Trading
	Symbol            string `env:"SYMBOL" envDefault:"EUR/USD"`
	Interval          string `env:"INTERVAL" envDefault:"15min"`
	TimeframeMinutes  int    `env:"TIMEFRAME_MINUTES" envDefault:"15"`
	CandleCount       int    `env:"CANDLE_COUNT" envDefault:"100"`
	TradingStartHour  int    `env:"TRADING_START_HOUR" envDefault:"9"`
	TradingEndHour    int    `env:"TRADING_END_HOUR" envDefault:"14"`
	CycleInterval     int    `env:"CYCLE_INTERVAL" envDefault:"900"`      // seconds
	ErrorRetryDelay   int    `env:"ERROR_RETRY_DELAY" envDefault:"60"`    // seconds
	HeartbeatInterval int    `env:"HEARTBEAT_INTERVAL" envDefault:"1800"` // seconds
	StatusInterval    int    `env:"STATUS_INTERVAL" envDefault:"3600"`    // seconds

	// Indicators
	MAPeriod  int     `env:"MA_PERIOD" envDefault:"20"`
	BBPeriod  int     `env:"BB_PERIOD" envDefault:"20"`
	BBStdDev  float64 `env:"BB_STD_DEV" envDefault:"2.0"`
	RSIPeriod int     `env:"RSI_PERIOD" envDefault:"14"`
	ADXPeriod int     `env:"ADX_PERIOD" envDefault:"14"`

	// Signal
	ZScoreLong    float64 `env:"Z_SCORE_LONG_THRESHOLD" envDefault:"-2.0"`
	ZScoreShort   float64 `env:"Z_SCORE_SHORT_THRESHOLD" envDefault:"2.0"`
	ADXMax        float64 `env:"ADX_MAX_THRESHOLD" envDefault:"30"`
	RSIOversold   float64 `env:"RSI_OVERSOLD" envDefault:"40"`
	RSIOverbought float64 `env:"RSI_OVERBOUGHT" envDefault:"60"`
	MinConfidence float64 `env:"ML_CONFIDENCE_THRESHOLD" envDefault:"0.65"`

	// Order geometry
	PipSize        float64 `env:"PIP_SIZE" envDefault:"0.0001"`
	OffsetPips     float64 `env:"LIMIT_OFFSET_PIPS" envDefault:"5"`
	StopLossPips   float64 `env:"DEFAULT_SL_PIPS" envDefault:"20"`
	TakeProfitPips float64 `env:"DEFAULT_TP_PIPS" envDefault:"40"`

	// Risk
	AccountSize      float64 `env:"ACCOUNT_SIZE" envDefault:"5000"`
	MaxDailyLossPct  float64 `env:"MAX_DAILY_LOSS_PCT" envDefault:"0.05"`
	MaxLossPerTrade  float64 `env:"MAX_LOSS_PER_TRADE" envDefault:"100"`
	RiskBufferPct    float64 `env:"RISK_BUFFER_PCT" envDefault:"0.20"`
	DefaultRiskPct   float64 `env:"DEFAULT_RISK_PCT" envDefault:"0.02"`
	MinLotSize       float64 `env:"MIN_LOT_SIZE" envDefault:"0.01"`
	MaxLotSize       float64 `env:"MAX_LOT_SIZE" envDefault:"1.0"`
	LotSizeStep      float64 `env:"LOT_SIZE_STEP" envDefault:"0.01"`
	PipValuePerLot   float64 `env:"PIP_VALUE_PER_LOT" envDefault:"10"`
	MaxOpenPositions int     `env:"MAX_OPEN_POSITIONS" envDefault:"3"`
	MaxDailyTrades   int     `env:"MAX_DAILY_TRADES" envDefault:"10"`

	// Classifier
	ModelPath       string `env:"MODEL_PATH" envDefault:"models/classifier.json"`
	MaxModelAgeDays int    `env:"MAX_MODEL_AGE_DAYS" envDefault:"90"`

	// Paths
	StatePath string `env:"STATE_PATH" envDefault:"data/state/trading_state.json"`

	// Telegram
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID"`

	// Database
	DBHost     string `env:"DB_HOST"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// Server
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.TwelveAPIKey = os.Getenv("TWELVE_API_KEY")
	cfg.TwelveBaseURL = getEnvWithDefault("TWELVE_BASE_URL", "https://api.twelvedata.com")
	cfg.ConnectTimeout = getEnvIntWithDefault("CONNECT_TIMEOUT", 10)
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 30)
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", 1)
	cfg.MaxRetries = getEnvIntWithDefault("MAX_RETRIES", 3)
	cfg.RetryDelay = getEnvIntWithDefault("RETRY_DELAY", 5)
	cfg.BackoffMultiplier = getEnvFloatWithDefault("BACKOFF_MULTIPLIER", 2)

	cfg.MaxCallsPerDay = getEnvIntWithDefault("MAX_CALLS_PER_DAY", 740)
	cfg.MaxCallsPerMinute = getEnvIntWithDefault("MAX_CALLS_PER_MINUTE", 8)
	cfg.BreakerThreshold = getEnvIntWithDefault("CIRCUIT_BREAKER_THRESHOLD", 5)
	cfg.BreakerCooldown = getEnvIntWithDefault("CIRCUIT_BREAKER_TIMEOUT", 300)
	cfg.BreakerProbeLimit = getEnvIntWithDefault("CIRCUIT_BREAKER_HALF_OPEN_CALLS", 3)

	cfg.Symbol = getEnvWithDefault("SYMBOL", "EUR/USD")
	cfg.Interval = getEnvWithDefault("INTERVAL", "15min")
	cfg.TimeframeMinutes = getEnvIntWithDefault("TIMEFRAME_MINUTES", 15)
	cfg.CandleCount = getEnvIntWithDefault("CANDLE_COUNT", 100)
	cfg.TradingStartHour = getEnvIntWithDefault("TRADING_START_HOUR", 9)
	cfg.TradingEndHour = getEnvIntWithDefault("TRADING_END_HOUR", 14)
	cfg.CycleInterval = getEnvIntWithDefault("CYCLE_INTERVAL", 900)
	cfg.ErrorRetryDelay = getEnvIntWithDefault("ERROR_RETRY_DELAY", 60)
	cfg.HeartbeatInterval = getEnvIntWithDefault("HEARTBEAT_INTERVAL", 1800)
	cfg.StatusInterval = getEnvIntWithDefault("STATUS_INTERVAL", 3600)

	cfg.MAPeriod = getEnvIntWithDefault("MA_PERIOD", 20)
	cfg.BBPeriod = getEnvIntWithDefault("BB_PERIOD", 20)
	cfg.BBStdDev = getEnvFloatWithDefault("BB_STD_DEV", 2.0)
	cfg.RSIPeriod = getEnvIntWithDefault("RSI_PERIOD", 14)
	cfg.ADXPeriod = getEnvIntWithDefault("ADX_PERIOD", 14)

	cfg.ZScoreLong = getEnvFloatWithDefault("Z_SCORE_LONG_THRESHOLD", -2.0)
	cfg.ZScoreShort = getEnvFloatWithDefault("Z_SCORE_SHORT_THRESHOLD", 2.0)
	cfg.ADXMax = getEnvFloatWithDefault("ADX_MAX_THRESHOLD", 30)
	cfg.RSIOversold = getEnvFloatWithDefault("RSI_OVERSOLD", 40)
	cfg.RSIOverbought = getEnvFloatWithDefault("RSI_OVERBOUGHT", 60)
	cfg.MinConfidence = getEnvFloatWithDefault("ML_CONFIDENCE_THRESHOLD", 0.65)

	cfg.PipSize = getEnvFloatWithDefault("PIP_SIZE", 0.0001)
	cfg.OffsetPips = getEnvFloatWithDefault("LIMIT_OFFSET_PIPS", 5)
	cfg.StopLossPips = getEnvFloatWithDefault("DEFAULT_SL_PIPS", 20)
	cfg.TakeProfitPips = getEnvFloatWithDefault("DEFAULT_TP_PIPS", 40)

	cfg.AccountSize = getEnvFloatWithDefault("ACCOUNT_SIZE", 5000)
	cfg.MaxDailyLossPct = getEnvFloatWithDefault("MAX_DAILY_LOSS_PCT", 0.05)
	cfg.MaxLossPerTrade = getEnvFloatWithDefault("MAX_LOSS_PER_TRADE", 100)
	cfg.RiskBufferPct = getEnvFloatWithDefault("RISK_BUFFER_PCT", 0.20)
	cfg.DefaultRiskPct = getEnvFloatWithDefault("DEFAULT_RISK_PCT", 0.02)
	cfg.MinLotSize = getEnvFloatWithDefault("MIN_LOT_SIZE", 0.01)
	cfg.MaxLotSize = getEnvFloatWithDefault("MAX_LOT_SIZE", 1.0)
	cfg.LotSizeStep = getEnvFloatWithDefault("LOT_SIZE_STEP", 0.01)
	cfg.PipValuePerLot = getEnvFloatWithDefault("PIP_VALUE_PER_LOT", 10)
	cfg.MaxOpenPositions = getEnvIntWithDefault("MAX_OPEN_POSITIONS", 3)
	cfg.MaxDailyTrades = getEnvIntWithDefault("MAX_DAILY_TRADES", 10)

	cfg.ModelPath = getEnvWithDefault("MODEL_PATH", "models/classifier.json")
	cfg.MaxModelAgeDays = getEnvIntWithDefault("MAX_MODEL_AGE_DAYS", 90)
	cfg.StatePath = getEnvWithDefault("STATE_PATH", "data/state/trading_state.json")

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0)

	cfg.DBHost = os.Getenv("DB_HOST")
	cfg.DBPort = getEnvWithDefault("DB_PORT", "5432")
	cfg.DBUser = os.Getenv("DB_USER")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = os.Getenv("DB_NAME")
	cfg.DBSSLMode = getEnvWithDefault("DB_SSLMODE", "disable")

	cfg.HTTPAddr = getEnvWithDefault("HTTP_ADDR", ":8080")
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvWithDefault("LOG_FORMAT", "console")

	return &cfg, nil
}

// Validate reports configuration the service cannot start with
func (c *Config) Validate() error {
	var errs []error

	if c.TwelveAPIKey == "" {
		errs = append(errs, errors.New("TWELVE_API_KEY is required"))
	}
	if c.TradingEndHour <= c.TradingStartHour {
		errs = append(errs, fmt.Errorf("trading end hour %d must be after start hour %d", c.TradingEndHour, c.TradingStartHour))
	}
	if c.TimeframeMinutes <= 0 {
		errs = append(errs, errors.New("TIMEFRAME_MINUTES must be positive"))
	}
	if c.AccountSize <= 0 {
		errs = append(errs, errors.New("ACCOUNT_SIZE must be positive"))
	}
	if c.MaxDailyLossPct <= 0 || c.MaxDailyLossPct > 0.1 {
		errs = append(errs, errors.New("MAX_DAILY_LOSS_PCT must be between 0 and 0.1"))
	}
	if c.MaxLossPerTrade <= 0 {
		errs = append(errs, errors.New("MAX_LOSS_PER_TRADE must be positive"))
	}
	if c.MaxLossPerTrade > c.AccountSize*c.MaxDailyLossPct {
		errs = append(errs, errors.New("MAX_LOSS_PER_TRADE cannot exceed the max daily loss amount"))
	}
	if c.MinLotSize <= 0 || c.MaxLotSize < c.MinLotSize || c.LotSizeStep <= 0 {
		errs = append(errs, errors.New("lot size bounds are inconsistent"))
	}
	if c.MinConfidence < 0.5 || c.MinConfidence > 1.0 {
		errs = append(errs, errors.New("ML_CONFIDENCE_THRESHOLD must be between 0.5 and 1.0"))
	}

	return errors.Join(errs...)
}

// DatabaseEnabled reports whether the trade journal should be opened
func (c *Config) DatabaseEnabled() bool {
	return c.DBHost != ""
}

// TelegramEnabled reports whether Telegram credentials are configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// Seconds converts one of the integer second settings into a duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer in environment, using default")
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer in environment, using default")
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid float in environment, using default")
	}
	return defaultValue
}
