package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/Alias1177/fxguard/internal/api/twelvedata"
	"github.com/Alias1177/fxguard/internal/classifier"
	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/internal/config"
	"github.com/Alias1177/fxguard/internal/feed"
	"github.com/Alias1177/fxguard/internal/governor"
	"github.com/Alias1177/fxguard/internal/trading/backtest"
	"github.com/Alias1177/fxguard/models"
	"github.com/rs/zerolog/log"
)

// maxOutputSize is the largest series Twelve Data returns in one call
const maxOutputSize = 5000

func main() {
	days := flag.Int("days", 30, "days of history to replay")
	window := flag.Int("window", 100, "candles visible to each decision")
	sessionOnly := flag.Bool("session", false, "only signal inside trading hours")
	asJSON := flag.Bool("json", false, "print results as JSON")
	modelPath := flag.String("model", "", "classifier file, overrides MODEL_PATH; \"none\" disables it")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	cfg.SetupLogger()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.Real{}

	count := models.CandlesForDays(cfg.Interval, *days)
	if count > maxOutputSize {
		count = maxOutputSize
	}
	if count <= *window {
		log.Fatal().Int("candles", count).Int("window", *window).Msg("History shorter than window, raise -days")
	}

	feedOpts := cfg.FeedOptions()
	feedOpts.CandleCount = count
	market := feed.New(
		twelvedata.NewClient(cfg.TwelveDataOptions()),
		governor.New(cfg.GovernorOptions(), clk),
		clk,
		feedOpts,
	)

	candles, err := market.HistoricalCandles(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch history")
	}
	log.Info().Int("candles", len(candles)).Str("interval", cfg.Interval).Msg("History loaded")

	opts := backtest.DefaultOptions()
	opts.WindowSize = *window
	opts.TimeframeMinutes = cfg.TimeframeMinutes
	opts.Indicators = cfg.IndicatorParams()
	opts.Thresholds = cfg.SignalThresholds()
	opts.Geometry = cfg.OrderGeometry()
	opts.Limits = cfg.RiskLimits()
	opts.Hours = cfg.TradingHours()
	opts.SessionOnly = *sessionOnly

	path := cfg.ModelPath
	if *modelPath != "" {
		path = *modelPath
	}

	var predictor backtest.Predictor
	if path != "" && path != "none" {
		model, err := classifier.Load(path, cfg.MaxModelAgeDays, clk)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to load classifier")
		}
		predictor = model
	}

	results, err := backtest.NewEngine(opts, predictor).Run(ctx, candles)
	if err != nil {
		log.Fatal().Err(err).Msg("Replay failed")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode results")
		}
		return
	}
	fmt.Print(backtest.FormatResults(results))
}
