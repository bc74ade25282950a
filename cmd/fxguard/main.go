package main

import (
	"context"
	"errors"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/Alias1177/fxguard/internal/api/twelvedata"
	"github.com/Alias1177/fxguard/internal/classifier"
	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/internal/config"
	"github.com/Alias1177/fxguard/internal/database"
	"github.com/Alias1177/fxguard/internal/engine"
	"github.com/Alias1177/fxguard/internal/feed"
	"github.com/Alias1177/fxguard/internal/governor"
	"github.com/Alias1177/fxguard/internal/notify"
	"github.com/Alias1177/fxguard/internal/order"
	"github.com/Alias1177/fxguard/internal/server"
	"github.com/Alias1177/fxguard/internal/state"
	"github.com/Alias1177/fxguard/internal/trading/risk"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 30 * time.Second

func main() {
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

	client := twelvedata.NewClient(cfg.TwelveDataOptions())
	gov := governor.New(cfg.GovernorOptions(), clk)
	market := feed.New(client, gov, clk, cfg.FeedOptions())

	limits := cfg.RiskLimits()
	ledger := risk.NewLedger(limits, clk)
	gate := risk.NewGate(risk.NewCalculator(limits), ledger)

	deps := engine.Deps{
		Market:     market,
		Governor:   gov,
		Store:      state.NewStore(cfg.StatePath, clk),
		Indicators: cfg.IndicatorParams(),
		Thresholds: cfg.SignalThresholds(),
		Orders:     order.NewCalculator(cfg.OrderGeometry()),
		Ledger:     ledger,
		Gate:       gate,
		Clock:      clk,
	}

	if cfg.ModelPath != "" {
		model, err := classifier.Load(cfg.ModelPath, cfg.MaxModelAgeDays, clk)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.ModelPath).Msg("Failed to load classifier")
		}
		deps.Predictor = model
	} else {
		log.Warn().Msg("MODEL_PATH empty, running without classifier")
	}

	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Telegram bot")
		}
		deps.Notifier = tg
		deps.Commands = tg.Listen(ctx)
	} else {
		log.Warn().Msg("Telegram not configured, notifications go to the log")
		deps.Notifier = notify.NewStdout()
	}

	if cfg.DatabaseEnabled() {
		db, err := database.New(ctx, cfg.DatabaseParams())
		if err != nil {
			log.Error().Err(err).Msg("Database unavailable, journal disabled")
		} else {
			defer db.Close()
			deps.Journal = db
		}
	}

	eng := engine.New(deps, cfg.EngineOptions())

	srv := server.New(cfg.HTTPAddr, eng)
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	if err := eng.Startup(ctx); err != nil {
		log.Fatal().Err(err).Msg("Startup failed")
	}

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Engine stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Bye")
}
