package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Alias1177/fxguard/internal/trading/risk"
	"github.com/Alias1177/fxguard/models"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DB is the Postgres trade journal
type DB struct {
	*sql.DB
	logger zerolog.Logger
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds the lib/pq connection string
func (p ConnectionParams) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, sslMode,
	)
}

// New opens the connection and creates the journal tables
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	db, err := sql.Open("postgres", params.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &DB{DB: db, logger: log.With().Str("component", "journal").Logger()}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS signals (
			id BIGSERIAL PRIMARY KEY,
			cycle_id TEXT NOT NULL,
			signal_id BIGINT NOT NULL,
			direction TEXT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			z_score DOUBLE PRECISION NOT NULL,
			adx DOUBLE PRECISION NOT NULL,
			rsi DOUBLE PRECISION NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			approved BOOLEAN NOT NULL,
			reason TEXT NOT NULL,
			details JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trades (
			signal_id BIGINT PRIMARY KEY,
			direction TEXT NOT NULL,
			entry DOUBLE PRECISION NOT NULL,
			stop_loss DOUBLE PRECISION NOT NULL,
			take_profit DOUBLE PRECISION NOT NULL,
			lots DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL,
			pnl DOUBLE PRECISION NOT NULL,
			exit_price DOUBLE PRECISION,
			exit_reason TEXT,
			opened_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ
		)
	`)
	return err
}

// RecordSignal journals a signal together with the gate decision
func (db *DB) RecordSignal(ctx context.Context, cycleID string, sig *models.Signal, d risk.Decision) error {
	var details []byte
	if d.Details != nil {
		var err error
		if details, err = json.Marshal(d.Details); err != nil {
			return fmt.Errorf("encoding details: %w", err)
		}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO signals (
			cycle_id, signal_id, direction, entry_price, z_score, adx, rsi,
			confidence, approved, reason, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		cycleID, sig.ID, string(sig.Direction), sig.EntryPrice,
		sig.Indicators.ZScore, sig.Indicators.ADX, sig.Indicators.RSI,
		sig.Confidence, d.Approved, d.Reason, nullJSON(details), sig.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("inserting signal %d: %w", sig.ID, err)
	}
	return nil
}

// RecordTrade inserts or updates a trade by signal id
func (db *DB) RecordTrade(ctx context.Context, t models.Trade) error {
	var closedAt sql.NullTime
	if t.ClosedAt != nil {
		closedAt = sql.NullTime{Time: t.ClosedAt.UTC(), Valid: true}
	}
	var exitPrice sql.NullFloat64
	if t.ExitPrice > 0 {
		exitPrice = sql.NullFloat64{Float64: t.ExitPrice, Valid: true}
	}
	var exitReason sql.NullString
	if t.ExitReason != "" {
		exitReason = sql.NullString{String: string(t.ExitReason), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO trades (
			signal_id, direction, entry, stop_loss, take_profit, lots,
			status, pnl, exit_price, exit_reason, opened_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (signal_id)
		DO UPDATE SET
			status = EXCLUDED.status,
			pnl = EXCLUDED.pnl,
			exit_price = EXCLUDED.exit_price,
			exit_reason = EXCLUDED.exit_reason,
			closed_at = EXCLUDED.closed_at
	`,
		t.SignalID, string(t.Direction), t.Entry, t.StopLoss, t.TakeProfit, t.Lots,
		string(t.Status), t.PnL, exitPrice, exitReason, t.OpenedAt.UTC(), closedAt)
	if err != nil {
		return fmt.Errorf("upserting trade %d: %w", t.SignalID, err)
	}
	db.logger.Debug().Int64("signal_id", t.SignalID).Str("status", string(t.Status)).Msg("Trade journaled")
	return nil
}

// ClosedTradesSince returns trades closed at or after since, oldest first
func (db *DB) ClosedTradesSince(ctx context.Context, since time.Time) ([]models.Trade, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT
			signal_id, direction, entry, stop_loss, take_profit, lots,
			status, pnl, exit_price, exit_reason, opened_at, closed_at
		FROM trades
		WHERE status = $1 AND closed_at >= $2
		ORDER BY closed_at
	`, string(models.TradeClosed), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying closed trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var (
			t          models.Trade
			direction  string
			status     string
			exitPrice  sql.NullFloat64
			exitReason sql.NullString
			closedAt   sql.NullTime
		)
		if err := rows.Scan(
			&t.SignalID, &direction, &t.Entry, &t.StopLoss, &t.TakeProfit, &t.Lots,
			&status, &t.PnL, &exitPrice, &exitReason, &t.OpenedAt, &closedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}

		t.Direction = models.Direction(direction)
		t.Status = models.TradeStatus(status)
		if exitPrice.Valid {
			t.ExitPrice = exitPrice.Float64
		}
		if exitReason.Valid {
			t.ExitReason = models.ExitReason(exitReason.String)
		}
		if closedAt.Valid {
			ts := closedAt.Time.UTC()
			t.ClosedAt = &ts
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trades: %w", err)
	}
	return trades, nil
}

func nullJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
