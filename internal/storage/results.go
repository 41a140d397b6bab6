package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/models"
)

// DB persists scan results to PostgreSQL.
type DB struct {
	*sql.DB
	logger zerolog.Logger
}

// New opens a connection from a DSN and creates the results table when it
// does not exist yet.
func New(dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{DB: db, logger: log.With().Str("component", "storage").Logger()}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS scan_results (
			id SERIAL PRIMARY KEY,
			scanned_at TIMESTAMP NOT NULL,
			symbol TEXT NOT NULL,
			name TEXT,
			price DOUBLE PRECISION NOT NULL,
			market_cap DOUBLE PRECISION NOT NULL,
			market_cap_category TEXT,
			volume BIGINT,
			pe_ratio DOUBLE PRECISION,
			revenue_growth DOUBLE PRECISION,
			earnings_growth DOUBLE PRECISION,
			institutional_ownership DOUBLE PRECISION,
			rsi DOUBLE PRECISION,
			relative_strength DOUBLE PRECISION,
			volume_ratio DOUBLE PRECISION,
			price_change_5d DOUBLE PRECISION,
			price_change_20d DOUBLE PRECISION,
			pattern TEXT
		)
	`)
	return err
}

// SaveCandidates inserts one row per accepted candidate under a shared
// scan timestamp.
func (db *DB) SaveCandidates(ctx context.Context, candidates []models.Candidate) error {
	scannedAt := time.Now().UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scan_results (
			scanned_at, symbol, name, price, market_cap, market_cap_category,
			volume, pe_ratio, revenue_growth, earnings_growth,
			institutional_ownership, rsi, relative_strength, volume_ratio,
			price_change_5d, price_change_20d, pattern
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candidates {
		_, err := stmt.ExecContext(ctx,
			scannedAt, c.Symbol, c.Name, c.Price, c.MarketCap, string(c.Category),
			c.Volume, c.Fundamentals.PERatio, c.Fundamentals.RevenueGrowth,
			c.Fundamentals.EarningsGrowth, c.Fundamentals.InstitutionalOwnership,
			c.Technicals.RSI, c.Technicals.RelativeStrength, c.Technicals.VolumeRatio,
			c.Technicals.PriceChange5D, c.Technicals.PriceChange20D, string(c.Technicals.Pattern),
		)
		if err != nil {
			return fmt.Errorf("inserting %s: %w", c.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing scan results: %w", err)
	}
	db.logger.Info().Int("candidates", len(candidates)).Time("scanned_at", scannedAt).Msg("scan results saved")
	return nil
}

// LatestCandidates returns the symbols from the most recent scan.
func (db *DB) LatestCandidates(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT symbol FROM scan_results
		WHERE scanned_at = (SELECT MAX(scanned_at) FROM scan_results)
		ORDER BY symbol
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, err
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}
