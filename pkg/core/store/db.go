package store

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

const mirrorSchema = `
CREATE TABLE IF NOT EXISTS etf_holdings_cache (
	ticker      TEXT        NOT NULL,
	max_filings INTEGER     NOT NULL,
	cached_at   TIMESTAMPTZ NOT NULL,
	payload     JSONB       NOT NULL,
	PRIMARY KEY (ticker, max_filings)
)`

// OpenMirror connects the optional Postgres cache mirror using the
// DATABASE_URL environment variable and ensures its table exists. An unset
// variable means no mirror is configured; that returns (nil, nil) and the
// cache stays purely file-based.
func OpenMirror(ctx context.Context) (*pgxpool.Pool, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, nil
	}

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect cache mirror: %w", err)
	}
	if _, err := pool.Exec(ctx, mirrorSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to prepare cache mirror schema: %w", err)
	}
	return pool, nil
}
