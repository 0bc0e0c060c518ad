// internal/archive/archive.go

// Package archive writes finished-match records to Postgres. It is a
// write-only audit sink: nothing is read back into the coordinator, and live
// match state is never persisted.
package archive

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultRecord is the terminal summary of one match.
type ResultRecord struct {
	MatchID string
	Variant string
	Mode    string
	Winner  string // "a", "b" or "draw"
	Version int
}

// Archive wraps a pgx pool. A nil *Archive is a valid no-op sink.
type Archive struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against DATABASE_URL and verifies connectivity.
func Connect(ctx context.Context) (*Archive, error) {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		connStr = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("POSTGRES_USER"),
			os.Getenv("POSTGRES_PASSWORD"),
			os.Getenv("PG_HOST"),
			os.Getenv("PG_PORT"),
			os.Getenv("PG_DATABASE"),
		)
	}

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return &Archive{pool: pool}, nil
}

// Close releases the pool.
func (a *Archive) Close() {
	if a != nil && a.pool != nil {
		a.pool.Close()
	}
}

// RecordResult inserts a finished match's terminal summary.
func (a *Archive) RecordResult(ctx context.Context, rec ResultRecord) error {
	if a == nil || a.pool == nil {
		return nil
	}
	q := `
		INSERT INTO match_results (match_id, variant, mode, winner, version, finished_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (match_id) DO NOTHING
	`
	if _, err := a.pool.Exec(ctx, q, rec.MatchID, rec.Variant, rec.Mode, rec.Winner, rec.Version); err != nil {
		return fmt.Errorf("insert match result: %w", err)
	}
	return nil
}

// RecordRematch links a resolved rematch to the match it replaces.
func (a *Archive) RecordRematch(ctx context.Context, oldMatchID, newMatchID string) error {
	if a == nil || a.pool == nil {
		return nil
	}
	q := `
		INSERT INTO match_rematches (prior_match_id, next_match_id, created_at)
		VALUES ($1, $2, now())
	`
	if _, err := a.pool.Exec(ctx, q, oldMatchID, newMatchID); err != nil {
		return fmt.Errorf("insert rematch link: %w", err)
	}
	return nil
}
