package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenConfig controls connection pooling and the startup ping retry.
type OpenConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration // Total time to wait for the database to come up
}

// DefaultOpenConfig returns pool settings suitable for a single instance.
func DefaultOpenConfig() OpenConfig {
	return OpenConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     30 * time.Second,
	}
}

// Open opens a PostgreSQL handle through the pgx stdlib driver and pings it
// with exponential backoff until it answers or PingTimeout elapses.
func Open(ctx context.Context, databaseURL string, cfg OpenConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = cfg.PingTimeout

	attempt := 0
	ping := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("Database not ready, retrying", "attempt", attempt, "retry_in", next, "error", err)
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed after %d attempts: %w", attempt, err)
	}
	return db, nil
}
