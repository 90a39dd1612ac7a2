// Package postgres provides PostgreSQL connection and migration helpers.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Songmu/retry"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // migrate driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // migrate source
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config contains PostgreSQL connection configuration.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectAttempts int
	// RetryInterval is the pause between connection attempts.
	RetryInterval time.Duration
}

// Connect opens a pool and pings it, retrying until ConnectAttempts is used
// up or ctx is done.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	var pool *pgxpool.Pool
	attempt := 0
	err = retry.Retry(uint(attempts), interval, func() error {
		attempt++
		if ctx.Err() != nil {
			return nil
		}

		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			slog.Warn("failed to create connection pool", "attempt", attempt, "max_attempts", attempts, "error", err)
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			slog.Warn("failed to ping database", "attempt", attempt, "max_attempts", attempts, "error", err)
			return err
		}

		pool = p
		return nil
	})
	if ctx.Err() != nil {
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database after %d attempts: %w", attempts, err)
	}

	slog.Info("connected to database", "attempts", attempt)
	return pool, nil
}

// Direction selects which way Migrate runs.
type Direction string

// Migration directions.
const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Migrate applies (up) or rolls back (down) every migration in dir, a
// file:// source URL. Having nothing to do is not an error.
func Migrate(dir, databaseURL string, direction Direction) error {
	m, err := migrate.New(dir, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	switch direction {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}

	version, dirty, verr := m.Version()
	if verr == nil {
		slog.Info("migrations applied", "direction", direction, "version", version, "dirty", dirty)
	}
	return nil
}
