// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package store provides database connectivity and schema migrations.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DB is the subset of *pgxpool.Pool used by repositories.
// pgxmock.PgxPoolIface satisfies it in unit tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

// ConnectOptions tunes Connect.
type ConnectOptions struct {
	// MaxRetries bounds ping attempts after the first.
	MaxRetries uint64
	// BaseDelay is the first backoff interval; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff interval.
	MaxDelay time.Duration
}

// DefaultConnectOptions retry for roughly half a minute.
var DefaultConnectOptions = ConnectOptions{
	MaxRetries: 6,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   8 * time.Second,
}

// Connect opens a pool and waits until the database answers a ping.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}

	backoff := retry.NewExponential(opts.BaseDelay)
	backoff = retry.WithCappedDuration(opts.MaxDelay, backoff)
	backoff = retry.WithMaxRetries(opts.MaxRetries, backoff)

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"host", cfg.ConnConfig.Host,
				"error", pingErr.Error())
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("attempts", attempt).
			With("host", cfg.ConnConfig.Host).
			Wrap(err)
	}

	logger.InfoContext(ctx, "connected to database",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database)
	return pool, nil
}

// IsUniqueViolation reports whether err is a Postgres unique_violation.
func IsUniqueViolation(err error) bool {
	return hasSQLState(err, pgerrcode.UniqueViolation)
}

// IsForeignKeyViolation reports whether err is a Postgres foreign_key_violation.
func IsForeignKeyViolation(err error) bool {
	return hasSQLState(err, pgerrcode.ForeignKeyViolation)
}

func hasSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
