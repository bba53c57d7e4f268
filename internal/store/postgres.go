// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package store opens the PostgreSQL pool and manages the schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectConfig tunes Connect.
type ConnectConfig struct {
	// MaxConns caps the pool size. Zero keeps the pgx default.
	MaxConns int32
	// PingAttempts is how many times the initial ping is retried.
	PingAttempts uint64
	// PingBackoff is the first retry delay; later delays grow exponentially.
	PingBackoff time.Duration
}

// DefaultConnectConfig returns the settings used by the server.
func DefaultConnectConfig() ConnectConfig {
	return ConnectConfig{
		PingAttempts: 5,
		PingBackoff:  200 * time.Millisecond,
	}
}

// Connect opens a pool for databaseURL and waits until the database answers
// a ping, retrying with exponential backoff while it starts up.
func Connect(ctx context.Context, databaseURL string, cfg ConnectConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.WithMaxRetries(cfg.PingAttempts, retry.NewExponential(cfg.PingBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			slog.DebugContext(ctx, "database not ready", "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", cfg.PingAttempts+1).
			Wrap(err)
	}
	return pool, nil
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Readiness returns a check that reports whether the database answers a
// ping within timeout.
func Readiness(db Pinger, timeout time.Duration) func() bool {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return db.Ping(ctx) == nil
	}
}
