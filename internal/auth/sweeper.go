// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Sweeper defaults.
const (
	DefaultOTPRetention  = 24 * time.Hour
	DefaultSweepInterval = 15 * time.Minute
)

// Sweeper periodically deletes reset codes that expired more than the
// retention period ago. It never touches unexpired codes.
type Sweeper struct {
	otps      OtpRepository
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
	onSwept   func(n int64)
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithRetention sets how long expired codes are kept.
func WithRetention(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.retention = d }
}

// WithInterval sets the sweep period.
func WithInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.interval = d }
}

// WithSweeperLogger sets the sweeper logger.
func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = logger }
}

// WithSweeperClock sets the time source.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// WithSweptHook registers a callback receiving each pass's deletion count.
func WithSweptHook(fn func(n int64)) SweeperOption {
	return func(s *Sweeper) { s.onSwept = fn }
}

// NewSweeper creates a Sweeper.
func NewSweeper(otps OtpRepository, opts ...SweeperOption) (*Sweeper, error) {
	if otps == nil {
		return nil, oops.Code("SWEEPER_INVALID_DEPENDENCY").Errorf("otp repository is required")
	}
	s := &Sweeper{
		otps:      otps,
		retention: DefaultOTPRetention,
		interval:  DefaultSweepInterval,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retention < 0 {
		return nil, oops.Code("SWEEPER_INVALID_CONFIG").With("retention", s.retention).Errorf("retention cannot be negative")
	}
	if s.interval <= 0 {
		return nil, oops.Code("SWEEPER_INVALID_CONFIG").With("interval", s.interval).Errorf("interval must be positive")
	}
	return s, nil
}

// SweepOnce runs a single pass and returns the number of deleted codes.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.otps.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, oops.Code("OTP_SWEEP_FAILED").With("cutoff", cutoff).Wrap(err)
	}
	if s.onSwept != nil {
		s.onSwept(n)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired reset codes swept", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Run sweeps immediately and then every interval until ctx is done.
// Failed passes are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.WarnContext(ctx, "reset code sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
