// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
)

// OtpRepository implements auth.OtpRepository using PostgreSQL.
type OtpRepository struct {
	pool poolIface
}

var _ auth.OtpRepository = (*OtpRepository)(nil)

// NewOtpRepository creates a new OtpRepository.
func NewOtpRepository(pool poolIface) *OtpRepository {
	return &OtpRepository{pool: pool}
}

// Create stores a new reset code.
func (r *OtpRepository) Create(ctx context.Context, rec *auth.OtpRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO otps (id, email, code, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID.String(), rec.Email, rec.Code, rec.ExpiresAt, rec.CreatedAt)
	if err != nil {
		return oops.Code("OTP_CREATE_FAILED").
			With("operation", "insert otp").
			With("email", rec.Email).
			Wrap(err)
	}
	return nil
}

// FindLatestValid returns the newest unexpired record for (email, code).
func (r *OtpRepository) FindLatestValid(ctx context.Context, email, code string, now time.Time) (*auth.OtpRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, code, expires_at, created_at
		FROM otps
		WHERE email = $1 AND code = $2 AND expires_at > $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, email, code, now)

	var (
		rec auth.OtpRecord
		id  string
	)
	err := row.Scan(&id, &rec.Email, &rec.Code, &rec.ExpiresAt, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("OTP_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("OTP_GET_FAILED").
			With("operation", "find latest valid otp").
			With("email", email).
			Wrap(err)
	}
	if rec.ID, err = ulid.Parse(id); err != nil {
		return nil, oops.Code("OTP_ID_INVALID").With("id", id).Wrap(err)
	}
	return &rec, nil
}

// Consume deletes rec and sets the user's password hash in one transaction.
// The delete only matches while rec is unexpired, so two concurrent
// verifications of the same code cannot both succeed.
func (r *OtpRepository) Consume(ctx context.Context, rec *auth.OtpRecord, passwordHash string, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("OTP_CONSUME_FAILED").With("operation", "begin transaction").Wrap(err)
	}

	if err := consumeInTx(ctx, tx, rec, passwordHash, now); err != nil {
		_ = tx.Rollback(ctx) //nolint:errcheck // the consume error takes precedence
		return oops.With("email", rec.Email).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("OTP_CONSUME_FAILED").With("operation", "commit transaction").Wrap(err)
	}
	return nil
}

func consumeInTx(ctx context.Context, tx pgx.Tx, rec *auth.OtpRecord, passwordHash string, now time.Time) error {
	tag, err := tx.Exec(ctx, `DELETE FROM otps WHERE id = $1 AND expires_at > $2`, rec.ID.String(), now)
	if err != nil {
		return oops.Code("OTP_CONSUME_FAILED").With("operation", "delete otp").Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code(auth.CodeInvalidOTP).With("otp_id", rec.ID.String()).Wrap(auth.ErrInvalidOTP)
	}
	return updatePassword(ctx, tx, rec.Email, passwordHash, now.UTC())
}

// DeleteExpiredBefore removes records that expired before cutoff.
func (r *OtpRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM otps WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, oops.Code("OTP_SWEEP_FAILED").
			With("operation", "delete expired otps").
			With("cutoff", cutoff).
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}
