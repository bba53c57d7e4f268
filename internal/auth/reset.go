// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset code configuration.
const (
	OTPDigits = 6
	OTPExpiry = 10 * time.Minute
)

// otpSpace is the number of distinct codes (10^OTPDigits).
var otpSpace = big.NewInt(1_000_000)

// OtpRecord is an issued password reset code.
type OtpRecord struct {
	ID        ulid.ULID
	Email     string
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewOtpRecord creates a validated OtpRecord expiring ttl after now.
func NewOtpRecord(email, code string, now time.Time, ttl time.Duration) (*OtpRecord, error) {
	if email == "" {
		return nil, oops.Code("OTP_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if !IsOTPFormat(code) {
		return nil, oops.Code("OTP_INVALID_CODE").Errorf("code must be %d digits", OTPDigits)
	}
	if ttl <= 0 {
		return nil, oops.Code("OTP_INVALID_EXPIRY").With("ttl", ttl).Errorf("ttl must be positive")
	}

	now = now.UTC()
	return &OtpRecord{
		ID:        ulid.Make(),
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// ValidAt reports whether the record can still be consumed at t.
// A record is valid strictly before its expiry.
func (r *OtpRecord) ValidAt(t time.Time) bool {
	return t.Before(r.ExpiresAt)
}

// GenerateOTP returns a code drawn uniformly from 000000-999999.
// Leading zeros are kept.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", oops.Code("OTP_GENERATE_FAILED").Wrap(err)
	}
	return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
}

// IsOTPFormat reports whether code is exactly OTPDigits ASCII digits.
func IsOTPFormat(code string) bool {
	if len(code) != OTPDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// OtpRepository manages reset code persistence.
type OtpRepository interface {
	// Create stores a new reset code.
	Create(ctx context.Context, rec *OtpRecord) error

	// FindLatestValid returns the newest record for (email, code) whose expiry
	// is after now. Ties on creation time are broken by ID, newest first.
	// Returns ErrNotFound if none matches.
	FindLatestValid(ctx context.Context, email, code string, now time.Time) (*OtpRecord, error)

	// Consume atomically deletes rec (only if still unexpired at now) and sets
	// the password hash of the user with rec.Email. Either both happen or
	// neither does. Returns ErrInvalidOTP if the record is gone or expired and
	// ErrNotFound if no user has the email.
	Consume(ctx context.Context, rec *OtpRecord, passwordHash string, now time.Time) error

	// DeleteExpiredBefore removes records that expired before cutoff and
	// returns how many were removed.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
