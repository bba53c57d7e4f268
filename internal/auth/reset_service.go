// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// RequestReset issues a reset code for email and mails it.
// The result is the same whether or not the email is registered: unknown
// (and empty) emails return nil without creating a record or sending mail.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	if email == "" {
		return nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "reset requested for unknown email")
			return nil
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	code, err := s.generate()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate code").
			Wrap(err)
	}

	rec, err := NewOtpRecord(user.Email, code, s.now(), s.otpTTL)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "new otp record").
			Wrap(err)
	}

	if err := s.otps.Create(ctx, rec); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store otp").
			Wrap(err)
	}

	if err := s.mailer.Send(ctx, ResetCodeMessage(user.Email, code, s.otpTTL)); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "send reset email").
			With("otp_id", rec.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "reset code issued",
		"user_id", user.ID.String(),
		"otp_id", rec.ID.String(),
		"expires_at", rec.ExpiresAt,
	)
	return nil
}

// VerifyReset consumes the newest unexpired code matching (email, code) and
// sets the new password. Wrong, expired, already used and never requested
// codes all yield ErrInvalidOTP.
func (s *Service) VerifyReset(ctx context.Context, email, code, newPassword string) error {
	if email == "" || code == "" || newPassword == "" {
		return oops.Code(CodeValidation).
			With("operation", "verify reset").
			Wrapf(ErrValidation, "email, otp and new password are required")
	}
	if !IsOTPFormat(code) {
		return invalidOTP()
	}

	rec, err := s.otps.FindLatestValid(ctx, email, code, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidOTP()
		}
		return oops.Code("RESET_VERIFY_FAILED").
			With("operation", "find otp").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_VERIFY_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.otps.Consume(ctx, rec, hash, s.now()); err != nil {
		if errors.Is(err, ErrInvalidOTP) || errors.Is(err, ErrNotFound) {
			return invalidOTP()
		}
		return oops.Code("RESET_VERIFY_FAILED").
			With("operation", "consume otp").
			With("otp_id", rec.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset", "otp_id", rec.ID.String())
	return nil
}

func invalidOTP() error {
	return oops.Code(CodeInvalidOTP).Wrap(ErrInvalidOTP)
}
