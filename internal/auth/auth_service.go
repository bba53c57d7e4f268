// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service provides signup, login and password reset.
type Service struct {
	users    UserRepository
	otps     OtpRepository
	hasher   PasswordHasher
	tokens   SessionTokenIssuer
	mailer   Mailer
	logger   *slog.Logger
	now      func() time.Time
	otpTTL   time.Duration
	generate func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithOTPTTL overrides the reset code lifetime.
func WithOTPTTL(ttl time.Duration) Option {
	return func(s *Service) { s.otpTTL = ttl }
}

// WithCodeGenerator replaces the reset code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.generate = gen }
}

// NewService creates a Service. All collaborators are required.
func NewService(
	users UserRepository,
	otps OtpRepository,
	hasher PasswordHasher,
	tokens SessionTokenIssuer,
	mailer Mailer,
	opts ...Option,
) (*Service, error) {
	switch {
	case users == nil:
		return nil, oops.Code("SERVICE_INVALID_DEPENDENCY").Errorf("users repository is required")
	case otps == nil:
		return nil, oops.Code("SERVICE_INVALID_DEPENDENCY").Errorf("otp repository is required")
	case hasher == nil:
		return nil, oops.Code("SERVICE_INVALID_DEPENDENCY").Errorf("password hasher is required")
	case tokens == nil:
		return nil, oops.Code("SERVICE_INVALID_DEPENDENCY").Errorf("token issuer is required")
	case mailer == nil:
		return nil, oops.Code("SERVICE_INVALID_DEPENDENCY").Errorf("mailer is required")
	}

	s := &Service{
		users:    users,
		otps:     otps,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		logger:   slog.Default(),
		now:      time.Now,
		otpTTL:   OTPExpiry,
		generate: GenerateOTP,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		return nil, oops.Code("SERVICE_INVALID_DEPENDENCY").Errorf("logger cannot be nil")
	}
	if s.otpTTL <= 0 {
		return nil, oops.Code("SERVICE_INVALID_DEPENDENCY").With("otp_ttl", s.otpTTL).Errorf("otp ttl must be positive")
	}
	return s, nil
}

// unknownUserHash is verified against when no user matches the email, so
// both login failures cost one argon2id evaluation. It matches no password.
//
//nolint:gosec // G101: not a credential
const unknownUserHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// Signup registers a new user.
func (s *Service) Signup(ctx context.Context, name, email, password string) (*User, error) {
	if name == "" || email == "" || password == "" {
		return nil, oops.Code(CodeValidation).
			With("operation", "signup").
			Wrapf(ErrValidation, "name, email and password are required")
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, oops.Code(CodeConflict).With("email", email).Wrap(ErrConflict)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("SIGNUP_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(name, email, hash)
	if err != nil {
		return nil, oops.Code("SIGNUP_FAILED").
			With("operation", "new user").
			Wrap(err)
	}

	// The store's unique constraint catches a concurrent signup that passed
	// the lookup above.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, oops.Code("SIGNUP_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID.String())
	return user, nil
}

// Login authenticates a user and issues a session token. An unknown email
// and a wrong password fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, oops.Code(CodeValidation).
			With("operation", "login").
			Wrapf(ErrValidation, "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash := unknownUserHash
	if found {
		hash = user.PasswordHash
	}
	valid, err := s.hasher.Verify(password, hash)
	switch {
	case err != nil && found:
		return nil, oops.Code("LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(err)
	case err != nil, !found, !valid:
		return nil, invalidCredentials()
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, oops.Code("LOGIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String())
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// CurrentUser resolves the user named by verified token claims.
// A malformed id or a deleted account is reported as ErrInvalidToken.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*User, error) {
	id, err := ulid.Parse(userID)
	if err != nil {
		return nil, oops.Code(CodeInvalidToken).With("user_id", userID).Wrap(ErrInvalidToken)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeInvalidToken).With("user_id", userID).Wrap(ErrInvalidToken)
		}
		return nil, oops.Code("CURRENT_USER_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}
	return user, nil
}

// upgradeHash rehashes a password verified against an outdated digest.
// Login succeeds regardless of the outcome.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID.String(), "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.Email, newHash); err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade not persisted", "user_id", user.ID.String(), "error", err)
		return
	}
	user.PasswordHash = newHash
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", user.ID.String())
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}
