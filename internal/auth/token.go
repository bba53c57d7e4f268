// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenExpiry  = time.Hour
	MinTokenSecretBytes = 16
)

// Claims are the session token payload.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// SessionTokenIssuer issues bearer tokens at login.
type SessionTokenIssuer interface {
	// Issue signs a token for the user and returns it with its expiry.
	Issue(userID ulid.ULID, email string) (token string, expiresAt time.Time, err error)
}

// JWTIssuer signs and verifies HS256 session tokens.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// JWTOption configures a JWTIssuer.
type JWTOption func(*JWTIssuer)

// WithTokenTTL overrides the token lifetime.
func WithTokenTTL(ttl time.Duration) JWTOption {
	return func(j *JWTIssuer) { j.ttl = ttl }
}

// WithTokenClock sets the time source used for issuing and verifying.
func WithTokenClock(now func() time.Time) JWTOption {
	return func(j *JWTIssuer) { j.now = now }
}

// NewJWTIssuer creates a JWTIssuer. The secret must be at least
// MinTokenSecretBytes long.
func NewJWTIssuer(secret string, opts ...JWTOption) (*JWTIssuer, error) {
	if len(secret) < MinTokenSecretBytes {
		return nil, oops.Code("TOKEN_SECRET_INVALID").
			With("min_bytes", MinTokenSecretBytes).
			Errorf("token secret is too short")
	}
	j := &JWTIssuer{
		secret: []byte(secret),
		ttl:    SessionTokenExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.ttl <= 0 {
		return nil, oops.Code("TOKEN_TTL_INVALID").With("ttl", j.ttl).Errorf("token ttl must be positive")
	}
	return j, nil
}

// Issue signs a token carrying the user's id and email.
func (j *JWTIssuer) Issue(userID ulid.ULID, email string) (string, time.Time, error) {
	issuedAt := j.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(j.ttl)

	claims := Claims{
		UserID: userID.String(),
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return token, expiresAt, nil
}

// Verify parses and validates a token. Any failure, including expiry and a
// signing method other than HS256, wraps ErrInvalidToken.
func (j *JWTIssuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return j.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, oops.Code(CodeInvalidToken).With("reason", err.Error()).Wrap(ErrInvalidToken)
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, oops.Code(CodeInvalidToken).Wrap(ErrInvalidToken)
	}
	return claims, nil
}
