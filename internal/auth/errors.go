// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import "errors"

// Sentinel errors used to classify failures. Repositories and the service
// wrap these with oops codes; callers test them with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when required input is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a user with the same email already exists.
	ErrConflict = errors.New("user already exists")

	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	// Both causes share this error so callers cannot probe for accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidOTP is returned when no unexpired reset code matches.
	ErrInvalidOTP = errors.New("invalid or expired otp")

	// ErrInvalidToken is returned when a session token fails verification.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Error codes attached to classified errors.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodeConflict           = "AUTH_CONFLICT"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidOTP         = "AUTH_INVALID_OTP"
	CodeInvalidToken       = "AUTH_TOKEN_INVALID"
)

// Kind is the coarse error taxonomy exposed to transports.
type Kind int

// Error kinds.
const (
	KindServer Kind = iota
	KindValidation
	KindConflict
	KindAuthentication
	KindInvalidOTP
)

// String returns the lowercase kind name, used as a metric label.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	case KindInvalidOTP:
		return "invalid_otp"
	default:
		return "server"
	}
}

// KindOf classifies err. Anything not carrying a known sentinel is a server error.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindServer
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return KindAuthentication
	case errors.Is(err, ErrInvalidOTP):
		return KindInvalidOTP
	default:
		return KindServer
	}
}
