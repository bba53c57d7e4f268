// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package auth implements account signup, login and password reset by
// emailed one-time code.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User with validated fields and a fresh ULID
//   - NewOtpRecord - creates an OtpRecord with a validated code and expiry
//
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
//   - Service - signup, login, request-reset and verify-reset
//   - Sweeper - periodic removal of expired reset codes
//
// Collaborators (repositories, hasher, token issuer, mailer) are injected
// through NewService, which rejects nil dependencies.
package auth
