// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package memstore keeps users and reset codes in process memory.
// It backs the "memory" database driver used for local runs and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/passgate/passgate/internal/auth"
)

// Store holds both tables behind one mutex so Consume can touch them
// atomically.
type Store struct {
	mu    sync.Mutex
	users map[string]auth.User // by email
	otps  map[ulid.ULID]auth.OtpRecord
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users: make(map[string]auth.User),
		otps:  make(map[ulid.ULID]auth.OtpRecord),
	}
}

// Users returns the auth.UserRepository view of s.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Otps returns the auth.OtpRepository view of s.
func (s *Store) Otps() *OtpRepository { return &OtpRepository{s: s} }

// UserRepository implements auth.UserRepository over a Store.
type UserRepository struct{ s *Store }

var _ auth.UserRepository = (*UserRepository)(nil)

// Create stores user, failing with auth.ErrConflict if the email is taken.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.Email]; ok {
		return oops.Code(auth.CodeConflict).With("email", user.Email).Wrap(auth.ErrConflict)
	}
	r.s.users[user.Email] = *user
	return nil
}

// GetByID returns a copy of the user with id.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
}

// GetByEmail returns a copy of the user with email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[email]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return &u, nil
}

// UpdatePassword replaces the stored hash of the user with email.
func (r *UserRepository) UpdatePassword(_ context.Context, email, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.setPasswordLocked(email, passwordHash, time.Now().UTC())
}

func (s *Store) setPasswordLocked(email, passwordHash string, now time.Time) error {
	u, ok := s.users[email]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = now
	s.users[email] = u
	return nil
}

// OtpRepository implements auth.OtpRepository over a Store.
type OtpRepository struct{ s *Store }

var _ auth.OtpRepository = (*OtpRepository)(nil)

// Create stores rec.
func (r *OtpRepository) Create(_ context.Context, rec *auth.OtpRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.otps[rec.ID] = *rec
	return nil
}

// FindLatestValid returns the newest unexpired record matching email and code.
func (r *OtpRepository) FindLatestValid(_ context.Context, email, code string, now time.Time) (*auth.OtpRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matches []auth.OtpRecord
	for _, rec := range r.s.otps {
		if rec.Email == email && rec.Code == code && rec.ValidAt(now) {
			matches = append(matches, rec)
		}
	}
	if len(matches) == 0 {
		return nil, oops.Code("OTP_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID.Compare(matches[j].ID) > 0
	})
	return &matches[0], nil
}

// Consume deletes rec and sets the new password hash as one step. A record
// already consumed or expired yields auth.ErrInvalidOTP.
func (r *OtpRepository) Consume(_ context.Context, rec *auth.OtpRecord, passwordHash string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.otps[rec.ID]
	if !ok || !stored.ValidAt(now) {
		return oops.Code(auth.CodeInvalidOTP).With("otp_id", rec.ID.String()).Wrap(auth.ErrInvalidOTP)
	}
	if err := r.s.setPasswordLocked(stored.Email, passwordHash, now.UTC()); err != nil {
		return err
	}
	delete(r.s.otps, rec.ID)
	return nil
}

// DeleteExpiredBefore removes records that expired before cutoff.
func (r *OtpRepository) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, rec := range r.s.otps {
		if rec.ExpiresAt.Before(cutoff) {
			delete(r.s.otps, id)
			n++
		}
	}
	return n, nil
}

// Ready always reports true.
func (s *Store) Ready() bool { return true }
