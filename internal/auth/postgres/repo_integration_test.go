//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/postgres"
)

func createUser(t *testing.T, email string) *auth.User {
	t.Helper()
	ctx := context.Background()
	user, err := auth.NewUser("Test User", email, "hash-v1")
	require.NoError(t, err)
	user.CreatedAt = user.CreatedAt.Truncate(time.Microsecond)
	user.UpdatedAt = user.CreatedAt
	require.NoError(t, postgres.NewUserRepository(testPool).Create(ctx, user))
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM users WHERE id = $1`, user.ID.String())
		_, _ = testPool.Exec(ctx, `DELETE FROM otps WHERE email = $1`, email)
	})
	return user
}

func TestUserRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	user := createUser(t, "integration@example.com")

	t.Run("round trips by email and id", func(t *testing.T) {
		byEmail, err := repo.GetByEmail(ctx, user.Email)
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)
		assert.Equal(t, user.Name, byEmail.Name)

		byID, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, byID.Email)
	})

	t.Run("email lookup is case sensitive", func(t *testing.T) {
		_, err := repo.GetByEmail(ctx, "INTEGRATION@example.com")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		dup, err := auth.NewUser("Other", user.Email, "hash")
		require.NoError(t, err)
		err = repo.Create(ctx, dup)
		assert.ErrorIs(t, err, auth.ErrConflict)
	})

	t.Run("updates password", func(t *testing.T) {
		require.NoError(t, repo.UpdatePassword(ctx, user.Email, "hash-v2"))
		got, err := repo.GetByEmail(ctx, user.Email)
		require.NoError(t, err)
		assert.Equal(t, "hash-v2", got.PasswordHash)
	})
}

func TestOtpRepository_Integration(t *testing.T) {
	ctx := context.Background()
	users := postgres.NewUserRepository(testPool)
	otps := postgres.NewOtpRepository(testPool)
	user := createUser(t, "otp@example.com")
	now := time.Now().UTC().Truncate(time.Microsecond)

	older, err := auth.NewOtpRecord(user.Email, "111111", now.Add(-time.Minute), 10*time.Minute)
	require.NoError(t, err)
	newer, err := auth.NewOtpRecord(user.Email, "111111", now, 10*time.Minute)
	require.NoError(t, err)
	expired, err := auth.NewOtpRecord(user.Email, "222222", now.Add(-time.Hour), 10*time.Minute)
	require.NoError(t, err)
	for _, rec := range []*auth.OtpRecord{older, newer, expired} {
		require.NoError(t, otps.Create(ctx, rec))
	}

	t.Run("finds newest valid record", func(t *testing.T) {
		got, err := otps.FindLatestValid(ctx, user.Email, "111111", now)
		require.NoError(t, err)
		assert.Equal(t, newer.ID, got.ID)
	})

	t.Run("ignores expired records", func(t *testing.T) {
		_, err := otps.FindLatestValid(ctx, user.Email, "222222", now)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("concurrent consume succeeds once", func(t *testing.T) {
		const attempts = 5
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if otps.Consume(ctx, newer, "hash-reset", now) == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, successes)

		got, err := users.GetByEmail(ctx, user.Email)
		require.NoError(t, err)
		assert.Equal(t, "hash-reset", got.PasswordHash)

		err = otps.Consume(ctx, newer, "hash-again", now)
		assert.ErrorIs(t, err, auth.ErrInvalidOTP)
	})

	t.Run("consume for unknown user leaves the code", func(t *testing.T) {
		orphan, err := auth.NewOtpRecord("ghost@example.com", "333333", now, 10*time.Minute)
		require.NoError(t, err)
		require.NoError(t, otps.Create(ctx, orphan))
		t.Cleanup(func() { _, _ = testPool.Exec(ctx, `DELETE FROM otps WHERE id = $1`, orphan.ID.String()) })

		err = otps.Consume(ctx, orphan, "hash", now)
		assert.ErrorIs(t, err, auth.ErrNotFound)

		_, err = otps.FindLatestValid(ctx, orphan.Email, orphan.Code, now)
		assert.NoError(t, err, "rolled back delete keeps the code")
	})

	t.Run("sweeps expired records", func(t *testing.T) {
		n, err := otps.DeleteExpiredBefore(ctx, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		var remaining int
		require.NoError(t, testPool.QueryRow(ctx,
			`SELECT count(*) FROM otps WHERE id = $1`, expired.ID.String()).Scan(&remaining))
		assert.Zero(t, remaining)
	})
}
