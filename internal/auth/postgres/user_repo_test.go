// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/pkg/errutil"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func testUser() *auth.User {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &auth.User{
		ID:           ulid.Make(),
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: "$argon2id$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepository_Create(t *testing.T) {
	user := testUser()

	tests := []struct {
		name     string
		execErr  error
		wantCode string
		wantIs   error
	}{
		{name: "inserts user"},
		{
			name:     "duplicate email is a conflict",
			execErr:  &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"},
			wantCode: auth.CodeConflict,
			wantIs:   auth.ErrConflict,
		},
		{
			name:     "other database errors",
			execErr:  errors.New("connection reset"),
			wantCode: "USER_CREATE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			exp := mock.ExpectExec(`INSERT INTO users`).
				WithArgs(user.ID.String(), user.Name, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			err := NewUserRepository(mock).Create(context.Background(), user)
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	user := testUser()
	columns := []string{"id", "name", "email", "password_hash", "created_at", "updated_at"}

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs(user.Email).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(user.ID.String(), user.Name, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt))

		got, err := NewUserRepository(mock).GetByEmail(context.Background(), user.Email)
		require.NoError(t, err)
		assert.Equal(t, user, got)
	})

	t.Run("missing", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("nobody@example.com").
			WillReturnRows(pgxmock.NewRows(columns))

		_, err := NewUserRepository(mock).GetByEmail(context.Background(), "nobody@example.com")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	})

	t.Run("corrupt id", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs(user.Email).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("not-a-ulid", user.Name, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt))

		_, err := NewUserRepository(mock).GetByEmail(context.Background(), user.Email)
		errutil.AssertErrorCode(t, err, "USER_ID_INVALID")
	})
}

func TestUserRepository_GetByID(t *testing.T) {
	mock := newMockPool(t)
	id := ulid.Make()
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnError(errors.New("timeout"))

	_, err := NewUserRepository(mock).GetByID(context.Background(), id)
	errutil.AssertErrorCode(t, err, "USER_GET_FAILED")
	errutil.AssertErrorContext(t, err, "operation", "get user by id")
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	t.Run("updates", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs("ada@example.com", "newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewUserRepository(mock).UpdatePassword(context.Background(), "ada@example.com", "newhash"))
	})

	t.Run("unknown email", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs("ghost@example.com", "newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := NewUserRepository(mock).UpdatePassword(context.Background(), "ghost@example.com", "newhash")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
