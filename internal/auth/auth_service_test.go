// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/auth/mocks"
	"github.com/passgate/passgate/pkg/errutil"
)

type serviceMocks struct {
	users  *mocks.MockUserRepository
	otps   *mocks.MockOtpRepository
	hasher *mocks.MockPasswordHasher
	tokens *mocks.MockSessionTokenIssuer
	mailer *mocks.MockMailer
}

func newTestService(t *testing.T, opts ...auth.Option) (*auth.Service, serviceMocks) {
	t.Helper()
	m := serviceMocks{
		users:  mocks.NewMockUserRepository(t),
		otps:   mocks.NewMockOtpRepository(t),
		hasher: mocks.NewMockPasswordHasher(t),
		tokens: mocks.NewMockSessionTokenIssuer(t),
		mailer: mocks.NewMockMailer(t),
	}
	svc, err := auth.NewService(m.users, m.otps, m.hasher, m.tokens, m.mailer, opts...)
	require.NoError(t, err)
	return svc, m
}

func TestNewService_NilDependencies(t *testing.T) {
	users := mocks.NewMockUserRepository(t)
	otps := mocks.NewMockOtpRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	tokens := mocks.NewMockSessionTokenIssuer(t)
	mailer := mocks.NewMockMailer(t)

	tests := []struct {
		name        string
		build       func() (*auth.Service, error)
		expectError string
	}{
		{"nil users repository", func() (*auth.Service, error) {
			return auth.NewService(nil, otps, hasher, tokens, mailer)
		}, "users repository is required"},
		{"nil otp repository", func() (*auth.Service, error) {
			return auth.NewService(users, nil, hasher, tokens, mailer)
		}, "otp repository is required"},
		{"nil password hasher", func() (*auth.Service, error) {
			return auth.NewService(users, otps, nil, tokens, mailer)
		}, "password hasher is required"},
		{"nil token issuer", func() (*auth.Service, error) {
			return auth.NewService(users, otps, hasher, nil, mailer)
		}, "token issuer is required"},
		{"nil mailer", func() (*auth.Service, error) {
			return auth.NewService(users, otps, hasher, tokens, nil)
		}, "mailer is required"},
		{"nil logger", func() (*auth.Service, error) {
			return auth.NewService(users, otps, hasher, tokens, mailer, auth.WithLogger(nil))
		}, "logger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := tt.build()
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestService_Signup(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user and never returns the plaintext password", func(t *testing.T) {
		svc, m := newTestService(t)

		m.users.On("GetByEmail", ctx, "a@x.com").Return(nil, auth.ErrNotFound)
		m.hasher.On("Hash", "pw123").Return("$argon2id$hashed", nil)
		m.users.On("Create", ctx, mock.MatchedBy(func(u *auth.User) bool {
			return u.Name == "Ann" && u.Email == "a@x.com" && u.PasswordHash == "$argon2id$hashed"
		})).Return(nil)

		user, err := svc.Signup(ctx, "Ann", "a@x.com", "pw123")
		require.NoError(t, err)
		assert.NotEqual(t, ulid.ULID{}, user.ID)
		assert.Equal(t, "Ann", user.Name)
		assert.Equal(t, "a@x.com", user.Email)
		assert.NotEqual(t, "pw123", user.PasswordHash)
	})

	t.Run("missing fields", func(t *testing.T) {
		cases := [][3]string{
			{"", "a@x.com", "pw"},
			{"Ann", "", "pw"},
			{"Ann", "a@x.com", ""},
		}
		for _, c := range cases {
			svc, _ := newTestService(t)
			user, err := svc.Signup(ctx, c[0], c[1], c[2])
			assert.Nil(t, user)
			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrValidation)
			errutil.AssertErrorCode(t, err, auth.CodeValidation)
		}
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		svc, m := newTestService(t)
		existing, err := auth.NewUser("Ann", "a@x.com", "$argon2id$h")
		require.NoError(t, err)

		m.users.On("GetByEmail", ctx, "a@x.com").Return(existing, nil)

		user, err := svc.Signup(ctx, "Ann2", "a@x.com", "other")
		assert.Nil(t, user)
		assert.ErrorIs(t, err, auth.ErrConflict)
		assert.Equal(t, auth.KindConflict, auth.KindOf(err))
		m.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("concurrent duplicate caught by store constraint", func(t *testing.T) {
		svc, m := newTestService(t)

		m.users.On("GetByEmail", ctx, "a@x.com").Return(nil, auth.ErrNotFound)
		m.hasher.On("Hash", "pw").Return("$argon2id$h", nil)
		m.users.On("Create", ctx, mock.AnythingOfType("*auth.User")).Return(auth.ErrConflict)

		_, err := svc.Signup(ctx, "Ann", "a@x.com", "pw")
		assert.ErrorIs(t, err, auth.ErrConflict)
	})

	t.Run("store failure is a server error", func(t *testing.T) {
		svc, m := newTestService(t)

		m.users.On("GetByEmail", ctx, "a@x.com").Return(nil, errors.New("connection refused"))

		_, err := svc.Signup(ctx, "Ann", "a@x.com", "pw")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SIGNUP_FAILED")
		assert.Equal(t, auth.KindServer, auth.KindOf(err))
	})

	t.Run("hash failure is a server error", func(t *testing.T) {
		svc, m := newTestService(t)

		m.users.On("GetByEmail", ctx, "a@x.com").Return(nil, auth.ErrNotFound)
		m.hasher.On("Hash", "pw").Return("", errors.New("entropy exhausted"))

		_, err := svc.Signup(ctx, "Ann", "a@x.com", "pw")
		errutil.AssertErrorCode(t, err, "SIGNUP_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "hash password")
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	expiresAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

	newUser := func(t *testing.T) *auth.User {
		t.Helper()
		u, err := auth.NewUser("Ann", "a@x.com", "$argon2id$v=19$m=65536,t=1,p=4$salt$hash")
		require.NoError(t, err)
		return u
	}

	t.Run("successful login issues token", func(t *testing.T) {
		svc, m := newTestService(t)
		user := newUser(t)

		m.users.On("GetByEmail", ctx, "a@x.com").Return(user, nil)
		m.hasher.On("Verify", "pw123", user.PasswordHash).Return(true, nil)
		m.hasher.On("NeedsUpgrade", user.PasswordHash).Return(false)
		m.tokens.On("Issue", user.ID, "a@x.com").Return("signed.jwt.token", expiresAt, nil)

		res, err := svc.Login(ctx, "a@x.com", "pw123")
		require.NoError(t, err)
		assert.Equal(t, "signed.jwt.token", res.Token)
		assert.Equal(t, expiresAt, res.ExpiresAt)
		assert.Equal(t, user.ID, res.User.ID)
	})

	t.Run("login fails for non-existent user with constant time", func(t *testing.T) {
		svc, m := newTestService(t)

		m.users.On("GetByEmail", ctx, "nobody@x.com").Return(nil, auth.ErrNotFound)
		// Verify is still called with dummy hash to prevent timing attacks
		m.hasher.On("Verify", "pw123", mock.AnythingOfType("string")).Return(false, nil)

		res, err := svc.Login(ctx, "nobody@x.com", "pw123")
		assert.Nil(t, res)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		svcA, mA := newTestService(t)
		user := newUser(t)
		mA.users.On("GetByEmail", ctx, "a@x.com").Return(user, nil)
		mA.hasher.On("Verify", "pw124", user.PasswordHash).Return(false, nil)
		_, wrongPw := svcA.Login(ctx, "a@x.com", "pw124")

		svcB, mB := newTestService(t)
		mB.users.On("GetByEmail", ctx, "b@x.com").Return(nil, auth.ErrNotFound)
		mB.hasher.On("Verify", "pw124", mock.AnythingOfType("string")).Return(false, nil)
		_, unknown := svcB.Login(ctx, "b@x.com", "pw124")

		require.Error(t, wrongPw)
		require.Error(t, unknown)
		assert.Equal(t, wrongPw.Error(), unknown.Error())
		assert.Equal(t, auth.KindAuthentication, auth.KindOf(wrongPw))
		assert.Equal(t, auth.KindAuthentication, auth.KindOf(unknown))
	})

	t.Run("dummy hash verify error still reads as invalid credentials", func(t *testing.T) {
		svc, m := newTestService(t)

		m.users.On("GetByEmail", ctx, "nobody@x.com").Return(nil, auth.ErrNotFound)
		m.hasher.On("Verify", "pw", mock.AnythingOfType("string")).Return(false, errors.New("bad hash"))

		_, err := svc.Login(ctx, "nobody@x.com", "pw")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Login(ctx, "", "pw")
		assert.ErrorIs(t, err, auth.ErrValidation)

		_, err = svc.Login(ctx, "a@x.com", "")
		assert.ErrorIs(t, err, auth.ErrValidation)
	})

	t.Run("legacy hash is upgraded on login", func(t *testing.T) {
		svc, m := newTestService(t)
		user := newUser(t)
		user.PasswordHash = "$2a$10$legacy"

		m.users.On("GetByEmail", ctx, "a@x.com").Return(user, nil)
		m.hasher.On("Verify", "pw123", "$2a$10$legacy").Return(true, nil)
		m.hasher.On("NeedsUpgrade", "$2a$10$legacy").Return(true)
		m.hasher.On("Hash", "pw123").Return("$argon2id$new", nil)
		m.users.On("UpdatePassword", ctx, "a@x.com", "$argon2id$new").Return(nil)
		m.tokens.On("Issue", user.ID, "a@x.com").Return("tok", expiresAt, nil)

		res, err := svc.Login(ctx, "a@x.com", "pw123")
		require.NoError(t, err)
		assert.Equal(t, "$argon2id$new", res.User.PasswordHash)
	})

	t.Run("failed hash upgrade does not fail login", func(t *testing.T) {
		svc, m := newTestService(t)
		user := newUser(t)
		user.PasswordHash = "$2a$10$legacy"

		m.users.On("GetByEmail", ctx, "a@x.com").Return(user, nil)
		m.hasher.On("Verify", "pw123", "$2a$10$legacy").Return(true, nil)
		m.hasher.On("NeedsUpgrade", "$2a$10$legacy").Return(true)
		m.hasher.On("Hash", "pw123").Return("$argon2id$new", nil)
		m.users.On("UpdatePassword", ctx, "a@x.com", "$argon2id$new").Return(errors.New("db down"))
		m.tokens.On("Issue", user.ID, "a@x.com").Return("tok", expiresAt, nil)

		res, err := svc.Login(ctx, "a@x.com", "pw123")
		require.NoError(t, err)
		assert.Equal(t, "tok", res.Token)
		assert.Equal(t, "$2a$10$legacy", res.User.PasswordHash)
	})

	t.Run("token failure is a server error", func(t *testing.T) {
		svc, m := newTestService(t)
		user := newUser(t)

		m.users.On("GetByEmail", ctx, "a@x.com").Return(user, nil)
		m.hasher.On("Verify", "pw123", user.PasswordHash).Return(true, nil)
		m.hasher.On("NeedsUpgrade", user.PasswordHash).Return(false)
		m.tokens.On("Issue", user.ID, "a@x.com").Return("", nil, errors.New("sign failed"))

		_, err := svc.Login(ctx, "a@x.com", "pw123")
		errutil.AssertErrorCode(t, err, "LOGIN_FAILED")
		assert.Equal(t, auth.KindServer, auth.KindOf(err))
	})

	t.Run("repository failure is a server error", func(t *testing.T) {
		svc, m := newTestService(t)

		m.users.On("GetByEmail", ctx, "a@x.com").Return(nil, errors.New("timeout"))

		_, err := svc.Login(ctx, "a@x.com", "pw123")
		errutil.AssertErrorCode(t, err, "LOGIN_FAILED")
	})
}

func TestService_CurrentUser(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the user", func(t *testing.T) {
		svc, m := newTestService(t)
		user, err := auth.NewUser("Ann", "a@x.com", "h")
		require.NoError(t, err)
		m.users.On("GetByID", ctx, user.ID).Return(user, nil)

		got, err := svc.CurrentUser(ctx, user.ID.String())
		require.NoError(t, err)
		assert.Equal(t, user, got)
	})

	t.Run("malformed id", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.CurrentUser(ctx, "not-a-ulid")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("deleted account", func(t *testing.T) {
		svc, m := newTestService(t)
		id := ulid.Make()
		m.users.On("GetByID", ctx, id).Return(nil, auth.ErrNotFound)

		_, err := svc.CurrentUser(ctx, id.String())
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}
