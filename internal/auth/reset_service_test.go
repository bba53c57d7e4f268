// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/pkg/errutil"
)

var resetNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time { return func() time.Time { return resetNow } }

func fixedCode(code string) func() (string, error) {
	return func() (string, error) { return code, nil }
}

func TestService_RequestReset(t *testing.T) {
	ctx := context.Background()

	t.Run("registered email gets one record and one email", func(t *testing.T) {
		svc, m := newTestService(t, auth.WithClock(fixedClock()), auth.WithCodeGenerator(fixedCode("004217")))
		user, err := auth.NewUser("Ann", "a@x.com", "h")
		require.NoError(t, err)

		m.users.On("GetByEmail", ctx, "a@x.com").Return(user, nil)
		m.otps.On("Create", ctx, mock.MatchedBy(func(r *auth.OtpRecord) bool {
			return r.Email == "a@x.com" &&
				r.Code == "004217" &&
				r.ExpiresAt.Equal(resetNow.Add(10*time.Minute))
		})).Return(nil).Once()
		m.mailer.On("Send", ctx, auth.Message{
			To:      "a@x.com",
			Subject: "Your Password Reset OTP",
			Text:    "Your OTP for password reset is: 004217. It will expire in 10 minutes.",
			HTML:    "<p>Your OTP for password reset is: <strong>004217</strong>. It will expire in 10 minutes.</p>",
		}).Return(nil).Once()

		require.NoError(t, svc.RequestReset(ctx, "a@x.com"))
	})

	t.Run("unknown email creates nothing and sends nothing", func(t *testing.T) {
		svc, m := newTestService(t)

		m.users.On("GetByEmail", ctx, "a@x.com").Return(nil, auth.ErrNotFound)

		require.NoError(t, svc.RequestReset(ctx, "a@x.com"))
		m.otps.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		m.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("empty email behaves like unknown email", func(t *testing.T) {
		svc, m := newTestService(t)

		require.NoError(t, svc.RequestReset(ctx, ""))
		m.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})

	t.Run("store failure is a server error", func(t *testing.T) {
		svc, m := newTestService(t, auth.WithClock(fixedClock()))
		user, err := auth.NewUser("Ann", "a@x.com", "h")
		require.NoError(t, err)

		m.users.On("GetByEmail", ctx, "a@x.com").Return(user, nil)
		m.otps.On("Create", ctx, mock.AnythingOfType("*auth.OtpRecord")).Return(errors.New("disk full"))

		err = svc.RequestReset(ctx, "a@x.com")
		errutil.AssertErrorCode(t, err, "RESET_REQUEST_FAILED")
		assert.Equal(t, auth.KindServer, auth.KindOf(err))
		m.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("mail failure is a server error", func(t *testing.T) {
		svc, m := newTestService(t, auth.WithClock(fixedClock()))
		user, err := auth.NewUser("Ann", "a@x.com", "h")
		require.NoError(t, err)

		m.users.On("GetByEmail", ctx, "a@x.com").Return(user, nil)
		m.otps.On("Create", ctx, mock.AnythingOfType("*auth.OtpRecord")).Return(nil)
		m.mailer.On("Send", ctx, mock.AnythingOfType("auth.Message")).Return(errors.New("smtp: 535 auth failed"))

		err = svc.RequestReset(ctx, "a@x.com")
		errutil.AssertErrorCode(t, err, "RESET_REQUEST_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "send reset email")
	})

	t.Run("lookup failure is a server error", func(t *testing.T) {
		svc, m := newTestService(t)

		m.users.On("GetByEmail", ctx, "a@x.com").Return(nil, errors.New("timeout"))

		err := svc.RequestReset(ctx, "a@x.com")
		errutil.AssertErrorCode(t, err, "RESET_REQUEST_FAILED")
	})
}

func TestService_VerifyReset(t *testing.T) {
	ctx := context.Background()

	newRecord := func(t *testing.T) *auth.OtpRecord {
		t.Helper()
		rec, err := auth.NewOtpRecord("a@x.com", "123456", resetNow.Add(-time.Minute), auth.OTPExpiry)
		require.NoError(t, err)
		return rec
	}

	t.Run("valid code resets password", func(t *testing.T) {
		svc, m := newTestService(t, auth.WithClock(fixedClock()))
		rec := newRecord(t)

		m.otps.On("FindLatestValid", ctx, "a@x.com", "123456", resetNow).Return(rec, nil)
		m.hasher.On("Hash", "newpw").Return("$argon2id$new", nil)
		m.otps.On("Consume", ctx, rec, "$argon2id$new", resetNow).Return(nil)

		require.NoError(t, svc.VerifyReset(ctx, "a@x.com", "123456", "newpw"))
	})

	t.Run("no matching record", func(t *testing.T) {
		svc, m := newTestService(t, auth.WithClock(fixedClock()))

		m.otps.On("FindLatestValid", ctx, "a@x.com", "000000", resetNow).Return(nil, auth.ErrNotFound)

		err := svc.VerifyReset(ctx, "a@x.com", "000000", "newpw")
		assert.ErrorIs(t, err, auth.ErrInvalidOTP)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidOTP)
		m.hasher.AssertNotCalled(t, "Hash", mock.Anything)
	})

	t.Run("record consumed concurrently", func(t *testing.T) {
		svc, m := newTestService(t, auth.WithClock(fixedClock()))
		rec := newRecord(t)

		m.otps.On("FindLatestValid", ctx, "a@x.com", "123456", resetNow).Return(rec, nil)
		m.hasher.On("Hash", "newpw").Return("$argon2id$new", nil)
		m.otps.On("Consume", ctx, rec, "$argon2id$new", resetNow).Return(auth.ErrInvalidOTP)

		err := svc.VerifyReset(ctx, "a@x.com", "123456", "newpw")
		assert.ErrorIs(t, err, auth.ErrInvalidOTP)
	})

	t.Run("user vanished before consumption", func(t *testing.T) {
		svc, m := newTestService(t, auth.WithClock(fixedClock()))
		rec := newRecord(t)

		m.otps.On("FindLatestValid", ctx, "a@x.com", "123456", resetNow).Return(rec, nil)
		m.hasher.On("Hash", "newpw").Return("$argon2id$new", nil)
		m.otps.On("Consume", ctx, rec, "$argon2id$new", resetNow).Return(auth.ErrNotFound)

		err := svc.VerifyReset(ctx, "a@x.com", "123456", "newpw")
		assert.ErrorIs(t, err, auth.ErrInvalidOTP)
	})

	t.Run("malformed code never reaches the store", func(t *testing.T) {
		svc, _ := newTestService(t)

		err := svc.VerifyReset(ctx, "a@x.com", "12ab56", "newpw")
		assert.ErrorIs(t, err, auth.ErrInvalidOTP)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc, _ := newTestService(t)

		for _, args := range [][3]string{{"", "123456", "pw"}, {"a@x.com", "", "pw"}, {"a@x.com", "123456", ""}} {
			err := svc.VerifyReset(ctx, args[0], args[1], args[2])
			assert.ErrorIs(t, err, auth.ErrValidation)
		}
	})

	t.Run("store failure is a server error", func(t *testing.T) {
		svc, m := newTestService(t, auth.WithClock(fixedClock()))
		rec := newRecord(t)

		m.otps.On("FindLatestValid", ctx, "a@x.com", "123456", resetNow).Return(rec, nil)
		m.hasher.On("Hash", "newpw").Return("$argon2id$new", nil)
		m.otps.On("Consume", ctx, rec, "$argon2id$new", resetNow).Return(errors.New("serialization failure"))

		err := svc.VerifyReset(ctx, "a@x.com", "123456", "newpw")
		errutil.AssertErrorCode(t, err, "RESET_VERIFY_FAILED")
		assert.Equal(t, auth.KindServer, auth.KindOf(err))
	})
}
