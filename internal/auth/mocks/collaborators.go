// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/passgate/passgate/internal/auth"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (_m *MockPasswordHasher) Hash(password string) (string, error) {
	ret := _m.Called(password)
	return ret.String(0), ret.Error(1)
}

// Verify provides a mock function.
func (_m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	ret := _m.Called(password, hash)
	return ret.Bool(0), ret.Error(1)
}

// NeedsUpgrade provides a mock function.
func (_m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	ret := _m.Called(hash)
	return ret.Bool(0)
}

// MockSessionTokenIssuer is a mock of auth.SessionTokenIssuer.
type MockSessionTokenIssuer struct {
	mock.Mock
}

// NewMockSessionTokenIssuer creates a mock that asserts its expectations on cleanup.
func NewMockSessionTokenIssuer(t testingT) *MockSessionTokenIssuer {
	m := &MockSessionTokenIssuer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Issue provides a mock function.
func (_m *MockSessionTokenIssuer) Issue(userID ulid.ULID, email string) (string, time.Time, error) {
	ret := _m.Called(userID, email)
	var r1 time.Time
	if v := ret.Get(1); v != nil {
		r1 = v.(time.Time)
	}
	return ret.String(0), r1, ret.Error(2)
}

// MockMailer is a mock of auth.Mailer.
type MockMailer struct {
	mock.Mock
}

// NewMockMailer creates a mock that asserts its expectations on cleanup.
func NewMockMailer(t testingT) *MockMailer {
	m := &MockMailer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Send provides a mock function.
func (_m *MockMailer) Send(ctx context.Context, msg auth.Message) error {
	ret := _m.Called(ctx, msg)
	return ret.Error(0)
}

var (
	_ auth.PasswordHasher     = (*MockPasswordHasher)(nil)
	_ auth.SessionTokenIssuer = (*MockSessionTokenIssuer)(nil)
	_ auth.Mailer             = (*MockMailer)(nil)
)
