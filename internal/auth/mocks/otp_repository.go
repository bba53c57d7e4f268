// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/passgate/passgate/internal/auth"
)

// MockOtpRepository is a mock of auth.OtpRepository.
type MockOtpRepository struct {
	mock.Mock
}

// NewMockOtpRepository creates a mock that asserts its expectations on cleanup.
func NewMockOtpRepository(t testingT) *MockOtpRepository {
	m := &MockOtpRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create provides a mock function.
func (_m *MockOtpRepository) Create(ctx context.Context, rec *auth.OtpRecord) error {
	ret := _m.Called(ctx, rec)
	return ret.Error(0)
}

// FindLatestValid provides a mock function.
func (_m *MockOtpRepository) FindLatestValid(ctx context.Context, email, code string, now time.Time) (*auth.OtpRecord, error) {
	ret := _m.Called(ctx, email, code, now)
	var r0 *auth.OtpRecord
	if v := ret.Get(0); v != nil {
		r0 = v.(*auth.OtpRecord)
	}
	return r0, ret.Error(1)
}

// Consume provides a mock function.
func (_m *MockOtpRepository) Consume(ctx context.Context, rec *auth.OtpRecord, passwordHash string, now time.Time) error {
	ret := _m.Called(ctx, rec, passwordHash, now)
	return ret.Error(0)
}

// DeleteExpiredBefore provides a mock function.
func (_m *MockOtpRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ret := _m.Called(ctx, cutoff)
	var r0 int64
	if v := ret.Get(0); v != nil {
		r0 = v.(int64)
	}
	return r0, ret.Error(1)
}

var _ auth.OtpRepository = (*MockOtpRepository)(nil)
