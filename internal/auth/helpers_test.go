// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/auth"
)

// testSecret is a 32-byte secret that meets MinTokenSecretLength.
var testSecret = []byte("taskforge-test-secret-32-bytes!!")

// fastParams keeps argon2 cheap in tests.
var fastParams = auth.Argon2Params{Time: 1, Memory: 64, Threads: 1, SaltLen: 16, KeyLen: 32}

func newFastHasher(t *testing.T) *auth.Argon2idHasher {
	t.Helper()
	h, err := auth.NewArgon2idHasher(fastParams)
	require.NoError(t, err)
	return h
}

func newIssuer(t *testing.T, opts ...auth.JWTOption) *auth.JWTIssuer {
	t.Helper()
	issuer, err := auth.NewJWTIssuer(testSecret, time.Hour, opts...)
	require.NoError(t, err)
	return issuer
}

// mockUserRepository is a mock for auth.UserRepository.
type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, id ulid.ULID, change auth.ProfileChange) (*auth.User, error) {
	args := m.Called(ctx, id, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *mockUserRepository) SwapPasswordHash(ctx context.Context, id ulid.ULID, oldHash, newHash string) (bool, error) {
	args := m.Called(ctx, id, oldHash, newHash)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) RecordLoginFailure(ctx context.Context, id ulid.ULID, policy auth.LockoutPolicy, now time.Time) (int, *time.Time, error) {
	args := m.Called(ctx, id, policy, now)
	until, _ := args.Get(1).(*time.Time)
	return args.Int(0), until, args.Error(2)
}

func (m *mockUserRepository) ResetLoginState(ctx context.Context, id ulid.ULID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// mockTokenRepository is a mock for auth.TokenRepository.
type mockTokenRepository struct {
	mock.Mock
}

func (m *mockTokenRepository) Append(ctx context.Context, userID ulid.ULID, record auth.TokenRecord) error {
	args := m.Called(ctx, userID, record)
	return args.Error(0)
}

func (m *mockTokenRepository) Remove(ctx context.Context, userID ulid.ULID, tokenHash string) error {
	args := m.Called(ctx, userID, tokenHash)
	return args.Error(0)
}

func (m *mockTokenRepository) Clear(ctx context.Context, userID ulid.ULID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockTokenRepository) Contains(ctx context.Context, userID ulid.ULID, tokenHash string, now time.Time) (bool, error) {
	args := m.Called(ctx, userID, tokenHash, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockTokenRepository) List(ctx context.Context, userID ulid.ULID) ([]auth.TokenRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]auth.TokenRecord), args.Error(1)
}

func (m *mockTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// mockNotifier is a mock for auth.Notifier.
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}
