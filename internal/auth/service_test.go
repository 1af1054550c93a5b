// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/store/memory"
	"github.com/taskforge/taskforge/pkg/errutil"
)

type sessionFixture struct {
	store    *memory.Store
	manager  *auth.SessionManager
	notifier *mockNotifier
	metrics  *auth.Metrics
	now      time.Time
}

func newSessionFixture(t *testing.T, opts ...auth.Option) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		store:    memory.New(),
		notifier: new(mockNotifier),
		metrics:  auth.NewMetrics(prometheus.NewRegistry()),
		now:      time.Now(),
	}
	f.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	clock := func() time.Time { return f.now }
	issuer := newIssuer(t, auth.WithTokenClock(clock))
	all := append([]auth.Option{
		auth.WithNotifier(f.notifier),
		auth.WithMetrics(f.metrics),
		auth.WithClock(clock),
	}, opts...)
	manager, err := auth.NewSessionManager(f.store.Users(), f.store.Tokens(), newFastHasher(t), issuer, all...)
	require.NoError(t, err)
	f.manager = manager
	return f
}

func (f *sessionFixture) register(t *testing.T, email string) (auth.PublicUser, string) {
	t.Helper()
	user, token, err := f.manager.Register(context.Background(), auth.RegisterInput{
		Name: "Test User", Email: email, Password: "Secret123", Age: 30,
	})
	require.NoError(t, err)
	return user, token
}

func TestNewSessionManager_NilDependencies(t *testing.T) {
	s := memory.New()
	hasher := newFastHasher(t)
	issuer := newIssuer(t)

	tests := []struct {
		name   string
		users  auth.UserRepository
		tokens auth.TokenRepository
		hasher auth.PasswordHasher
		issuer auth.TokenIssuer
	}{
		{"nil users", nil, s.Tokens(), hasher, issuer},
		{"nil tokens", s.Users(), nil, hasher, issuer},
		{"nil hasher", s.Users(), s.Tokens(), nil, issuer},
		{"nil issuer", s.Users(), s.Tokens(), hasher, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewSessionManager(tt.users, tt.tokens, tt.hasher, tt.issuer)
			assert.Error(t, err)
		})
	}
}

func TestSessionManager_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)

	user, token, err := f.manager.Register(ctx, auth.RegisterInput{
		Name: "A", Email: "a@x.com", Password: "Secret123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	raw, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "passwordHash")
	assert.NotContains(t, string(raw), "argon2id")

	id, err := f.manager.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.User.ID.String())
	assert.Equal(t, token, id.Token)

	require.NoError(t, f.manager.Logout(ctx, id))

	_, err = f.manager.Authenticate(ctx, token)
	errutil.AssertErrorCode(t, err, errutil.CodeUnauthenticated)
}

func TestSessionManager_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes email and notifies", func(t *testing.T) {
		f := newSessionFixture(t)
		user, _ := f.register(t, "  Ada@Example.com ")
		assert.Equal(t, "ada@example.com", user.Email)
		f.notifier.AssertCalled(t, "Notify", mock.Anything, "ada@example.com", mock.Anything, mock.Anything)
		assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.RegistrationsTotal), 0)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		f := newSessionFixture(t)
		f.register(t, "ada@example.com")
		_, _, err := f.manager.Register(ctx, auth.RegisterInput{Name: "Other", Email: "ADA@example.com", Password: "Secret123"})
		errutil.AssertErrorCode(t, err, errutil.CodeEmailTaken)
	})

	t.Run("invalid input is a validation failure", func(t *testing.T) {
		f := newSessionFixture(t)
		_, _, err := f.manager.Register(ctx, auth.RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "short"})
		errutil.AssertErrorCode(t, err, errutil.CodeValidationFailed)
		f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("notification failure does not fail registration", func(t *testing.T) {
		f := newSessionFixture(t)
		f.notifier.ExpectedCalls = nil
		f.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

		_, token := f.register(t, "ada@example.com")
		_, err := f.manager.Authenticate(ctx, token)
		require.NoError(t, err)
	})
}

func TestSessionManager_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("issues an additional token", func(t *testing.T) {
		f := newSessionFixture(t)
		_, first := f.register(t, "ada@example.com")

		user, second, err := f.manager.Login(ctx, "ADA@example.com", "Secret123")
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", user.Email)
		assert.NotEqual(t, first, second)

		for _, tok := range []string{first, second} {
			_, err := f.manager.Authenticate(ctx, tok)
			require.NoError(t, err)
		}
		assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.LoginsTotal.WithLabelValues(auth.LoginSuccess)), 0)
	})

	t.Run("unknown email and wrong password look the same", func(t *testing.T) {
		f := newSessionFixture(t)
		f.register(t, "ada@example.com")

		_, _, wrong := f.manager.Login(ctx, "ada@example.com", "Wrong1234")
		_, _, unknown := f.manager.Login(ctx, "ghost@example.com", "Secret123")

		errutil.AssertErrorCode(t, wrong, errutil.CodeInvalidCredentials)
		errutil.AssertErrorCode(t, unknown, errutil.CodeInvalidCredentials)
		assert.Equal(t, wrong.Error(), unknown.Error())
		assert.InDelta(t, 2, testutil.ToFloat64(f.metrics.LoginsTotal.WithLabelValues(auth.LoginInvalid)), 0)
	})

	t.Run("locks after repeated failures", func(t *testing.T) {
		f := newSessionFixture(t)
		f.register(t, "ada@example.com")

		for i := 0; i < auth.LockoutThreshold; i++ {
			_, _, err := f.manager.Login(ctx, "ada@example.com", "Wrong1234")
			errutil.AssertErrorCode(t, err, errutil.CodeInvalidCredentials)
		}

		_, _, err := f.manager.Login(ctx, "ada@example.com", "Secret123")
		errutil.AssertErrorCode(t, err, errutil.CodeAccountLocked)

		f.now = f.now.Add(auth.LockoutDuration + time.Second)
		_, _, err = f.manager.Login(ctx, "ada@example.com", "Secret123")
		require.NoError(t, err)
	})
}

func TestSessionManager_Logout(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	_, a := f.register(t, "ada@example.com")
	_, b, err := f.manager.Login(ctx, "ada@example.com", "Secret123")
	require.NoError(t, err)

	idA, err := f.manager.Authenticate(ctx, a)
	require.NoError(t, err)
	require.NoError(t, f.manager.Logout(ctx, idA))

	_, err = f.manager.Authenticate(ctx, a)
	errutil.AssertErrorCode(t, err, errutil.CodeUnauthenticated)
	_, err = f.manager.Authenticate(ctx, b)
	require.NoError(t, err)

	// Idempotent.
	require.NoError(t, f.manager.Logout(ctx, idA))

	active, err := f.manager.Credentials().ActiveTokens(ctx, idA.User.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, auth.HashToken(b), active[0].TokenHash)
}

func TestSessionManager_LogoutAll(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	_, a := f.register(t, "ada@example.com")
	_, b, err := f.manager.Login(ctx, "ada@example.com", "Secret123")
	require.NoError(t, err)

	id, err := f.manager.Authenticate(ctx, b)
	require.NoError(t, err)
	require.NoError(t, f.manager.LogoutAll(ctx, id))

	for _, tok := range []string{a, b} {
		_, err := f.manager.Authenticate(ctx, tok)
		errutil.AssertErrorCode(t, err, errutil.CodeUnauthenticated)
	}
}

func TestSessionManager_ConcurrentLogins(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	f.register(t, "ada@example.com")

	const clients = 8
	tokens := make([]string, clients)
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, tok, err := f.manager.Login(ctx, "ada@example.com", "Secret123")
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	var userID ulid.ULID
	for _, tok := range tokens {
		id, err := f.manager.Authenticate(ctx, tok)
		require.NoError(t, err)
		userID = id.User.ID
	}

	active, err := f.manager.Credentials().ActiveTokens(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, active, clients+1)
}

func TestSessionManager_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("expired token is rejected", func(t *testing.T) {
		f := newSessionFixture(t)
		_, token := f.register(t, "ada@example.com")
		f.now = f.now.Add(2 * time.Hour)

		_, err := f.manager.Authenticate(ctx, token)
		errutil.AssertErrorCode(t, err, errutil.CodeUnauthenticated)
	})

	t.Run("forged token is rejected", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.manager.Authenticate(ctx, "forged.token.value")
		errutil.AssertErrorCode(t, err, errutil.CodeUnauthenticated)
	})

	t.Run("valid signature but never stored is rejected", func(t *testing.T) {
		f := newSessionFixture(t)
		user, _ := f.register(t, "ada@example.com")
		id, err := ulid.Parse(user.ID)
		require.NoError(t, err)

		stray, err := newIssuer(t, auth.WithTokenClock(func() time.Time { return f.now })).Mint(id)
		require.NoError(t, err)

		_, err = f.manager.Authenticate(ctx, stray.Token)
		errutil.AssertErrorCode(t, err, errutil.CodeUnauthenticated)
	})

	t.Run("deleted user is rejected", func(t *testing.T) {
		f := newSessionFixture(t)
		_, token := f.register(t, "ada@example.com")
		id, err := f.manager.Authenticate(ctx, token)
		require.NoError(t, err)

		_, err = f.manager.DeleteAccount(ctx, id)
		require.NoError(t, err)

		_, err = f.manager.Authenticate(ctx, token)
		errutil.AssertErrorCode(t, err, errutil.CodeUnauthenticated)
	})
}

func TestSessionManager_UpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("changes fields and password", func(t *testing.T) {
		f := newSessionFixture(t)
		_, token := f.register(t, "ada@example.com")
		id, err := f.manager.Authenticate(ctx, token)
		require.NoError(t, err)

		name := "Ada Lovelace"
		email := "Lovelace@Example.com"
		pw := "NewSecret1"
		user, err := f.manager.UpdateProfile(ctx, id, auth.ProfileUpdate{Name: &name, Email: &email, Password: &pw})
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", user.Name)
		assert.Equal(t, "lovelace@example.com", user.Email)

		_, _, err = f.manager.Login(ctx, "lovelace@example.com", "Secret123")
		errutil.AssertErrorCode(t, err, errutil.CodeInvalidCredentials)
		_, _, err = f.manager.Login(ctx, "lovelace@example.com", "NewSecret1")
		require.NoError(t, err)
	})

	t.Run("email conflict", func(t *testing.T) {
		f := newSessionFixture(t)
		f.register(t, "grace@example.com")
		_, token := f.register(t, "ada@example.com")
		id, err := f.manager.Authenticate(ctx, token)
		require.NoError(t, err)

		email := "grace@example.com"
		_, err = f.manager.UpdateProfile(ctx, id, auth.ProfileUpdate{Email: &email})
		errutil.AssertErrorCode(t, err, errutil.CodeEmailTaken)
	})

	t.Run("invalid field", func(t *testing.T) {
		f := newSessionFixture(t)
		_, token := f.register(t, "ada@example.com")
		id, err := f.manager.Authenticate(ctx, token)
		require.NoError(t, err)

		age := -1
		_, err = f.manager.UpdateProfile(ctx, id, auth.ProfileUpdate{Age: &age})
		errutil.AssertErrorCode(t, err, errutil.CodeValidationFailed)
	})

	t.Run("overlapping requests keep each other's fields", func(t *testing.T) {
		f := newSessionFixture(t)
		_, token := f.register(t, "ada@example.com")
		// Two requests authenticated with the same token each hold their own copy.
		first, err := f.manager.Authenticate(ctx, token)
		require.NoError(t, err)
		second, err := f.manager.Authenticate(ctx, token)
		require.NoError(t, err)

		pw := "NewSecret999"
		_, err = f.manager.UpdateProfile(ctx, first, auth.ProfileUpdate{Password: &pw})
		require.NoError(t, err)
		name := "Renamed"
		user, err := f.manager.UpdateProfile(ctx, second, auth.ProfileUpdate{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", user.Name)

		_, _, err = f.manager.Login(ctx, "ada@example.com", "Secret123")
		errutil.AssertErrorCode(t, err, errutil.CodeInvalidCredentials)
		loggedIn, _, err := f.manager.Login(ctx, "ada@example.com", "NewSecret999")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", loggedIn.Name)
	})
}

func TestSessionManager_Sessions(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	_, first := f.register(t, "ada@example.com")
	f.now = f.now.Add(time.Minute)
	_, second, err := f.manager.Login(ctx, "ada@example.com", "Secret123")
	require.NoError(t, err)

	id, err := f.manager.Authenticate(ctx, second)
	require.NoError(t, err)
	sessions, err := f.manager.Sessions(ctx, id)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.False(t, sessions[0].Current)
	assert.True(t, sessions[1].Current)
	assert.True(t, sessions[0].IssuedAt.Before(sessions[1].IssuedAt))

	firstID, err := f.manager.Authenticate(ctx, first)
	require.NoError(t, err)
	require.NoError(t, f.manager.Logout(ctx, firstID))
	sessions, err = f.manager.Sessions(ctx, id)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Current)

	_, err = f.manager.Sessions(ctx, nil)
	errutil.AssertErrorCode(t, err, errutil.CodeUnauthenticated)
}

func TestSessionManager_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	_, token := f.register(t, "ada@example.com")
	id, err := f.manager.Authenticate(ctx, token)
	require.NoError(t, err)

	user, err := f.manager.DeleteAccount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	f.notifier.AssertNumberOfCalls(t, "Notify", 2)

	_, _, err = f.manager.Login(ctx, "ada@example.com", "Secret123")
	errutil.AssertErrorCode(t, err, errutil.CodeInvalidCredentials)
}

func TestSessionManager_PruneExpired(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	f.register(t, "ada@example.com")
	f.register(t, "grace@example.com")

	n, err := f.manager.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = f.now.Add(2 * time.Hour)
	n, err = f.manager.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
