// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/pkg/errutil"
)

// CredentialStore verifies credentials and maintains per-user token sets.
type CredentialStore struct {
	users  UserRepository
	tokens TokenRepository
	hasher PasswordHasher
	policy LockoutPolicy
	logger *slog.Logger
	now    func() time.Time

	// dummyHash is verified for unknown emails so both failure paths cost the same.
	dummyHash string
}

// NewCredentialStore creates a CredentialStore.
func NewCredentialStore(users UserRepository, tokens TokenRepository, hasher PasswordHasher, policy LockoutPolicy, logger *slog.Logger, now func() time.Time) (*CredentialStore, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}

	// Hashed with the live parameters so the dummy verify does the same work.
	dummy, err := hasher.Hash(ulid.Make().String())
	if err != nil {
		return nil, oops.Code("AUTH_DUMMY_HASH_FAILED").Wrap(err)
	}

	return &CredentialStore{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		policy:    policy,
		logger:    logger,
		now:       now,
		dummyHash: dummy,
	}, nil
}

// FindByCredentials returns the user owning email when password matches.
// Unknown email and wrong password both yield AUTH_INVALID_CREDENTIALS. A
// locked account yields AUTH_ACCOUNT_LOCKED, but only for the correct password.
func (c *CredentialStore) FindByCredentials(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)

	user, lookupErr := c.users.GetByEmail(ctx, email)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	targetHash := c.dummyHash
	if user != nil && lookupErr == nil {
		targetHash = user.PasswordHash
	}

	// Always verify so an unknown email costs the same as a wrong password.
	valid := c.hasher.Verify(password, targetHash)

	if lookupErr != nil {
		return nil, errInvalidCredentials()
	}

	now := c.now()
	if !valid {
		// The counter is incremented by the store so parallel guesses all count.
		if _, _, err := c.users.RecordLoginFailure(ctx, user.ID, c.policy, now); err != nil {
			errutil.LogErrorContext(ctx, c.logger, slog.LevelWarn, "failed to record login failure", err)
		}
		return nil, errInvalidCredentials()
	}

	// Lockout is checked after verification so it is only revealed to the password holder.
	if user.IsLocked(now) {
		return nil, oops.Code(errutil.CodeAccountLocked).
			With("locked_until", *user.LockedUntil).
			Errorf("account is temporarily locked")
	}

	if user.FailedAttempts != 0 || user.LockedUntil != nil {
		user.RecordSuccess()
		if err := c.users.ResetLoginState(ctx, user.ID); err != nil {
			errutil.LogErrorContext(ctx, c.logger, slog.LevelWarn, "failed to reset login failures", err)
		}
	}

	if c.hasher.NeedsRehash(user.PasswordHash) {
		c.rehash(ctx, user, password)
	}

	return user, nil
}

func (c *CredentialStore) rehash(ctx context.Context, user *User, password string) {
	newHash, err := c.hasher.Hash(password)
	if err != nil {
		errutil.LogErrorContext(ctx, c.logger, slog.LevelWarn, "failed to rehash password", err)
		return
	}
	// Swapped only if the hash is unchanged since lookup; a concurrent
	// password change wins.
	swapped, err := c.users.SwapPasswordHash(ctx, user.ID, user.PasswordHash, newHash)
	if err != nil {
		errutil.LogErrorContext(ctx, c.logger, slog.LevelWarn, "failed to store rehashed password", err)
		return
	}
	if !swapped {
		c.logger.DebugContext(ctx, "password changed during rehash", "user_id", user.ID.String())
		return
	}
	user.PasswordHash = newHash
}

// AppendToken adds an issued token to the user's set.
func (c *CredentialStore) AppendToken(ctx context.Context, userID ulid.ULID, token IssuedToken) error {
	if err := c.tokens.Append(ctx, userID, NewTokenRecord(token)); err != nil {
		return oops.Code("AUTH_TOKEN_APPEND_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// RemoveToken removes exactly token from the user's set. Absent tokens are ignored.
func (c *CredentialStore) RemoveToken(ctx context.Context, userID ulid.ULID, token string) error {
	if err := c.tokens.Remove(ctx, userID, HashToken(token)); err != nil {
		return oops.Code("AUTH_TOKEN_REMOVE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// ClearTokens empties the user's set.
func (c *CredentialStore) ClearTokens(ctx context.Context, userID ulid.ULID) error {
	if err := c.tokens.Clear(ctx, userID); err != nil {
		return oops.Code("AUTH_TOKEN_CLEAR_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// HasToken reports whether token is an active member of the user's set.
func (c *CredentialStore) HasToken(ctx context.Context, userID ulid.ULID, token string) (bool, error) {
	ok, err := c.tokens.Contains(ctx, userID, HashToken(token), c.now())
	if err != nil {
		return false, oops.Code("AUTH_TOKEN_LOOKUP_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return ok, nil
}

// ActiveTokens lists the user's unexpired token records.
func (c *CredentialStore) ActiveTokens(ctx context.Context, userID ulid.ULID) ([]TokenRecord, error) {
	records, err := c.tokens.List(ctx, userID)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_LIST_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	now := c.now()
	active := records[:0]
	for _, r := range records {
		if !r.IsExpired(now) {
			active = append(active, r)
		}
	}
	return active, nil
}

// PruneExpired removes every expired record across all users.
func (c *CredentialStore) PruneExpired(ctx context.Context) (int64, error) {
	n, err := c.tokens.DeleteExpired(ctx, c.now())
	if err != nil {
		return 0, oops.Code("AUTH_TOKEN_PRUNE_FAILED").Wrap(err)
	}
	return n, nil
}
