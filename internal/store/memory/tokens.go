// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package memory

import (
	"context"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/auth"
)

// TokenRepository implements auth.TokenRepository.
type TokenRepository struct {
	s *Store
}

var _ auth.TokenRepository = (*TokenRepository)(nil)

// Append adds a record; a digest already present is left alone.
func (r *TokenRepository) Append(_ context.Context, userID ulid.ULID, record auth.TokenRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[userID]; !ok {
		return oops.Code("TOKEN_APPEND_FAILED").With("user_id", userID.String()).Wrap(auth.ErrNotFound)
	}
	set := r.s.tokens[userID]
	if slices.ContainsFunc(set, func(t auth.TokenRecord) bool { return t.TokenHash == record.TokenHash }) {
		return nil
	}
	r.s.tokens[userID] = append(set, record)
	return nil
}

// Remove deletes a digest from the set.
func (r *TokenRepository) Remove(_ context.Context, userID ulid.ULID, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	set := slices.DeleteFunc(r.s.tokens[userID], func(t auth.TokenRecord) bool { return t.TokenHash == tokenHash })
	if len(set) == 0 {
		delete(r.s.tokens, userID)
		return nil
	}
	r.s.tokens[userID] = set
	return nil
}

// Clear empties the user's set.
func (r *TokenRepository) Clear(_ context.Context, userID ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.tokens, userID)
	return nil
}

// Contains reports whether the digest is present and unexpired.
func (r *TokenRepository) Contains(_ context.Context, userID ulid.ULID, tokenHash string, now time.Time) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.tokens[userID] {
		if t.TokenHash == tokenHash {
			return !t.IsExpired(now), nil
		}
	}
	return false, nil
}

// List returns a copy of the user's records in issue order.
func (r *TokenRepository) List(_ context.Context, userID ulid.ULID) ([]auth.TokenRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return slices.Clone(r.s.tokens[userID]), nil
}

// DeleteExpired removes every expired record.
func (r *TokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var removed int64
	for id, set := range r.s.tokens {
		before := len(set)
		set = slices.DeleteFunc(set, func(t auth.TokenRecord) bool { return t.IsExpired(now) })
		removed += int64(before - len(set))
		if len(set) == 0 {
			delete(r.s.tokens, id)
		} else {
			r.s.tokens[id] = set
		}
	}
	return removed, nil
}
