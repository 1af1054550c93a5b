// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package memory

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/auth"
)

// UserRepository implements auth.UserRepository.
type UserRepository struct {
	s *Store
}

var _ auth.UserRepository = (*UserRepository)(nil)

func copyUser(u *auth.User) *auth.User {
	c := *u
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		c.LockedUntil = &t
	}
	return &c
}

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.emails[user.Email]; taken {
		return oops.Code("USER_EMAIL_TAKEN").With("email", user.Email).Wrap(auth.ErrEmailTaken)
	}
	if _, exists := r.s.users[user.ID]; exists {
		return oops.Code("USER_CREATE_FAILED").With("user_id", user.ID.String()).Errorf("duplicate user id")
	}
	r.s.users[user.ID] = copyUser(user)
	r.s.emails[user.Email] = user.ID
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return copyUser(u), nil
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.emails[email]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return copyUser(r.s.users[id]), nil
}

// UpdateProfile writes only the fields set in change.
func (r *UserRepository) UpdateProfile(_ context.Context, id ulid.ULID, change auth.ProfileChange) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	if change.Email != nil && *change.Email != current.Email {
		if _, taken := r.s.emails[*change.Email]; taken {
			return nil, oops.Code("USER_EMAIL_TAKEN").With("email", *change.Email).Wrap(auth.ErrEmailTaken)
		}
		delete(r.s.emails, current.Email)
		r.s.emails[*change.Email] = id
		current.Email = *change.Email
	}
	if change.Name != nil {
		current.Name = *change.Name
	}
	if change.Age != nil {
		current.Age = *change.Age
	}
	if change.PasswordHash != nil {
		current.PasswordHash = *change.PasswordHash
	}
	current.UpdatedAt = change.UpdatedAt
	return copyUser(current), nil
}

// SwapPasswordHash replaces the hash only while oldHash is still stored.
func (r *UserRepository) SwapPasswordHash(_ context.Context, id ulid.ULID, oldHash, newHash string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.users[id]
	if !ok || current.PasswordHash != oldHash {
		return false, nil
	}
	current.PasswordHash = newHash
	return true, nil
}

// RecordLoginFailure increments the stored failure counter.
func (r *UserRepository) RecordLoginFailure(_ context.Context, id ulid.ULID, policy auth.LockoutPolicy, now time.Time) (int, *time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.users[id]
	if !ok {
		return 0, nil, oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	current.RecordFailure(policy, now)
	return current.FailedAttempts, copyUser(current).LockedUntil, nil
}

// ResetLoginState clears the failure counter and lockout deadline.
func (r *UserRepository) ResetLoginState(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	current.RecordSuccess()
	return nil
}

// Delete removes a user and cascades to its tokens, tasks and avatar.
func (r *UserRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.s.emails, u.Email)
	delete(r.s.users, id)
	delete(r.s.tokens, id)
	delete(r.s.avatars, id)
	for tid, t := range r.s.tasks {
		if t.OwnerID == id {
			delete(r.s.tasks, tid)
		}
	}
	return nil
}
