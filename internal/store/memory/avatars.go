// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package memory

import (
	"context"
	"slices"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/avatar"
)

// AvatarRepository implements avatar.Repository.
type AvatarRepository struct {
	s *Store
}

var _ avatar.Repository = (*AvatarRepository)(nil)

// Put creates or replaces the user's avatar.
func (r *AvatarRepository) Put(_ context.Context, a *avatar.Avatar) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[a.UserID]; !ok {
		return oops.Code("AVATAR_OWNER_NOT_FOUND").With("user_id", a.UserID.String()).Errorf("owner does not exist")
	}
	c := *a
	c.Data = slices.Clone(a.Data)
	r.s.avatars[a.UserID] = &c
	return nil
}

// Get returns the user's avatar.
func (r *AvatarRepository) Get(_ context.Context, userID ulid.ULID) (*avatar.Avatar, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.avatars[userID]
	if !ok {
		return nil, oops.Code("AVATAR_NOT_FOUND").With("user_id", userID.String()).Wrap(avatar.ErrNotFound)
	}
	c := *a
	c.Data = slices.Clone(a.Data)
	return &c, nil
}

// Delete removes the user's avatar.
func (r *AvatarRepository) Delete(_ context.Context, userID ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.avatars[userID]; !ok {
		return oops.Code("AVATAR_NOT_FOUND").With("user_id", userID.String()).Wrap(avatar.ErrNotFound)
	}
	delete(r.s.avatars, userID)
	return nil
}
