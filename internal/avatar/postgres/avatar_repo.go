// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package postgres stores avatars in PostgreSQL as bytea.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/avatar"
	"github.com/taskforge/taskforge/internal/store"
)

// AvatarRepository implements avatar.Repository using PostgreSQL.
type AvatarRepository struct {
	db store.DB
}

var _ avatar.Repository = (*AvatarRepository)(nil)

// NewAvatarRepository creates a new AvatarRepository.
func NewAvatarRepository(db store.DB) *AvatarRepository {
	return &AvatarRepository{db: db}
}

// Put creates or replaces the user's avatar.
func (r *AvatarRepository) Put(ctx context.Context, a *avatar.Avatar) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO avatars (user_id, content_type, data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET content_type = EXCLUDED.content_type,
		    data = EXCLUDED.data,
		    updated_at = EXCLUDED.updated_at
	`, a.UserID.String(), a.ContentType, a.Data, a.UpdatedAt)
	if store.IsForeignKeyViolation(err) {
		return oops.Code("AVATAR_OWNER_NOT_FOUND").
			With("user_id", a.UserID.String()).
			Wrap(err)
	}
	if err != nil {
		return oops.Code("AVATAR_PUT_FAILED").
			With("user_id", a.UserID.String()).
			With("size", len(a.Data)).
			Wrap(err)
	}
	return nil
}

// Get returns the user's avatar.
func (r *AvatarRepository) Get(ctx context.Context, userID ulid.ULID) (*avatar.Avatar, error) {
	a := avatar.Avatar{UserID: userID}
	err := r.db.QueryRow(ctx, `
		SELECT content_type, data, updated_at FROM avatars WHERE user_id = $1
	`, userID.String()).Scan(&a.ContentType, &a.Data, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("AVATAR_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(avatar.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("AVATAR_GET_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return &a, nil
}

// Delete removes the user's avatar.
func (r *AvatarRepository) Delete(ctx context.Context, userID ulid.ULID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM avatars WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("AVATAR_DELETE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("AVATAR_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(avatar.ErrNotFound)
	}
	return nil
}
