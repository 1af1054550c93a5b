// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/store"
)

const userColumns = `id, email, name, age, password_hash,
	       failed_attempts, locked_until, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db store.DB
}

var _ auth.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db store.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (
			id, email, name, age, password_hash,
			failed_attempts, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID.String(),
		user.Email,
		user.Name,
		user.Age,
		user.PasswordHash,
		user.FailedAttempts,
		user.LockedUntil,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if store.IsUniqueViolation(err) {
		return oops.Code("USER_EMAIL_TAKEN").
			With("email", user.Email).
			Wrap(auth.ErrEmailTaken)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// UpdateProfile writes only the columns set in change. Unset fields keep
// whatever is stored, so overlapping updates of different fields both land.
func (r *UserRepository) UpdateProfile(ctx context.Context, id ulid.ULID, change auth.ProfileChange) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE users
		SET email = COALESCE($2::text, email),
		    name = COALESCE($3::text, name),
		    age = COALESCE($4::int, age),
		    password_hash = COALESCE($5::text, password_hash),
		    updated_at = $6
		WHERE id = $1
		RETURNING `+userColumns,
		id.String(),
		change.Email,
		change.Name,
		change.Age,
		change.PasswordHash,
		change.UpdatedAt,
	)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if store.IsUniqueViolation(err) {
		return nil, oops.Code("USER_EMAIL_TAKEN").
			With("id", id.String()).
			Wrap(auth.ErrEmailTaken)
	}
	if err != nil {
		return nil, oops.Code("USER_UPDATE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// SwapPasswordHash replaces the hash only while oldHash is still stored.
func (r *UserRepository) SwapPasswordHash(ctx context.Context, id ulid.ULID, oldHash, newHash string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $3 WHERE id = $1 AND password_hash = $2
	`, id.String(), oldHash, newHash)
	if err != nil {
		return false, oops.Code("USER_PASSWORD_SWAP_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordLoginFailure increments failed_attempts in a single statement and
// sets locked_until once the incremented value reaches the threshold.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id ulid.ULID, policy auth.LockoutPolicy, now time.Time) (int, *time.Time, error) {
	var (
		failures    int
		lockedUntil *time.Time
	)
	err := r.db.QueryRow(ctx, `
		UPDATE users
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE
		        WHEN $2::int > 0 AND failed_attempts + 1 >= $2::int THEN $3::timestamptz
		        ELSE NULL
		    END
		WHERE id = $1
		RETURNING failed_attempts, locked_until
	`, id.String(), policy.Threshold, now.Add(policy.Duration)).Scan(&failures, &lockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return 0, nil, oops.Code("USER_LOGIN_STATE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return failures, lockedUntil, nil
}

// ResetLoginState clears the failure counter and lockout deadline.
func (r *UserRepository) ResetLoginState(ctx context.Context, id ulid.ULID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET failed_attempts = 0, locked_until = NULL WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("USER_LOGIN_STATE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a user. Tokens, tasks and the avatar go with it via
// ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		user  auth.User
		idStr string
	)
	if err := row.Scan(
		&idStr,
		&user.Email,
		&user.Name,
		&user.Age,
		&user.PasswordHash,
		&user.FailedAttempts,
		&user.LockedUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	user.ID = id
	return &user, nil
}
