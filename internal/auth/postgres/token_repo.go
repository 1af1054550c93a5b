// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package postgres

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/store"
)

// TokenRepository implements auth.TokenRepository using PostgreSQL.
// Each row is one member of a user's token set.
type TokenRepository struct {
	db store.DB
}

var _ auth.TokenRepository = (*TokenRepository)(nil)

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db store.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Append adds a record. A digest already in the set is left alone.
func (r *TokenRepository) Append(ctx context.Context, userID ulid.ULID, record auth.TokenRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_tokens (user_id, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, token_hash) DO NOTHING
	`, userID.String(), record.TokenHash, record.IssuedAt, record.ExpiresAt)
	if store.IsForeignKeyViolation(err) {
		return oops.Code("TOKEN_APPEND_FAILED").
			With("user_id", userID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("TOKEN_APPEND_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// Remove deletes one digest from the set.
func (r *TokenRepository) Remove(ctx context.Context, userID ulid.ULID, tokenHash string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM user_tokens WHERE user_id = $1 AND token_hash = $2
	`, userID.String(), tokenHash)
	if err != nil {
		return oops.Code("TOKEN_REMOVE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// Clear empties the set.
func (r *TokenRepository) Clear(ctx context.Context, userID ulid.ULID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM user_tokens WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("TOKEN_CLEAR_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// Contains reports whether the digest is present and unexpired at now.
func (r *TokenRepository) Contains(ctx context.Context, userID ulid.ULID, tokenHash string, now time.Time) (bool, error) {
	var found bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_tokens
			WHERE user_id = $1 AND token_hash = $2 AND expires_at > $3
		)
	`, userID.String(), tokenHash, now).Scan(&found)
	if err != nil {
		return false, oops.Code("TOKEN_LOOKUP_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return found, nil
}

// List returns the user's records ordered by issue time.
func (r *TokenRepository) List(ctx context.Context, userID ulid.ULID) ([]auth.TokenRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT token_hash, issued_at, expires_at
		FROM user_tokens
		WHERE user_id = $1
		ORDER BY issued_at, token_hash
	`, userID.String())
	if err != nil {
		return nil, oops.Code("TOKEN_LIST_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var records []auth.TokenRecord
	for rows.Next() {
		var rec auth.TokenRecord
		if err := rows.Scan(&rec.TokenHash, &rec.IssuedAt, &rec.ExpiresAt); err != nil {
			return nil, oops.Code("TOKEN_LIST_FAILED").
				With("operation", "scan").
				With("user_id", userID.String()).
				Wrap(err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TOKEN_LIST_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return records, nil
}

// DeleteExpired removes every record expired at now.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("TOKEN_PRUNE_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}
