// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token configuration.
const (
	MinTokenSecretLength = 32
	DefaultTokenTTL      = 7 * 24 * time.Hour
	DefaultTokenIssuer   = "taskforge"
)

// ErrWeakSecret is returned when the signing secret is missing or too short.
var ErrWeakSecret = oops.Code("AUTH_WEAK_SECRET").
	Errorf("token secret must be at least %d bytes", MinTokenSecretLength)

// IssuedToken is a freshly minted session token.
type IssuedToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer mints and validates session tokens.
type TokenIssuer interface {
	// Mint creates a signed token bound to userID. Two calls never return
	// the same token.
	Mint(userID ulid.ULID) (IssuedToken, error)

	// Verify returns the user a token is bound to. Any failure yields ErrInvalidToken.
	Verify(token string) (ulid.ULID, error)
}

// JWTIssuer implements TokenIssuer with HS256 JSON Web Tokens.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

var _ TokenIssuer = (*JWTIssuer)(nil)

// JWTOption configures a JWTIssuer.
type JWTOption func(*JWTIssuer)

// WithTokenClock overrides the issuer's time source.
func WithTokenClock(now func() time.Time) JWTOption {
	return func(j *JWTIssuer) { j.now = now }
}

// WithTokenIssuer overrides the iss claim.
func WithTokenIssuer(issuer string) JWTOption {
	return func(j *JWTIssuer) { j.issuer = issuer }
}

// NewJWTIssuer creates an issuer signing with secret. A ttl of zero selects DefaultTokenTTL.
func NewJWTIssuer(secret []byte, ttl time.Duration, opts ...JWTOption) (*JWTIssuer, error) {
	if len(secret) < MinTokenSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl < 0 {
		return nil, oops.Code("AUTH_INVALID_TOKEN_TTL").With("ttl", ttl).Errorf("token ttl cannot be negative")
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	j := &JWTIssuer{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		issuer: DefaultTokenIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Mint creates a signed token for userID.
func (j *JWTIssuer) Mint(userID ulid.ULID) (IssuedToken, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return IssuedToken{}, oops.Code("AUTH_INVALID_SUBJECT").Errorf("user ID cannot be zero")
	}

	// JWT timestamps have second precision.
	issuedAt := j.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(j.ttl)

	claims := jwt.RegisteredClaims{
		ID:        ulid.Make().String(),
		Subject:   userID.String(),
		Issuer:    j.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return IssuedToken{}, oops.Code("AUTH_TOKEN_SIGN_FAILED").Wrap(err)
	}

	return IssuedToken{Token: signed, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the subject.
func (j *JWTIssuer) Verify(token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return j.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil || !parsed.Valid {
		return ulid.ULID{}, ErrInvalidToken
	}

	userID, err := ulid.ParseStrict(claims.Subject)
	if err != nil {
		return ulid.ULID{}, ErrInvalidToken
	}
	return userID, nil
}

// HashToken returns the hex SHA-256 digest under which a token is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenRecord is a stored member of a user's token set.
type TokenRecord struct {
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewTokenRecord builds the stored record for an issued token.
func NewTokenRecord(t IssuedToken) TokenRecord {
	return TokenRecord{
		TokenHash: HashToken(t.Token),
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
	}
}

// IsExpired returns true if the record has expired at now.
func (r TokenRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// TokenRepository manages each user's set of active token digests.
// Every method is atomic with respect to concurrent calls for the same user.
type TokenRepository interface {
	// Append adds a record. Appending a digest already in the set is a no-op.
	Append(ctx context.Context, userID ulid.ULID, record TokenRecord) error

	// Remove deletes a digest from the set. Removing an absent digest is a no-op.
	Remove(ctx context.Context, userID ulid.ULID, tokenHash string) error

	// Clear empties the user's set.
	Clear(ctx context.Context, userID ulid.ULID) error

	// Contains reports whether the digest is in the set and unexpired at now.
	Contains(ctx context.Context, userID ulid.ULID, tokenHash string, now time.Time) (bool, error)

	// List returns the user's records ordered by issue time.
	List(ctx context.Context, userID ulid.ULID) ([]TokenRecord, error)

	// DeleteExpired removes every record expired at now and returns how many.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// IsInvalidToken reports whether err is the uniform token failure.
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}
