// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// Field limits.
const (
	MaxEmailLength    = 254
	MinPasswordLength = 7
	MaxPasswordLength = 128
	MaxNameLength     = 100
)

// User is an account holder.
type User struct {
	ID             ulid.ULID
	Email          string
	Name           string
	Age            int
	PasswordHash   string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsLocked returns true if the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return IsLockedOut(u.LockedUntil, now)
}

// RecordFailure increments the failure counter and sets lockout if the threshold is reached.
func (u *User) RecordFailure(policy LockoutPolicy, now time.Time) {
	u.FailedAttempts++
	u.LockedUntil = policy.LockoutTime(u.FailedAttempts, now)
}

// RecordSuccess resets failure counter and lockout.
func (u *User) RecordSuccess() {
	u.FailedAttempts = 0
	u.LockedUntil = nil
}

// PublicUser is the sanitized form of a User returned to clients.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RemoveSecrets strips the password hash, tokens and throttling state.
func RemoveSecrets(u *User) PublicUser {
	return PublicUser{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		Age:       u.Age,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare, syntactically valid address.
// The input is expected to be normalized.
func ValidateEmail(email string) error {
	if email == "" {
		return errValidation("email", "email is required")
	}
	if len(email) > MaxEmailLength {
		return errValidation("email", "email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errValidation("email", "email is invalid")
	}
	return nil
}

// ValidatePassword checks password length and content rules.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return errValidation("password", "password must be at least %d characters", MinPasswordLength)
	}
	if n > MaxPasswordLength {
		return errValidation("password", "password must be at most %d characters", MaxPasswordLength)
	}
	if strings.Contains(strings.ToLower(password), "password") {
		return errValidation("password", "password cannot contain \"password\"")
	}
	return nil
}

// ValidateName checks a trimmed display name.
func ValidateName(name string) error {
	if name == "" {
		return errValidation("name", "name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return errValidation("name", "name must be at most %d characters", MaxNameLength)
	}
	return nil
}

// ValidateAge rejects negative ages.
func ValidateAge(age int) error {
	if age < 0 {
		return errValidation("age", "age must be a positive number")
	}
	return nil
}

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Age      int    `json:"age"`
}

// Normalize trims the name and normalizes the email in place.
func (in *RegisterInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
}

// Validate checks every field. Call Normalize first.
func (in RegisterInput) Validate() error {
	if err := ValidateName(in.Name); err != nil {
		return err
	}
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return err
	}
	return ValidateAge(in.Age)
}

// ProfileUpdate carries a partial profile change. Nil fields are left alone.
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Age      *int    `json:"age,omitempty"`
}

// ProfileUpdateFields lists the fields a ProfileUpdate may carry.
var ProfileUpdateFields = []string{"name", "email", "password", "age"}

// Normalize trims the name and normalizes the email in place.
func (p *ProfileUpdate) Normalize() {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	if p.Email != nil {
		email := NormalizeEmail(*p.Email)
		p.Email = &email
	}
}

// Validate checks every present field. Call Normalize first.
func (p ProfileUpdate) Validate() error {
	if p.Name != nil {
		if err := ValidateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Email != nil {
		if err := ValidateEmail(*p.Email); err != nil {
			return err
		}
	}
	if p.Password != nil {
		if err := ValidatePassword(*p.Password); err != nil {
			return err
		}
	}
	if p.Age != nil {
		return ValidateAge(*p.Age)
	}
	return nil
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Password == nil && p.Age == nil
}

// ProfileChange is a column-level user update. Nil fields keep their stored value.
type ProfileChange struct {
	Name         *string
	Email        *string
	Age          *int
	PasswordHash *string
	UpdatedAt    time.Time
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	// Returns ErrEmailTaken if the email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	// Returns ErrNotFound if no user has the given ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdateProfile writes only the fields set in change and returns the
	// stored user. Returns ErrEmailTaken or ErrNotFound.
	UpdateProfile(ctx context.Context, id ulid.ULID, change ProfileChange) (*User, error)

	// SwapPasswordHash replaces oldHash with newHash. It reports false and
	// leaves the row alone when oldHash is no longer the stored hash.
	SwapPasswordHash(ctx context.Context, id ulid.ULID, oldHash, newHash string) (bool, error)

	// RecordLoginFailure increments the failure counter in place and applies
	// policy to the incremented value. Returns the stored counter and deadline.
	RecordLoginFailure(ctx context.Context, id ulid.ULID, policy LockoutPolicy, now time.Time) (int, *time.Time, error)

	// ResetLoginState clears the failure counter and lockout deadline.
	ResetLoginState(ctx context.Context, id ulid.ULID) error

	// Delete removes a user together with its token set.
	// Returns ErrNotFound if no user has the given ID.
	Delete(ctx context.Context, id ulid.ULID) error
}
