// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/taskforge/taskforge/pkg/errutil"
)

var tracer = otel.Tracer("taskforge/auth")

// Notifier delivers account emails. Implementations may deliver asynchronously.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, string) error { return nil }

// SessionManager orchestrates registration, login and logout.
type SessionManager struct {
	users    UserRepository
	creds    *CredentialStore
	hasher   PasswordHasher
	issuer   TokenIssuer
	notifier Notifier
	metrics  *Metrics
	policy   LockoutPolicy
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a SessionManager.
type Option func(*SessionManager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *SessionManager) { s.logger = logger }
}

// WithNotifier sets the account email notifier.
func WithNotifier(n Notifier) Option {
	return func(s *SessionManager) { s.notifier = n }
}

// WithMetrics records auth counters.
func WithMetrics(m *Metrics) Option {
	return func(s *SessionManager) { s.metrics = m }
}

// WithLockoutPolicy overrides DefaultLockoutPolicy.
func WithLockoutPolicy(p LockoutPolicy) Option {
	return func(s *SessionManager) { s.policy = p }
}

// WithClock overrides the time source used for lockouts and token membership.
func WithClock(now func() time.Time) Option {
	return func(s *SessionManager) { s.now = now }
}

// NewSessionManager creates a SessionManager.
// Returns an error if any dependency is nil.
func NewSessionManager(users UserRepository, tokens TokenRepository, hasher PasswordHasher, issuer TokenIssuer, opts ...Option) (*SessionManager, error) {
	if issuer == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	s := &SessionManager{
		users:    users,
		hasher:   hasher,
		issuer:   issuer,
		notifier: nopNotifier{},
		policy:   DefaultLockoutPolicy,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}

	creds, err := NewCredentialStore(users, tokens, hasher, s.policy, s.logger, s.now)
	if err != nil {
		return nil, err
	}
	s.creds = creds
	return s, nil
}

// Credentials returns the underlying credential store.
func (s *SessionManager) Credentials() *CredentialStore {
	return s.creds
}

// Register creates an account and logs it in.
func (s *SessionManager) Register(ctx context.Context, in RegisterInput) (_ PublicUser, _ string, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer endSpan(span, &err)

	in.Normalize()
	if err := in.Validate(); err != nil {
		return PublicUser{}, "", err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return PublicUser{}, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	now := s.now().UTC()
	user := &User{
		ID:           ulid.Make(),
		Email:        in.Email,
		Name:         in.Name,
		Age:          in.Age,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return PublicUser{}, "", oops.Code(errutil.CodeEmailTaken).
				With("field", "email").
				Errorf("email is already registered")
		}
		return PublicUser{}, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	token, err := s.issue(ctx, user.ID)
	if err != nil {
		// Without a token the registration cannot double as a login.
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			errutil.LogErrorContext(ctx, s.logger, slog.LevelWarn, "failed to roll back registration", delErr)
		}
		return PublicUser{}, "", err
	}

	s.metrics.registered()
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	s.notify(ctx, user, "Thanks for joining in!",
		fmt.Sprintf("Welcome to TaskForge, %s. Let us know how you get along with the app.", user.Name))

	return RemoveSecrets(user), token, nil
}

// Login verifies credentials and issues a new token. Existing tokens stay valid.
func (s *SessionManager) Login(ctx context.Context, email, password string) (_ PublicUser, _ string, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer endSpan(span, &err)

	user, err := s.creds.FindByCredentials(ctx, email, password)
	if err != nil {
		switch errutil.Code(err) {
		case errutil.CodeInvalidCredentials:
			s.metrics.login(LoginInvalid)
		case errutil.CodeAccountLocked:
			s.metrics.login(LoginLocked)
			s.logger.WarnContext(ctx, "login to locked account", "locked_until", lockedUntil(err))
		default:
			s.metrics.login(LoginError)
		}
		return PublicUser{}, "", err
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	token, err := s.issue(ctx, user.ID)
	if err != nil {
		s.metrics.login(LoginError)
		return PublicUser{}, "", err
	}

	s.metrics.login(LoginSuccess)
	return RemoveSecrets(user), token, nil
}

func lockedUntil(err error) any {
	if o, ok := oops.AsOops(err); ok {
		return o.Context()["locked_until"]
	}
	return nil
}

// issue mints a token and appends it to the user's set.
func (s *SessionManager) issue(ctx context.Context, userID ulid.ULID) (string, error) {
	issued, err := s.issuer.Mint(userID)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_MINT_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if err := s.creds.AppendToken(ctx, userID, issued); err != nil {
		return "", err
	}
	return issued.Token, nil
}

// Authenticate resolves a presented token to an Identity. Every rejection is
// the same UNAUTHENTICATED error; storage failures are returned as-is.
func (s *SessionManager) Authenticate(ctx context.Context, token string) (_ *Identity, err error) {
	ctx, span := tracer.Start(ctx, "auth.authenticate")
	defer endSpan(span, &err)

	userID, err := s.issuer.Verify(token)
	if err != nil {
		return nil, errUnauthenticated()
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errUnauthenticated()
		}
		return nil, oops.Code("AUTH_GATE_FAILED").
			With("operation", "get user by id").
			With("user_id", userID.String()).
			Wrap(err)
	}

	ok, err := s.creds.HasToken(ctx, user.ID, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errUnauthenticated()
	}

	return &Identity{User: user, Token: token}, nil
}

// Logout revokes exactly the presented token. Idempotent.
func (s *SessionManager) Logout(ctx context.Context, id *Identity) (err error) {
	ctx, span := tracer.Start(ctx, "auth.logout")
	defer endSpan(span, &err)

	if id == nil || id.User == nil {
		return errUnauthenticated()
	}
	return s.creds.RemoveToken(ctx, id.User.ID, id.Token)
}

// LogoutAll revokes every token of the caller, including the presented one.
func (s *SessionManager) LogoutAll(ctx context.Context, id *Identity) (err error) {
	ctx, span := tracer.Start(ctx, "auth.logout_all")
	defer endSpan(span, &err)

	if id == nil || id.User == nil {
		return errUnauthenticated()
	}
	return s.creds.ClearTokens(ctx, id.User.ID)
}

// Session describes one active token of a user without exposing it.
type Session struct {
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Current   bool      `json:"current"`
}

// Sessions lists the caller's unexpired sessions, oldest first.
func (s *SessionManager) Sessions(ctx context.Context, id *Identity) (_ []Session, err error) {
	ctx, span := tracer.Start(ctx, "auth.sessions")
	defer endSpan(span, &err)

	if id == nil || id.User == nil {
		return nil, errUnauthenticated()
	}
	records, err := s.creds.ActiveTokens(ctx, id.User.ID)
	if err != nil {
		return nil, err
	}

	current := HashToken(id.Token)
	sessions := make([]Session, 0, len(records))
	for _, r := range records {
		sessions = append(sessions, Session{
			IssuedAt:  r.IssuedAt,
			ExpiresAt: r.ExpiresAt,
			Current:   r.TokenHash == current,
		})
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].IssuedAt.Before(sessions[j].IssuedAt)
	})
	return sessions, nil
}

// Profile returns the caller's sanitized user.
func (s *SessionManager) Profile(id *Identity) PublicUser {
	return RemoveSecrets(id.User)
}

// UpdateProfile applies a partial profile change to the caller.
func (s *SessionManager) UpdateProfile(ctx context.Context, id *Identity, update ProfileUpdate) (_ PublicUser, err error) {
	ctx, span := tracer.Start(ctx, "auth.update_profile")
	defer endSpan(span, &err)

	if id == nil || id.User == nil {
		return PublicUser{}, errUnauthenticated()
	}
	update.Normalize()
	if err := update.Validate(); err != nil {
		return PublicUser{}, err
	}

	change := ProfileChange{
		Name:      update.Name,
		Email:     update.Email,
		Age:       update.Age,
		UpdatedAt: s.now().UTC(),
	}
	if update.Password != nil {
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return PublicUser{}, oops.Code("AUTH_UPDATE_FAILED").
				With("operation", "hash password").
				Wrap(err)
		}
		change.PasswordHash = &hash
	}

	user, err := s.users.UpdateProfile(ctx, id.User.ID, change)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			return PublicUser{}, oops.Code(errutil.CodeEmailTaken).
				With("field", "email").
				Errorf("email is already registered")
		case errors.Is(err, ErrNotFound):
			return PublicUser{}, errUnauthenticated()
		}
		return PublicUser{}, oops.Code("AUTH_UPDATE_FAILED").
			With("operation", "update user").
			With("user_id", id.User.ID.String()).
			Wrap(err)
	}

	*id.User = *user
	return RemoveSecrets(user), nil
}

// DeleteAccount removes the caller's account. Tokens and owned data cascade.
func (s *SessionManager) DeleteAccount(ctx context.Context, id *Identity) (_ PublicUser, err error) {
	ctx, span := tracer.Start(ctx, "auth.delete_account")
	defer endSpan(span, &err)

	if id == nil || id.User == nil {
		return PublicUser{}, errUnauthenticated()
	}
	if err := s.users.Delete(ctx, id.User.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return PublicUser{}, errUnauthenticated()
		}
		return PublicUser{}, oops.Code("AUTH_DELETE_FAILED").
			With("user_id", id.User.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", id.User.ID.String())
	s.notify(ctx, id.User, "Sorry to see you go!",
		fmt.Sprintf("Goodbye, %s. We hope to see you back sometime soon.", id.User.Name))

	return RemoveSecrets(id.User), nil
}

// PruneExpired deletes expired token records for every user.
func (s *SessionManager) PruneExpired(ctx context.Context) (int64, error) {
	n, err := s.creds.PruneExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "pruned expired tokens", "count", n)
	}
	return n, nil
}

// notify sends an account email. Failures are logged and never surfaced.
func (s *SessionManager) notify(ctx context.Context, user *User, subject, body string) {
	if err := s.notifier.Notify(ctx, user.Email, subject, body); err != nil {
		errutil.LogErrorContext(ctx, s.logger, slog.LevelWarn, "failed to send notification", err)
	}
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
