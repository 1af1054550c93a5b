// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package avatar stores user profile images. Images are validated by size
// and detected content type and stored as uploaded.
package avatar

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/pkg/errutil"
)

// MaxSize is the largest accepted upload in bytes.
const MaxSize = 1_000_000

// Accepted content types.
const (
	TypePNG  = "image/png"
	TypeJPEG = "image/jpeg"
)

// ErrNotFound is returned when a user has no avatar.
var ErrNotFound = errors.New("avatar not found")

// Avatar is a user's profile image.
type Avatar struct {
	UserID      ulid.ULID
	ContentType string
	Data        []byte
	UpdatedAt   time.Time
}

// Detect validates data and returns its content type.
func Detect(data []byte) (string, error) {
	if len(data) == 0 {
		return "", oops.Code(errutil.CodeValidationFailed).
			With("field", "avatar").
			Errorf("avatar is required")
	}
	if len(data) > MaxSize {
		return "", oops.Code(errutil.CodeValidationFailed).
			With("field", "avatar").
			With("size", len(data)).
			Errorf("avatar must be at most %d bytes", MaxSize)
	}
	switch ct := http.DetectContentType(data); ct {
	case TypePNG, TypeJPEG:
		return ct, nil
	default:
		return "", oops.Code(errutil.CodeValidationFailed).
			With("field", "avatar").
			With("content_type", ct).
			Errorf("please upload a png or jpeg image")
	}
}

// Repository manages avatar persistence.
type Repository interface {
	// Put creates or replaces the user's avatar.
	Put(ctx context.Context, a *Avatar) error

	// Get returns the user's avatar.
	// Returns ErrNotFound if the user has none.
	Get(ctx context.Context, userID ulid.ULID) (*Avatar, error)

	// Delete removes the user's avatar.
	// Returns ErrNotFound if the user has none.
	Delete(ctx context.Context, userID ulid.ULID) error
}

// Service provides avatar operations.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a Service.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, oops.Errorf("avatar repository is required")
	}
	return &Service{repo: repo, now: time.Now}, nil
}

// Upload validates and stores data as the user's avatar.
func (s *Service) Upload(ctx context.Context, userID ulid.ULID, data []byte) (*Avatar, error) {
	ct, err := Detect(data)
	if err != nil {
		return nil, err
	}
	a := &Avatar{
		UserID:      userID,
		ContentType: ct,
		Data:        data,
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.repo.Put(ctx, a); err != nil {
		return nil, s.mapErr(err, "AVATAR_PUT_FAILED", userID)
	}
	return a, nil
}

// Get returns the user's avatar.
func (s *Service) Get(ctx context.Context, userID ulid.ULID) (*Avatar, error) {
	a, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, s.mapErr(err, "AVATAR_GET_FAILED", userID)
	}
	return a, nil
}

// Delete removes the user's avatar.
func (s *Service) Delete(ctx context.Context, userID ulid.ULID) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return s.mapErr(err, "AVATAR_DELETE_FAILED", userID)
	}
	return nil
}

func (s *Service) mapErr(err error, code string, userID ulid.ULID) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code(errutil.CodeNotFound).
			With("user_id", userID.String()).
			Errorf("avatar not found")
	}
	return oops.Code(code).With("user_id", userID.String()).Wrap(err)
}
