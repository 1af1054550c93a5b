// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package task

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service provides task operations for authenticated owners.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(repo Repository, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, oops.Errorf("task repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}, nil
}

// Create adds a task for owner.
func (s *Service) Create(ctx context.Context, ownerID ulid.ULID, in CreateInput) (*Task, error) {
	desc := strings.TrimSpace(in.Description)
	if err := ValidateDescription(desc); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &Task{
		ID:          ulid.Make(),
		OwnerID:     ownerID,
		Description: desc,
		Completed:   in.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, oops.Code("TASK_CREATE_FAILED").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	return t, nil
}

// Get returns one of owner's tasks.
func (s *Service) Get(ctx context.Context, ownerID, id ulid.ULID) (*Task, error) {
	t, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, s.mapErr(err, "TASK_GET_FAILED", id)
	}
	return t, nil
}

// List returns owner's tasks.
func (s *Service) List(ctx context.Context, ownerID ulid.ULID, opts ListOptions) ([]*Task, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Sort.Field == "" {
		opts.Sort = DefaultSort
	}
	tasks, err := s.repo.List(ctx, ownerID, opts)
	if err != nil {
		return nil, oops.Code("TASK_LIST_FAILED").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	return tasks, nil
}

// Update applies a partial change to one of owner's tasks.
func (s *Service) Update(ctx context.Context, ownerID, id ulid.ULID, upd Update) (*Task, error) {
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		if err := ValidateDescription(desc); err != nil {
			return nil, err
		}
		upd.Description = &desc
	}

	t, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, s.mapErr(err, "TASK_UPDATE_FAILED", id)
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Completed != nil {
		t.Completed = *upd.Completed
	}
	t.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, s.mapErr(err, "TASK_UPDATE_FAILED", id)
	}
	return t, nil
}

// Delete removes one of owner's tasks and returns it.
func (s *Service) Delete(ctx context.Context, ownerID, id ulid.ULID) (*Task, error) {
	t, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, s.mapErr(err, "TASK_DELETE_FAILED", id)
	}
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return nil, s.mapErr(err, "TASK_DELETE_FAILED", id)
	}
	return t, nil
}

func (s *Service) mapErr(err error, code string, id ulid.ULID) error {
	if errors.Is(err, ErrNotFound) {
		return errNotFound(id)
	}
	return oops.Code(code).With("task_id", id.String()).Wrap(err)
}
