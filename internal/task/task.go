// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package task implements per-user task management.
//
// Every operation is scoped to an owner. A task owned by someone else is
// reported exactly like a task that does not exist.
package task

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/pkg/errutil"
)

// ErrNotFound is returned when a task does not exist for the owner.
var ErrNotFound = errors.New("task not found")

// MaxDescriptionLength bounds a task description.
const MaxDescriptionLength = 1000

// Listing limits.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Task is a unit of work owned by a user.
type Task struct {
	ID          ulid.ULID `json:"id"`
	OwnerID     ulid.ULID `json:"owner"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SortField names a sortable task attribute.
type SortField string

// Sortable fields.
const (
	SortCreatedAt   SortField = "createdAt"
	SortUpdatedAt   SortField = "updatedAt"
	SortDescription SortField = "description"
	SortCompleted   SortField = "completed"
)

// Sort orders a listing.
type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort lists oldest tasks first.
var DefaultSort = Sort{Field: SortCreatedAt}

// ParseSort parses "field" or "field:asc|desc". An empty string yields DefaultSort.
func ParseSort(s string) (Sort, error) {
	if s == "" {
		return DefaultSort, nil
	}
	field, dir, hasDir := strings.Cut(s, ":")
	out := Sort{Field: SortField(field)}
	switch out.Field {
	case SortCreatedAt, SortUpdatedAt, SortDescription, SortCompleted:
	default:
		return Sort{}, errValidation("sortBy", "cannot sort by %q", field)
	}
	if hasDir {
		switch strings.ToLower(dir) {
		case "asc":
		case "desc":
			out.Desc = true
		default:
			return Sort{}, errValidation("sortBy", "sort direction must be asc or desc")
		}
	}
	return out, nil
}

// ListOptions filters and pages a listing.
type ListOptions struct {
	Completed *bool
	Sort      Sort
	Limit     int
	Skip      int
}

// ParseListOptions builds ListOptions from raw query values.
func ParseListOptions(completed, sortBy, limit, skip string) (ListOptions, error) {
	opts := ListOptions{Limit: DefaultLimit}

	if completed != "" {
		v, err := strconv.ParseBool(completed)
		if err != nil {
			return ListOptions{}, errValidation("completed", "completed must be true or false")
		}
		opts.Completed = &v
	}

	sort, err := ParseSort(sortBy)
	if err != nil {
		return ListOptions{}, err
	}
	opts.Sort = sort

	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return ListOptions{}, errValidation("limit", "limit must be a positive integer")
		}
		opts.Limit = min(n, MaxLimit)
	}
	if skip != "" {
		n, err := strconv.Atoi(skip)
		if err != nil || n < 0 {
			return ListOptions{}, errValidation("skip", "skip must be a non-negative integer")
		}
		opts.Skip = n
	}
	return opts, nil
}

// CreateInput carries the fields accepted when creating a task.
type CreateInput struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// Update carries a partial task change. Nil fields are left alone.
type Update struct {
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// UpdateFields lists the fields an Update may carry.
var UpdateFields = []string{"description", "completed"}

// ValidateDescription checks a trimmed description.
func ValidateDescription(desc string) error {
	if desc == "" {
		return errValidation("description", "description is required")
	}
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return errValidation("description", "description must be at most %d characters", MaxDescriptionLength)
	}
	return nil
}

// Repository manages task persistence. Every method is scoped to an owner.
type Repository interface {
	// Create stores a new task.
	Create(ctx context.Context, task *Task) error

	// Get retrieves one of the owner's tasks.
	// Returns ErrNotFound if the owner has no such task.
	Get(ctx context.Context, ownerID, id ulid.ULID) (*Task, error)

	// List returns the owner's tasks filtered, sorted and paged by opts.
	List(ctx context.Context, ownerID ulid.ULID, opts ListOptions) ([]*Task, error)

	// Update persists description, completion and UpdatedAt.
	// Returns ErrNotFound if the owner has no such task.
	Update(ctx context.Context, task *Task) error

	// Delete removes one of the owner's tasks.
	// Returns ErrNotFound if the owner has no such task.
	Delete(ctx context.Context, ownerID, id ulid.ULID) error
}

func errValidation(field, format string, args ...any) error {
	return oops.Code(errutil.CodeValidationFailed).
		With("field", field).
		Errorf(format, args...)
}

func errNotFound(id ulid.ULID) error {
	return oops.Code(errutil.CodeNotFound).
		With("task_id", id.String()).
		Errorf("task not found")
}
