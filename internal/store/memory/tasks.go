// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/task"
)

// TaskRepository implements task.Repository.
type TaskRepository struct {
	s *Store
}

var _ task.Repository = (*TaskRepository)(nil)

// Create stores a new task.
func (r *TaskRepository) Create(_ context.Context, t *task.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[t.OwnerID]; !ok {
		return oops.Code("TASK_OWNER_NOT_FOUND").With("owner_id", t.OwnerID.String()).Errorf("owner does not exist")
	}
	c := *t
	r.s.tasks[t.ID] = &c
	return nil
}

func (r *TaskRepository) owned(ownerID, id ulid.ULID) (*task.Task, error) {
	t, ok := r.s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, oops.Code("TASK_NOT_FOUND").With("task_id", id.String()).Wrap(task.ErrNotFound)
	}
	return t, nil
}

// Get retrieves one of the owner's tasks.
func (r *TaskRepository) Get(_ context.Context, ownerID, id ulid.ULID) (*task.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, err := r.owned(ownerID, id)
	if err != nil {
		return nil, err
	}
	c := *t
	return &c, nil
}

// List returns the owner's tasks filtered, sorted and paged by opts.
func (r *TaskRepository) List(_ context.Context, ownerID ulid.ULID, opts task.ListOptions) ([]*task.Task, error) {
	r.s.mu.RLock()
	out := make([]*task.Task, 0)
	for _, t := range r.s.tasks {
		if t.OwnerID != ownerID {
			continue
		}
		if opts.Completed != nil && t.Completed != *opts.Completed {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	r.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *task.Task) int {
		n := compareBy(opts.Sort.Field, a, b)
		if opts.Sort.Desc {
			n = -n
		}
		if n == 0 {
			n = a.ID.Compare(b.ID)
		}
		return n
	})

	if opts.Skip >= len(out) {
		return []*task.Task{}, nil
	}
	out = out[opts.Skip:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func compareBy(field task.SortField, a, b *task.Task) int {
	switch field {
	case task.SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case task.SortDescription:
		return strings.Compare(a.Description, b.Description)
	case task.SortCompleted:
		return cmp.Compare(boolRank(a.Completed), boolRank(b.Completed))
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Update persists description, completion and UpdatedAt.
func (r *TaskRepository) Update(_ context.Context, t *task.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, err := r.owned(t.OwnerID, t.ID)
	if err != nil {
		return err
	}
	current.Description = t.Description
	current.Completed = t.Completed
	current.UpdatedAt = t.UpdatedAt
	return nil
}

// Delete removes one of the owner's tasks.
func (r *TaskRepository) Delete(_ context.Context, ownerID, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, err := r.owned(ownerID, id); err != nil {
		return err
	}
	delete(r.s.tasks, id)
	return nil
}
