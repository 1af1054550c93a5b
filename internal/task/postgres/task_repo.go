// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package postgres implements task.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/store"
	"github.com/taskforge/taskforge/internal/task"
)

const taskColumns = `id, owner_id, description, completed, created_at, updated_at`

// sortColumns whitelists ORDER BY expressions. Descriptions compare
// bytewise so listings match the in-memory store.
var sortColumns = map[task.SortField]string{
	task.SortCreatedAt:   "created_at",
	task.SortUpdatedAt:   "updated_at",
	task.SortDescription: `description COLLATE "C"`,
	task.SortCompleted:   "completed",
}

// TaskRepository implements task.Repository using PostgreSQL.
type TaskRepository struct {
	db store.DB
}

var _ task.Repository = (*TaskRepository)(nil)

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db store.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create stores a new task.
func (r *TaskRepository) Create(ctx context.Context, t *task.Task) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tasks (id, owner_id, description, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID.String(), t.OwnerID.String(), t.Description, t.Completed, t.CreatedAt, t.UpdatedAt)
	if store.IsForeignKeyViolation(err) {
		return oops.Code("TASK_OWNER_NOT_FOUND").
			With("owner_id", t.OwnerID.String()).
			Wrap(err)
	}
	if err != nil {
		return oops.Code("TASK_CREATE_FAILED").
			With("owner_id", t.OwnerID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves one of the owner's tasks.
func (r *TaskRepository) Get(ctx context.Context, ownerID, id ulid.ULID) (*task.Task, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND owner_id = $2
	`, id.String(), ownerID.String())

	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TASK_NOT_FOUND").
			With("task_id", id.String()).
			Wrap(task.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TASK_GET_FAILED").
			With("task_id", id.String()).
			Wrap(err)
	}
	return t, nil
}

// List returns the owner's tasks filtered, sorted and paged by opts.
func (r *TaskRepository) List(ctx context.Context, ownerID ulid.ULID, opts task.ListOptions) ([]*task.Task, error) {
	query, args, err := buildListQuery(ownerID, opts)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, oops.Code("TASK_LIST_FAILED").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	defer rows.Close()

	out := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, oops.Code("TASK_LIST_FAILED").
				With("operation", "scan").
				With("owner_id", ownerID.String()).
				Wrap(err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TASK_LIST_FAILED").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	return out, nil
}

func buildListQuery(ownerID ulid.ULID, opts task.ListOptions) (string, []any, error) {
	sort := opts.Sort
	if sort.Field == "" {
		sort = task.DefaultSort
	}
	col, ok := sortColumns[sort.Field]
	if !ok {
		return "", nil, oops.Code("TASK_BAD_SORT").
			With("field", string(sort.Field)).
			Errorf("unsupported sort field")
	}

	var b strings.Builder
	args := []any{ownerID.String()}
	b.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1`)
	if opts.Completed != nil {
		args = append(args, *opts.Completed)
		b.WriteString(` AND completed = $` + strconv.Itoa(len(args)))
	}

	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}
	b.WriteString(` ORDER BY ` + col + ` ` + dir + `, id ASC`)

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		b.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}
	if opts.Skip > 0 {
		args = append(args, opts.Skip)
		b.WriteString(` OFFSET $` + strconv.Itoa(len(args)))
	}
	return b.String(), args, nil
}

// Update persists description, completion and UpdatedAt.
func (r *TaskRepository) Update(ctx context.Context, t *task.Task) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE tasks SET description = $3, completed = $4, updated_at = $5
		WHERE id = $1 AND owner_id = $2
	`, t.ID.String(), t.OwnerID.String(), t.Description, t.Completed, t.UpdatedAt)
	if err != nil {
		return oops.Code("TASK_UPDATE_FAILED").
			With("task_id", t.ID.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("TASK_NOT_FOUND").
			With("task_id", t.ID.String()).
			Wrap(task.ErrNotFound)
	}
	return nil
}

// Delete removes one of the owner's tasks.
func (r *TaskRepository) Delete(ctx context.Context, ownerID, id ulid.ULID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM tasks WHERE id = $1 AND owner_id = $2
	`, id.String(), ownerID.String())
	if err != nil {
		return oops.Code("TASK_DELETE_FAILED").
			With("task_id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("TASK_NOT_FOUND").
			With("task_id", id.String()).
			Wrap(task.ErrNotFound)
	}
	return nil
}

func scanTask(row pgx.Row) (*task.Task, error) {
	var (
		t              task.Task
		idStr, ownerID string
	)
	if err := row.Scan(&idStr, &ownerID, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	var err error
	if t.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("TASK_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	if t.OwnerID, err = ulid.Parse(ownerID); err != nil {
		return nil, oops.Code("TASK_CORRUPT_ID").With("owner_id", ownerID).Wrap(err)
	}
	return &t, nil
}
