// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/task"
	"github.com/taskforge/taskforge/pkg/errutil"
)

// pathID parses the {id} URL parameter. A malformed id is reported as
// not found so it is indistinguishable from someone else's resource.
func pathID(r *http.Request) (ulid.ULID, error) {
	raw := chi.URLParam(r, "id")
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code(errutil.CodeNotFound).With("id", raw).Errorf("not found")
	}
	return id, nil
}

func (h *handlers) createTask(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in task.CreateInput
	if err := decodeJSON(w, r, &in, nil); err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.tasks.Create(r.Context(), id.User.ID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/tasks/"+t.ID.String())
	auth.WriteJSON(w, http.StatusCreated, t)
}

func (h *handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	opts, err := task.ParseListOptions(q.Get("completed"), q.Get("sortBy"), q.Get("limit"), q.Get("skip"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tasks, err := h.tasks.List(r.Context(), id.User.ID, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	auth.WriteJSON(w, http.StatusOK, tasks)
}

func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.tasks.Get(r.Context(), id.User.ID, taskID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, t)
}

func (h *handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var upd task.Update
	if err := decodeJSON(w, r, &upd, task.UpdateFields); err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.tasks.Update(r.Context(), id.User.ID, taskID, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, t)
}

func (h *handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	taskID, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.tasks.Delete(r.Context(), id.User.ID, taskID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, t)
}
