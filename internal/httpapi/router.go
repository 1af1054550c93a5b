// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package httpapi exposes the TaskForge REST API.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/avatar"
	"github.com/taskforge/taskforge/internal/observability"
	"github.com/taskforge/taskforge/internal/task"
	"github.com/taskforge/taskforge/pkg/errutil"
)

// Deps are the services the API is built on. Metrics are optional.
type Deps struct {
	Sessions    *auth.SessionManager
	Tasks       *task.Service
	Avatars     *avatar.Service
	AuthMetrics *auth.Metrics
	HTTPMetrics *observability.Metrics
	Logger      *slog.Logger
}

type handlers struct {
	sessions *auth.SessionManager
	tasks    *task.Service
	avatars  *avatar.Service
	logger   *slog.Logger
}

// NewRouter builds the API handler.
//
// Public routes: POST /users, POST /users/login, GET /users/{id}/avatar.
// Everything else sits behind the auth gate and is scoped to the caller.
func NewRouter(d Deps) (http.Handler, error) {
	if d.Sessions == nil || d.Tasks == nil || d.Avatars == nil {
		return nil, oops.Errorf("sessions, tasks and avatars services are required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{
		sessions: d.Sessions,
		tasks:    d.Tasks,
		avatars:  d.Avatars,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observe(logger, d.HTTPMetrics))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, oops.Code(errutil.CodeNotFound).Errorf("no such route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		auth.WriteJSON(w, http.StatusMethodNotAllowed, auth.ErrorBody{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"})
	})

	r.Post("/users", h.register)
	r.Post("/users/login", h.login)
	r.Get("/users/{id}/avatar", h.getAvatar)

	r.Group(func(r chi.Router) {
		r.Use(auth.Gate(d.Sessions, d.AuthMetrics, logger))

		r.Post("/users/logout", h.logout)
		r.Post("/users/logoutAll", h.logoutAll)
		r.Get("/users/me", h.profile)
		r.Patch("/users/me", h.updateProfile)
		r.Delete("/users/me", h.deleteAccount)
		r.Get("/users/me/sessions", h.listSessions)
		r.Post("/users/me/avatar", h.uploadAvatar)
		r.Delete("/users/me/avatar", h.deleteAvatar)

		r.Post("/tasks", h.createTask)
		r.Get("/tasks", h.listTasks)
		r.Get("/tasks/{id}", h.getTask)
		r.Patch("/tasks/{id}", h.updateTask)
		r.Delete("/tasks/{id}", h.deleteTask)
	})

	return r, nil
}
