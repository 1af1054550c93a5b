// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package httpapi

import (
	"net/http"

	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/pkg/errutil"
)

type sessionResponse struct {
	User  auth.PublicUser `json:"user"`
	Token string          `json:"token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// identity returns the caller attached by the auth gate.
func identity(r *http.Request) (*auth.Identity, error) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil, oops.Code(errutil.CodeUnauthenticated).Errorf("no identity on request")
	}
	return id, nil
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(w, r, &in, nil); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, token, err := h.sessions.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusCreated, sessionResponse{User: user, Token: token})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in, nil); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, token, err := h.sessions.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, sessionResponse{User: user, Token: token})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err == nil {
		err = h.sessions.Logout(r.Context(), id)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) logoutAll(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err == nil {
		err = h.sessions.LogoutAll(r.Context(), id)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, h.sessions.Profile(id))
}

func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sessions, err := h.sessions.Sessions(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, sessions)
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var upd auth.ProfileUpdate
	if err := decodeJSON(w, r, &upd, auth.ProfileUpdateFields); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.sessions.UpdateProfile(r.Context(), id, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, user)
}

func (h *handlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.sessions.DeleteAccount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, user)
}
