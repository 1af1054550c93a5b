// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package httpapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/taskforge/taskforge/internal/avatar"
)

// avatarField is the multipart form field carrying the image.
const avatarField = "avatar"

// multipartOverhead allows for boundaries and part headers around the image.
const multipartOverhead = 64 << 10

func (h *handlers) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, avatar.MaxSize+multipartOverhead)
	file, _, err := r.FormFile(avatarField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			err = badRequest(avatarField, "avatar must be at most %d bytes", avatar.MaxSize)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			err = badRequest(avatarField, "avatar is required")
		default:
			err = badRequest(avatarField, "malformed multipart body")
		}
		h.writeError(w, r, err)
		return
	}
	defer func() { _ = file.Close() }()

	// One byte past the limit is enough for Upload to reject it.
	data, err := io.ReadAll(io.LimitReader(file, avatar.MaxSize+1))
	if err != nil {
		h.writeError(w, r, oops.Code("AVATAR_READ_FAILED").Wrap(err))
		return
	}
	if _, err := h.avatars.Upload(r.Context(), id.User.ID, data); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err == nil {
		err = h.avatars.Delete(r.Context(), id.User.ID)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getAvatar is public: anyone who knows a user id can fetch their image.
func (h *handlers) getAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.avatars.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "", a.UpdatedAt, bytes.NewReader(a.Data))
}
