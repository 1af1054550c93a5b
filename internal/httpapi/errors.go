// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package httpapi

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/pkg/errutil"
)

// statusFor maps a client-facing error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case errutil.CodeValidationFailed, errutil.CodeInvalidCredentials:
		return http.StatusBadRequest
	case errutil.CodeUnauthenticated:
		return http.StatusUnauthorized
	case errutil.CodeNotFound:
		return http.StatusNotFound
	case errutil.CodeEmailTaken:
		return http.StatusConflict
	case errutil.CodeAccountLocked:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Only validation errors echo their message; every
// other kind gets a fixed message so responses leak nothing.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errutil.Code(err)
	status := statusFor(code)
	body := auth.ErrorBody{Code: code}

	switch code {
	case errutil.CodeValidationFailed:
		body.Message = err.Error()
		field, _ := errutil.Value(err, "field")
		body.Field, _ = field.(string)
	case errutil.CodeInvalidCredentials:
		body.Message = "unable to login"
	case errutil.CodeAccountLocked:
		body.Message = "too many failed login attempts, try again later"
		if secs, ok := retryAfter(err, time.Now()); ok {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	case errutil.CodeUnauthenticated:
		body.Message = "please authenticate"
		w.Header().Set("WWW-Authenticate", `Bearer realm="taskforge"`)
	case errutil.CodeNotFound:
		body.Message = "not found"
	case errutil.CodeEmailTaken:
		body.Message = "email is already registered"
		body.Field = "email"
	default:
		body.Code = "INTERNAL"
		body.Message = "internal server error"
		errutil.LogErrorContext(r.Context(), h.logger, slog.LevelError, "request failed", err)
	}

	if status < http.StatusInternalServerError {
		h.logger.DebugContext(r.Context(), "request rejected", "code", code, "status", status)
	}
	auth.WriteJSON(w, status, body)
}

// retryAfter returns the whole seconds until the lock recorded on err ends.
func retryAfter(err error, now time.Time) (int, bool) {
	v, _ := errutil.Value(err, "locked_until")
	until, ok := v.(time.Time)
	if !ok || !until.After(now) {
		return 0, false
	}
	return int(math.Ceil(until.Sub(now).Seconds())), true
}
