// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskforge/taskforge/pkg/errutil"
)

// Authenticator resolves a bearer token to an Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}

// unauthenticatedBody is shared by every gate rejection.
var unauthenticatedBody = ErrorBody{Code: errutil.CodeUnauthenticated, Message: "please authenticate"}

// extractBearerToken returns the token from an Authorization header value.
func extractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Gate returns middleware that admits only requests carrying an active
// session token and attaches the caller's Identity to the request context.
// Every rejection produces the same 401 response.
func Gate(authn Authenticator, metrics *Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				metrics.rejected()
				writeUnauthenticated(w)
				return
			}

			id, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if errutil.HasCode(err, errutil.CodeUnauthenticated) {
					metrics.rejected()
					writeUnauthenticated(w)
					return
				}
				errutil.LogErrorContext(r.Context(), logger, slog.LevelError, "authentication failed", err)
				WriteJSON(w, http.StatusInternalServerError, ErrorBody{Code: "INTERNAL", Message: "internal server error"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="taskforge"`)
	WriteJSON(w, http.StatusUnauthorized, unauthenticatedBody)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}
