// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"maps"
	"net/http"
	"slices"

	"github.com/samber/oops"

	"github.com/taskforge/taskforge/pkg/errutil"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON object from the request into v. When allowed is
// non-nil, any top-level key outside it is rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowed []string) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("body", "request body must be at most %d bytes", maxBodyBytes)
		}
		return oops.Code("REQUEST_READ_FAILED").Wrap(err)
	}

	if allowed != nil {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return badRequest("body", "request body must be a JSON object")
		}
		for _, k := range slices.Sorted(maps.Keys(fields)) {
			if !slices.Contains(allowed, k) {
				return badRequest(k, "invalid update: %q cannot be changed", k)
			}
		}
	}

	if err := json.Unmarshal(raw, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return badRequest(typeErr.Field, "%s has the wrong type", typeErr.Field)
		}
		return badRequest("body", "request body must be a JSON object")
	}
	return nil
}

func badRequest(field, format string, args ...any) error {
	return oops.Code(errutil.CodeValidationFailed).
		With("field", field).
		Errorf(format, args...)
}
