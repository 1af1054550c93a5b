// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package errutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode fails t unless err carries code.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equalf(t, code, Code(err), "unexpected code on %q", err)
}

// AssertErrorContext fails t unless err carries value under key.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	got, ok := Value(err, key)
	require.Truef(t, ok, "no %q in context of %q", key, err)
	assert.Equal(t, value, got)
}

// AssertInvalidField fails t unless err is a validation failure naming field.
func AssertInvalidField(t testing.TB, err error, field string) {
	t.Helper()
	AssertErrorCode(t, err, CodeValidationFailed)
	AssertErrorContext(t, err, "field", field)
}
