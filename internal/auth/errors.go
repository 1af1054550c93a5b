// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"

	"github.com/taskforge/taskforge/pkg/errutil"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by repositories when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// ErrInvalidToken is the single error returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

func errInvalidCredentials() error {
	return oops.Code(errutil.CodeInvalidCredentials).Errorf("invalid email or password")
}

func errUnauthenticated() error {
	return oops.Code(errutil.CodeUnauthenticated).Errorf("please authenticate")
}

func errValidation(field, format string, args ...any) error {
	return oops.Code(errutil.CodeValidationFailed).
		With("field", field).
		Errorf(format, args...)
}
