// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package errutil

// Client-facing error codes. The HTTP layer maps these to statuses; any
// other code is treated as an internal failure.
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeNotFound           = "NOT_FOUND"
	CodeEmailTaken         = "EMAIL_TAKEN"
)
