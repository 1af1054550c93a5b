// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres
