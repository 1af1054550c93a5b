// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package auth provides the credential and session-token subsystem for TaskForge.
//
// # Components
//
//   - PasswordHasher - one-way salted argon2id hashing
//   - TokenIssuer - mints and verifies signed, expiring session tokens
//   - CredentialStore - credential lookup plus the per-user set of active tokens
//   - SessionManager - register, login, logout and logout-all orchestration
//   - Gate - HTTP middleware that resolves a bearer token to an Identity
//
// A token is accepted only when its signature verifies, it has not expired,
// and its digest is still a member of the owning user's token set. Removing
// the digest revokes the token immediately.
//
// Persistence is abstracted behind UserRepository and TokenRepository.
// Implementations live in internal/auth/postgres and internal/store/memory.
package auth
