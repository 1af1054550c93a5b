// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import "context"

// Identity is the authenticated caller of a request.
type Identity struct {
	User  *User
	Token string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by the gate, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
