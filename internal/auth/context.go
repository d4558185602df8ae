// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package auth

import "context"

// DefaultIdentityID is the identity of the token-holding operator.
const DefaultIdentityID = "default"

type contextKey struct{}

var identityKey = contextKey{}

// ContextWithIdentity returns ctx carrying id.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by ContextWithIdentity, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// NewDefaultIdentity returns the operator identity for method.
func NewDefaultIdentity(method string) *Identity {
	return &Identity{
		ID:     DefaultIdentityID,
		Type:   IdentityService,
		Method: method,
	}
}
