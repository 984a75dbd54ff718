// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth provides session validation, user provisioning and
// authorization for both hub modes (local and workos).
package auth

import (
	"context"
	"errors"
)

// Common auth errors.
var (
	// ErrNoSession is returned when a request carries no usable credential.
	ErrNoSession = errors.New("no session")
	// ErrSessionExpired is returned for a well-formed but expired session.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidSession is returned for a malformed or tampered session.
	ErrInvalidSession = errors.New("invalid session")
)

// AuthMethod values recorded on the identity.
const (
	MethodLocalCookie = "local_cookie"
	MethodSSOCookie   = "sso_cookie"
	MethodBearer      = "bearer"
	// MethodStatic marks the implicit single-tenant identity on stdio.
	MethodStatic = "static"
)

// Identity is the resolved caller attached to the request context.
type Identity struct {
	UserID       string
	Email        string
	WorkspaceID  string
	Role         string
	IsSuperAdmin bool
	// AuthMethod records which credential produced this identity.
	AuthMethod string
}

// identityContextKey keys the Identity in a context. An empty struct type
// cannot collide with keys from other packages.
type identityContextKey struct{}

// WithIdentity stores an Identity in the context. A nil identity returns
// the context unchanged.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext retrieves the authenticated Identity, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok
}
