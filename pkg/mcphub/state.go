// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcphub serves the hub's tool operations over the MCP protocol,
// on stdio and streamable HTTP transports.
package mcphub

import "context"

// RequestState is the per-call scratch space the middleware chain fills
// in. Tools read caller identity and config exclusively from here, never
// from process globals; that is what makes the hub multi-tenant.
type RequestState struct {
	SessionID   string
	UserID      string
	WorkspaceID string
	ToolConfig  map[string]any
}

type stateContextKey struct{}

// ensureState returns the call's RequestState, creating one if the
// context carries none yet.
func ensureState(ctx context.Context) (context.Context, *RequestState) {
	if state, ok := StateFromContext(ctx); ok {
		return ctx, state
	}
	state := &RequestState{}
	return context.WithValue(ctx, stateContextKey{}, state), state
}

// StateFromContext retrieves the call's RequestState.
func StateFromContext(ctx context.Context) (*RequestState, bool) {
	state, ok := ctx.Value(stateContextKey{}).(*RequestState)
	return state, ok
}
