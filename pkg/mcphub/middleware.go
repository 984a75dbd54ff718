// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package mcphub

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/omnihub-ai/omnihub/pkg/auth"
	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// sessionMiddleware writes the transport session id into request state.
func (h *Hub) sessionMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, state := ensureState(ctx)
		if session := server.ClientSessionFromContext(ctx); session != nil {
			state.SessionID = session.SessionID()
		}
		return next(ctx, req)
	}
}

// injectionMiddleware resolves caller identity and, for the requested
// tool, loads the caller's persisted config into request state.
func (h *Hub) injectionMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, state := ensureState(ctx)

		identity, ok := auth.IdentityFromContext(ctx)
		if !ok {
			identity = h.cfg.StaticIdentity
		}
		if identity != nil {
			state.UserID = identity.UserID
			state.WorkspaceID = identity.WorkspaceID
		}

		if source := h.configSources[req.Params.Name]; source != "" && state.UserID != "" {
			config, err := h.cfg.Tools.GetConfig(ctx, state.UserID, source)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			state.ToolConfig = config
		}
		return next(ctx, req)
	}
}

// loggingMiddleware records tool name, caller, duration and outcome.
func (h *Hub) loggingMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := next(ctx, req)

		caller := ""
		if state, ok := StateFromContext(ctx); ok {
			caller = state.UserID
		}
		fields := []any{
			"tool", req.Params.Name,
			"caller", caller,
			"duration", time.Since(start).String(),
		}
		switch {
		case err != nil:
			logger.Errorw("tool call failed", append(fields, "error", err)...)
		case result != nil && result.IsError:
			logger.Warnw("tool call returned error result", fields...)
		default:
			logger.Infow("tool call completed", fields...)
		}
		return result, err
	}
}

// rateLimitMiddleware is a reserved hook; no rate limit policy is
// enforced yet.
func (*Hub) rateLimitMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return next
}

// accessControlMiddleware is a reserved hook; tool-level access policy
// is TBD.
func (*Hub) accessControlMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return next
}
