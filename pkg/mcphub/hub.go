// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package mcphub

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/auth"
	"github.com/omnihub-ai/omnihub/pkg/channels"
	"github.com/omnihub-ai/omnihub/pkg/timers"
	"github.com/omnihub-ai/omnihub/pkg/usertools"
	"github.com/omnihub-ai/omnihub/pkg/versions"
)

// serverName identifies the hub to MCP clients.
const serverName = "omnihub"

// Config wires the hub's dependencies.
type Config struct {
	Tools    *usertools.Manager
	Channels *channels.Manager
	Timers   *timers.Manager
	Auditor  *audit.Auditor

	// Auth resolves identity on the HTTP transport. Nil on stdio.
	Auth *auth.Authenticator
	// StaticIdentity is the single-tenant fallback used when a call
	// carries no resolved identity, e.g. local stdio usage.
	StaticIdentity *auth.Identity
}

// Hub is the MCP protocol surface.
type Hub struct {
	cfg Config
	mcp *server.MCPServer

	// configSources maps an MCP tool name to the catalogue tool whose
	// per-user config is injected for that call.
	configSources map[string]string
}

// New builds the MCP server with the full middleware chain and tool set.
func New(cfg Config) *Hub {
	h := &Hub{cfg: cfg, configSources: make(map[string]string)}

	h.mcp = server.NewMCPServer(
		serverName,
		versions.GetVersionInfo().Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		// Leaf to root: session, config injection, logging, then the
		// reserved rate-limit and access-control hooks.
		server.WithToolHandlerMiddleware(h.accessControlMiddleware),
		server.WithToolHandlerMiddleware(h.rateLimitMiddleware),
		server.WithToolHandlerMiddleware(h.loggingMiddleware),
		server.WithToolHandlerMiddleware(h.injectionMiddleware),
		server.WithToolHandlerMiddleware(h.sessionMiddleware),
	)

	h.registerManagementTools()
	h.registerCredentialTools()
	h.registerChannelTools()
	h.registerTimerTools()
	h.registerSparkTools()
	return h
}

// ServeStdio serves the protocol on stdin/stdout until EOF or ctx
// cancellation. Stdout carries only protocol frames; all diagnostics go
// to stderr via the logger.
func (h *Hub) ServeStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(h.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// Handler returns the streamable HTTP transport for mounting at /mcp.
// Identity is resolved per-request before the protocol layer runs.
func (h *Hub) Handler() http.Handler {
	return server.NewStreamableHTTPServer(
		h.mcp,
		server.WithEndpointPath("/mcp"),
		server.WithHTTPContextFunc(h.httpContext),
	)
}

// httpContext stamps identity and transport metadata into the request
// context. Resolution failures leave the call unauthenticated; tools that
// need identity reject it themselves.
func (h *Hub) httpContext(ctx context.Context, r *http.Request) context.Context {
	ctx = audit.WithRequestInfo(ctx, audit.RequestInfo{
		RequestID: r.Header.Get("X-Request-Id"),
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if h.cfg.Auth != nil {
		if identity, err := h.cfg.Auth.Resolve(ctx, r); err == nil {
			ctx = auth.WithIdentity(ctx, identity)
		}
	}
	return ctx
}

// jsonResult renders a payload as a JSON text result.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("failed to encode result: " + err.Error())
	}
	return mcp.NewToolResultText(string(data))
}

// requireUser rejects calls that reached a user-scoped tool without a
// resolved identity.
func requireUser(ctx context.Context) (*RequestState, *mcp.CallToolResult) {
	state, ok := StateFromContext(ctx)
	if !ok || state.UserID == "" {
		return nil, mcp.NewToolResultError("not authenticated")
	}
	return state, nil
}
