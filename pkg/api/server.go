// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package api contains the REST API for OmniHub.
package api

// The OpenAPI spec is generated using "github.com/swaggo/swag/v2/cmd/swag@v2.0.0-rc4"
// To update the OpenAPI spec, run:
//	swag init -g pkg/api/server.go --v3.1 -o docs/server

// @title           OmniHub API
// @version         1.0
// @description     This is the OmniHub API server.

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/omnihub-ai/omnihub/pkg/api/v1"
	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/auth"
	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/instances"
	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/registry"
	"github.com/omnihub-ai/omnihub/pkg/secrets"
	"github.com/omnihub-ai/omnihub/pkg/store"
	"github.com/omnihub-ai/omnihub/pkg/usertools"
)

// Not sure if these values need to be configurable.
const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Deps carries everything the router needs. All fields except Restart and
// BrowseRoot are required.
type Deps struct {
	Store     store.Store
	Config    *config.Provider
	Cipher    *secrets.Cipher
	Registry  *registry.Registry
	Tools     *usertools.Manager
	Instances *instances.Manager
	Auditor   *audit.Auditor
	Auth      *auth.Authenticator

	// Hub is the streamable HTTP MCP transport, mounted at /mcp.
	Hub http.Handler

	// BrowseRoot confines the setup wizard's directory helper. Empty
	// disables browsing.
	BrowseRoot string

	// RunningHost/RunningPort are the values the listener was started
	// with, reported against the saved config by the server routes.
	RunningHost string
	RunningPort int

	// Restart asks the process owner to restart. Nil disables the route.
	Restart func()
}

// Router assembles the full HTTP surface: REST under /api/v1, the MCP
// transport at /mcp, and the bare /health liveness route.
func Router(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		requestIDHeaderMiddleware,
		middleware.Timeout(middlewareTimeout),
		requestInfoMiddleware,
		securityHeadersMiddleware(deps.Config),
		corsMiddleware(deps.Config),
		headersMiddleware,
		setupGateMiddleware(deps.Config),
	)

	// Routers are mounted twice: /api/v1 is the canonical prefix, /api is
	// kept as an unversioned alias.
	public := map[string]http.Handler{
		"/tools":  v1.ToolsRouter(deps.Registry),
		"/setup":  v1.SetupRouter(deps.Store, deps.Config, deps.Cipher, deps.Auditor, deps.Auth, deps.BrowseRoot),
		"/system": v1.SystemRouter(deps.Store),
		// Guards its own authenticated subroutes; login is public.
		"/auth": v1.SessionRouter(deps.Store, deps.Config, deps.Auth, deps.Instances, deps.Auditor),
	}
	for suffix, router := range public {
		r.Mount("/api/v1"+suffix, router)
		r.Mount("/api"+suffix, router)
	}

	// /health and /info are also reachable directly under the API prefix.
	sys := public["/system"]
	for _, prefix := range []string{"/api/v1", "/api"} {
		r.Handle(prefix+"/health", http.StripPrefix(prefix, sys))
		r.Handle(prefix+"/info", http.StripPrefix(prefix, sys))
	}

	// Authenticated surface. RefreshMiddleware rotates SSO cookies that
	// are close to expiry.
	authed := map[string]http.Handler{
		"/user/tools":       v1.UserToolsRouter(deps.Tools, deps.Instances, deps.Auditor),
		"/user/credentials": v1.CredentialsRouter(deps.Tools, deps.Auditor),
		"/workspace":        v1.WorkspaceRouter(deps.Store, deps.Auth, deps.Auditor),
		"/audit-logs":       v1.AuditLogRouter(deps.Store, deps.Auth),
		"/admin":            v1.AdminRouter(deps.Store, deps.Auth),
		"/server": v1.ServerControlRouter(
			deps.Store, deps.Config, deps.Auditor, deps.Auth,
			deps.RunningHost, deps.RunningPort, deps.Restart),
	}
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Middleware, deps.Auth.RefreshMiddleware)
		for suffix, router := range authed {
			r.Mount("/api/v1"+suffix, router)
			r.Mount("/api"+suffix, router)
		}
	})

	if deps.Hub != nil {
		r.Mount("/mcp", deps.Hub)
	}

	// Bare liveness route for load balancers and the setup gate whitelist.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}

// requestInfoMiddleware stamps request metadata for the audit trail.
func requestInfoMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := audit.WithRequestInfo(r.Context(), audit.RequestInfo{
			RequestID: middleware.GetReqID(r.Context()),
			IP:        r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Serve starts the server on the given address and serves the API until ctx
// is cancelled. It is assumed that the caller sets up appropriate signal
// handling.
func Serve(ctx context.Context, address string, deps Deps) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              address,
		Handler:           Router(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	logger.Infof("starting HTTP server on %s", address)

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Panicf("server stopped with error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Infof("HTTP server stopped")
	return nil
}
