// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/logger"
)

// setupWhitelist lists path prefixes reachable while the hub is
// unconfigured. Everything else is gated until the wizard completes.
var setupWhitelist = []string{
	"/api/v1/setup",
	"/api/v1/system",
	"/api/v1/health",
	"/api/v1/info",
	"/api/setup",
	"/api/system",
	"/api/health",
	"/api/info",
	"/app",
	"/health",
	"/docs",
}

// requestIDHeaderMiddleware echoes the generated request id back to the
// caller for correlation with the audit trail.
func requestIDHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-Id", id)
		}
		next.ServeHTTP(w, r)
	})
}

func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware sets the response security headers. HSTS and
// the CSP report-uri come from the runtime config.
func securityHeadersMiddleware(cfg *config.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			csp := "default-src 'self'; script-src 'self'; style-src 'self'; frame-ancestors 'none'; form-action 'self'"
			if rc, err := cfg.Get(r.Context()); err == nil {
				if rc.CSPReportURI != "" {
					csp += "; report-uri " + rc.CSPReportURI
				}
				if rc.HSTSEnabled {
					h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
				}
			}
			h.Set("Content-Security-Policy", csp)

			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware allows only the origins from the runtime config. Because
// responses carry credentials, there is no wildcard fallback: an empty
// allowlist means same-origin only.
func corsMiddleware(cfg *config.Provider) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			rc, err := cfg.Get(r.Context())
			if err != nil {
				return false
			}
			for _, allowed := range rc.AllowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}

// setupGateMiddleware blocks everything outside the whitelist until the
// setup wizard completes. Browsers are redirected to the wizard; API
// callers get a 503 pointing at it.
func setupGateMiddleware(cfg *config.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc, err := cfg.Get(r.Context())
			if err != nil {
				logger.Errorf("failed to load runtime config: %v", err)
				http.Error(w, `{"error":"configuration unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			if rc.Configured() || whitelisted(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if strings.Contains(r.Header.Get("Accept"), "text/html") {
				http.Redirect(w, r, "/app/setup", http.StatusTemporaryRedirect)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"setup required","setup_url":"/app/setup","request_id":"` +
				middleware.GetReqID(r.Context()) + `"}`))
		})
	}
}

func whitelisted(path string) bool {
	for _, prefix := range setupWhitelist {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
