// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// Authenticator resolves caller identity for HTTP and MCP requests in
// whichever mode the hub is configured for.
type Authenticator struct {
	store       store.Store
	config      *config.Provider
	auditor     *audit.Auditor
	provisioner *Provisioner

	// SSO discovery is deferred until the first workos-mode request so
	// that an unreachable issuer cannot block startup.
	ssoMu  sync.Mutex
	sso    *SSOAuthenticator
	issuer string
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(s store.Store, cfg *config.Provider, auditor *audit.Auditor) *Authenticator {
	return &Authenticator{
		store:       s,
		config:      cfg,
		auditor:     auditor,
		provisioner: NewProvisioner(s, cfg, auditor),
	}
}

// Resolve authenticates a request, returning the caller identity or an
// auth error. Bearer tokens are checked first, then the mode's cookie.
func (a *Authenticator) Resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	cfg, err := a.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	if token := bearerToken(r); token != "" {
		return a.resolveBearer(ctx, cfg, token)
	}

	switch cfg.AppMode {
	case config.ModeLocal:
		return a.resolveLocalCookie(ctx, cfg, r)
	case config.ModeWorkOS:
		return a.resolveSSOCookie(ctx, cfg, r)
	default:
		return nil, ErrNoSession
	}
}

// Middleware authenticates every request and stores the identity in the
// context. Unauthenticated requests get a generic 401; the reason is
// logged, never surfaced.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.Resolve(r.Context(), r)
		if err != nil {
			logger.Debugw("authentication failed", "path", r.URL.Path, "error", err)
			// A sealed session that failed validation is dead; expire it so
			// the browser stops re-presenting it.
			if _, cookieErr := r.Cookie(SSOSessionCookie); cookieErr == nil && bearerToken(r) == "" {
				ClearSessionCookie(w, SSOSessionCookie)
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireSuperAdmin rejects non-super-admin callers with 403.
func (a *Authenticator) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || !identity.IsSuperAdmin {
			a.denied(r.Context(), identity, "super_admin")
			http.Error(w, "forbidden: super_admin required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireWorkspaceOwner allows super-admins, and otherwise requires the
// {workspaceID} route parameter (or the caller's own workspace when the
// route carries none) to match the caller's workspace.
func (a *Authenticator) RequireWorkspaceOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if identity.IsSuperAdmin {
			next.ServeHTTP(w, r)
			return
		}
		target := chi.URLParam(r, "workspaceID")
		if target != "" && target != identity.WorkspaceID {
			a.denied(r.Context(), identity, "workspace_owner")
			http.Error(w, "forbidden: workspace_owner required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission gates a route on the role-permission table.
func (a *Authenticator) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !HasPermission(identity, permission) {
				a.denied(r.Context(), identity, permission)
				http.Error(w, "forbidden: "+permission+" required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RefreshMiddleware proactively refreshes near-expiry SSO sessions on
// authenticated requests, resealing the cookie in the response. A refresh
// failure is not fatal here; expiry will surface on a later request.
func (a *Authenticator) RefreshMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		cfg, err := a.config.Get(ctx)
		if err != nil || cfg.AppMode != config.ModeWorkOS {
			next.ServeHTTP(w, r)
			return
		}
		cookie, err := r.Cookie(SSOSessionCookie)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		session, err := UnsealSession(cookie.Value, []byte(cfg.CookiePassword))
		if err != nil || !session.NearExpiry() {
			next.ServeHTTP(w, r)
			return
		}

		sso, err := a.ssoAuthenticator(ctx, cfg)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		refreshed, err := sso.Refresh(ctx, session)
		if err != nil {
			logger.Debugw("proactive session refresh failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if sealed, err := SealSession(refreshed, []byte(cfg.CookiePassword)); err == nil {
			http.SetCookie(w, sessionCookie(SSOSessionCookie, sealed))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) resolveBearer(ctx context.Context, cfg *config.RuntimeConfig, token string) (*Identity, error) {
	// Local API key grants the pre-provisioned admin identity.
	if cfg.LocalAPIKey != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(cfg.LocalAPIKey)) == 1 {
		user, err := a.store.GetUserByEmail(ctx, cfg.LocalAdminEmail)
		if err != nil {
			return nil, ErrInvalidSession
		}
		return identityFromUser(user, MethodBearer), nil
	}

	if cfg.AppMode == config.ModeWorkOS {
		sso, err := a.ssoAuthenticator(ctx, cfg)
		if err != nil {
			return nil, err
		}
		claims, err := sso.VerifyBearer(ctx, token)
		if err != nil {
			return nil, err
		}
		return a.identityFromClaims(ctx, claims, MethodBearer)
	}
	return nil, ErrInvalidSession
}

func (a *Authenticator) resolveLocalCookie(ctx context.Context, cfg *config.RuntimeConfig, r *http.Request) (*Identity, error) {
	cookie, err := r.Cookie(LocalSessionCookie)
	if err != nil {
		return nil, ErrNoSession
	}
	if cfg.LocalAPIKey == "" {
		return nil, ErrInvalidSession
	}
	session, err := NewLocalSessionCodec(cfg.LocalAPIKey).Decode(cookie.Value)
	if err != nil {
		return nil, err
	}

	user, err := a.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, ErrInvalidSession
	}
	return identityFromUser(user, MethodLocalCookie), nil
}

func (a *Authenticator) resolveSSOCookie(ctx context.Context, cfg *config.RuntimeConfig, r *http.Request) (*Identity, error) {
	cookie, err := r.Cookie(SSOSessionCookie)
	if err != nil {
		return nil, ErrNoSession
	}
	session, err := UnsealSession(cookie.Value, []byte(cfg.CookiePassword))
	if err != nil {
		return nil, err
	}

	sso, err := a.ssoAuthenticator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	claims, err := sso.Authenticate(ctx, session)
	if err != nil {
		// Expired ID token: fall back to the refresh token once.
		refreshed, refreshErr := sso.Refresh(ctx, session)
		if refreshErr != nil {
			return nil, ErrSessionExpired
		}
		claims, err = sso.Authenticate(ctx, refreshed)
		if err != nil {
			return nil, ErrSessionExpired
		}
	}
	return a.identityFromClaims(ctx, claims, MethodSSOCookie)
}

// identityFromClaims provisions the user on first sight, then builds the
// identity.
func (a *Authenticator) identityFromClaims(ctx context.Context, claims *SSOClaims, method string) (*Identity, error) {
	user, err := a.provisioner.EnsureUser(ctx, claims.Email, claims.GivenName, claims.FamilyName, "sso")
	if err != nil {
		return nil, err
	}
	return identityFromUser(user, method), nil
}

// ssoAuthenticator lazily discovers the configured issuer.
func (a *Authenticator) ssoAuthenticator(ctx context.Context, cfg *config.RuntimeConfig) (*SSOAuthenticator, error) {
	a.ssoMu.Lock()
	defer a.ssoMu.Unlock()
	if a.sso != nil && a.issuer == cfg.WorkOSIssuerURL {
		return a.sso, nil
	}
	sso, err := NewSSOAuthenticator(ctx, cfg.WorkOSIssuerURL, cfg.WorkOSClientID, cfg.WorkOSAPIKey)
	if err != nil {
		return nil, err
	}
	a.sso = sso
	a.issuer = cfg.WorkOSIssuerURL
	return sso, nil
}

func (a *Authenticator) denied(ctx context.Context, identity *Identity, permission string) {
	actor := audit.SystemActor
	workspaceID := ""
	if identity != nil {
		actor = audit.Actor{ID: identity.UserID, Email: identity.Email, Type: "user"}
		workspaceID = identity.WorkspaceID
	}
	a.auditor.LogDenied(ctx, actor, workspaceID, permission)
}

func identityFromUser(user *store.User, method string) *Identity {
	return &Identity{
		UserID:       user.ID,
		Email:        user.Email,
		WorkspaceID:  user.WorkspaceID,
		Role:         user.Role,
		IsSuperAdmin: user.IsSuperAdmin,
		AuthMethod:   method,
	}
}

// sessionCookie builds a hardened session cookie.
func sessionCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(localSessionTTL.Seconds()),
	}
}

// ClearSessionCookie expires a session cookie on the response.
func ClearSessionCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// SetSessionCookie sets a session cookie on the response.
func SetSessionCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, sessionCookie(name, value))
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
