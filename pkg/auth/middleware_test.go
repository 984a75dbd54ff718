// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

type authFixture struct {
	auth   *Authenticator
	store  store.Store
	apiKey string
	admin  *store.User
}

// newLocalFixture stands up a local-mode hub with one provisioned admin.
func newLocalFixture(t *testing.T) *authFixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	apiKey, err := GenerateLocalAPIKey()
	require.NoError(t, err)
	require.NoError(t, s.SetSystemConfig(ctx, config.KeyAppMode, config.ModeLocal, false))
	require.NoError(t, s.SetSystemConfig(ctx, config.KeyLocalAPIKey, apiKey, false))
	require.NoError(t, s.SetSystemConfig(ctx, config.KeyLocalAdminEmail, "admin@localhost", false))

	cfg := config.NewProvider(s, nil)
	auth := NewAuthenticator(s, cfg, audit.NewAuditor(s))

	admin, err := auth.provisioner.EnsureUser(ctx, "admin@localhost", "Admin", "", "local")
	require.NoError(t, err)
	require.NoError(t, s.SetSuperAdmin(ctx, admin.ID, true))
	admin.IsSuperAdmin = true

	return &authFixture{auth: auth, store: s, apiKey: apiKey, admin: admin}
}

func echoIdentity(t *testing.T, captured **Identity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		*captured = identity
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareLocalCookie(t *testing.T) {
	t.Parallel()
	f := newLocalFixture(t)

	codec := NewLocalSessionCodec(f.apiKey)
	value, err := codec.Encode(codec.NewSession(f.admin.ID, f.admin.Email, f.admin.WorkspaceID, true))
	require.NoError(t, err)

	var got *Identity
	handler := f.auth.Middleware(echoIdentity(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/tools", nil)
	req.AddCookie(&http.Cookie{Name: LocalSessionCookie, Value: value})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.admin.ID, got.UserID)
	assert.Equal(t, f.admin.WorkspaceID, got.WorkspaceID)
	assert.Equal(t, MethodLocalCookie, got.AuthMethod)
	assert.True(t, got.IsSuperAdmin)
}

func TestMiddlewareBearerAPIKey(t *testing.T) {
	t.Parallel()
	f := newLocalFixture(t)

	var got *Identity
	handler := f.auth.Middleware(echoIdentity(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/tools", nil)
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.admin.ID, got.UserID)
	assert.Equal(t, MethodBearer, got.AuthMethod)
}

func TestMiddlewareRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	f := newLocalFixture(t)
	handler := f.auth.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	for name, build := range map[string]func(*http.Request){
		"no credential": func(*http.Request) {},
		"wrong bearer": func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer omni_local_wrong")
		},
		"tampered cookie": func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: LocalSessionCookie, Value: "e30.deadbeef"})
		},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/user/tools", nil)
		build(req)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.NotContains(t, rec.Body.String(), "expired", "reason must stay generic: %s", name)
	}
}

func TestMiddlewareClearsDeadSSOCookie(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.SetSystemConfig(ctx, config.KeyAppMode, config.ModeWorkOS, false))
	require.NoError(t, s.SetSystemConfig(ctx, config.KeyWorkOSCookiePassword,
		"0123456789abcdef0123456789abcdef", false))

	auth := NewAuthenticator(s, config.NewProvider(s, nil), audit.NewAuditor(s))
	handler := auth.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/tools", nil)
	req.AddCookie(&http.Cookie{Name: SSOSessionCookie, Value: "not-a-sealed-session"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// The dead cookie is expired so the browser stops re-presenting it.
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == SSOSessionCookie && c.MaxAge == -1 {
			cleared = true
		}
	}
	assert.True(t, cleared, "wos_session must be expired on auth failure")
}

func TestRequireSuperAdmin(t *testing.T) {
	t.Parallel()
	f := newLocalFixture(t)

	handler := f.auth.RequireSuperAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	member := &Identity{UserID: "u2", WorkspaceID: "w2", Role: store.RoleWorkspaceMember}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/workspaces", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(WithIdentity(req.Context(), member)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The denial lands in the audit log.
	entries, err := f.store.ListAuditEntries(context.Background(), "w2",
		store.AuditFilter{Category: audit.CategorySecurity})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	super := &Identity{UserID: "u1", IsSuperAdmin: true}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(WithIdentity(req.Context(), super)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	t.Parallel()
	f := newLocalFixture(t)

	handler := f.auth.RequirePermission(PermWorkspaceWrite)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	cases := []struct {
		role string
		want int
	}{
		{store.RoleWorkspaceOwner, http.StatusOK},
		{store.RoleWorkspaceMember, http.StatusForbidden},
		{store.RoleWorkspaceViewer, http.StatusForbidden},
	}
	for _, tc := range cases {
		identity := &Identity{UserID: "u", WorkspaceID: "w", Role: tc.role}
		req := httptest.NewRequest(http.MethodPut, "/api/v1/workspace", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(WithIdentity(req.Context(), identity)))
		assert.Equal(t, tc.want, rec.Code, tc.role)
		if tc.want == http.StatusForbidden {
			assert.Contains(t, rec.Body.String(), PermWorkspaceWrite)
		}
	}
}

func TestHasPermissionSuperAdminWildcard(t *testing.T) {
	t.Parallel()
	super := &Identity{IsSuperAdmin: true}
	assert.True(t, HasPermission(super, PermServerControl))
	assert.True(t, HasPermission(super, PermAdminRead))

	owner := &Identity{Role: store.RoleWorkspaceOwner}
	assert.False(t, HasPermission(owner, PermServerControl))
	assert.True(t, HasPermission(owner, PermAuditRead))
	assert.False(t, HasPermission(nil, PermToolsRead))
}
