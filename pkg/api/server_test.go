// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/auth"
	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/instances"
	"github.com/omnihub-ai/omnihub/pkg/registry"
	"github.com/omnihub-ai/omnihub/pkg/secrets"
	"github.com/omnihub-ai/omnihub/pkg/store"
	"github.com/omnihub-ai/omnihub/pkg/usertools"
)

var localAPIKeyPattern = regexp.MustCompile(`^omni_local_[A-Za-z0-9_-]{43}$`)

type testServer struct {
	store   store.Store
	config  *config.Provider
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cipher, err := secrets.NewCipherWithKey(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	cfg := config.NewProvider(s, cipher)
	auditor := audit.NewAuditor(s)
	authn := auth.NewAuthenticator(s, cfg, auditor)
	reg := registry.New(s)
	require.NoError(t, reg.Sync(ctx))
	tools := usertools.NewManager(s, reg, cipher)

	handler := Router(Deps{
		Store:       s,
		Config:      cfg,
		Cipher:      cipher,
		Registry:    reg,
		Tools:       tools,
		Instances:   instances.NewManager(tools),
		Auditor:     auditor,
		Auth:        authn,
		RunningHost: config.DefaultHost,
		RunningPort: config.DefaultPort,
	})
	return &testServer{store: s, config: cfg, handler: handler}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, decorate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, d := range decorate {
		d(req)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// completeLocalSetup runs the wizard and returns the generated API key.
func completeLocalSetup(t *testing.T, ts *testServer) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/setup/local", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		APIKey string `json:"api_key"`
	}
	decode(t, rec, &resp)
	require.Regexp(t, localAPIKeyPattern, resp.APIKey)
	return resp.APIKey
}

func TestFirstRunLocalSetup(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/setup/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var before struct {
		IsSetupRequired bool   `json:"is_setup_required"`
		CurrentMode     string `json:"current_mode"`
	}
	decode(t, rec, &before)
	assert.True(t, before.IsSetupRequired)
	assert.Equal(t, "unconfigured", before.CurrentMode)

	key := completeLocalSetup(t, ts)
	assert.Regexp(t, localAPIKeyPattern, key)

	rec = ts.do(t, http.MethodGet, "/api/setup/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var after struct {
		IsSetupRequired bool   `json:"is_setup_required"`
		CurrentMode     string `json:"current_mode"`
		SetupCompleted  bool   `json:"setup_completed"`
	}
	decode(t, rec, &after)
	assert.False(t, after.IsSetupRequired)
	assert.Equal(t, "local", after.CurrentMode)
	assert.True(t, after.SetupCompleted)

	// Rerunning the wizard now requires a super-admin.
	rec = ts.do(t, http.MethodPost, "/api/setup/local", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSetupGateBlocksUntilConfigured(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/user/tools", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "/app/setup")

	// Browsers get redirected instead.
	rec = ts.do(t, http.MethodGet, "/api/user/tools", nil, func(r *http.Request) {
		r.Header.Set("Accept", "text/html")
	})
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/app/setup", rec.Header().Get("Location"))

	// Whitelisted routes stay reachable.
	rec = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	key := completeLocalSetup(t, ts)
	rec = ts.do(t, http.MethodGet, "/api/user/tools", nil, bearer(key))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAddToolWithMissingConfig(t *testing.T) {
	ts := newTestServer(t)
	key := completeLocalSetup(t, ts)

	rec := ts.do(t, http.MethodPost, "/api/user/tools/spark",
		map[string]any{"config": map[string]any{}}, bearer(key))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "api_key")

	rec = ts.do(t, http.MethodGet, "/api/user/tools", nil, bearer(key))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Tools []struct {
			ToolName string `json:"tool_name"`
		} `json:"tools"`
	}
	decode(t, rec, &list)
	assert.Empty(t, list.Tools)
}

func TestAddToolWithValidConfig(t *testing.T) {
	ts := newTestServer(t)
	key := completeLocalSetup(t, ts)

	cfg := map[string]any{"api_key": "k", "base_url": "http://x"}
	rec := ts.do(t, http.MethodPost, "/api/user/tools/spark",
		map[string]any{"config": cfg}, bearer(key))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/user/tools/spark", nil, bearer(key))
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decode(t, rec, &got)
	assert.Equal(t, cfg, got)

	// Adding again is idempotent.
	rec = ts.do(t, http.MethodPost, "/api/user/tools/spark",
		map[string]any{"config": cfg}, bearer(key))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodGet, "/api/user/tools/spark", nil, bearer(key))
	decode(t, rec, &got)
	assert.Equal(t, "k", got["api_key"])
}

func TestWorkspaceIsolationForAdminRoutes(t *testing.T) {
	ts := newTestServer(t)
	completeLocalSetup(t, ts)
	ctx := context.Background()

	member := &store.User{Email: "u1@example.com", MFAGraceEnd: time.Now()}
	require.NoError(t, ts.store.CreateUserWithWorkspace(ctx, member, "W1"))

	cfg, err := ts.config.Get(ctx)
	require.NoError(t, err)
	codec := auth.NewLocalSessionCodec(cfg.LocalAPIKey)
	session, err := codec.Encode(codec.NewSession(member.ID, member.Email, member.WorkspaceID, false))
	require.NoError(t, err)
	asMember := func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: auth.LocalSessionCookie, Value: session})
	}

	rec := ts.do(t, http.MethodGet, "/api/admin/workspaces", nil, asMember)
	require.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, ts.store.SetSuperAdmin(ctx, member.ID, true))

	rec = ts.do(t, http.MethodGet, "/api/admin/workspaces", nil, asMember)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list struct {
		Workspaces []store.Workspace `json:"workspaces"`
	}
	decode(t, rec, &list)
	assert.GreaterOrEqual(t, len(list.Workspaces), 1)
}

func TestSessionRoutes(t *testing.T) {
	ts := newTestServer(t)
	key := completeLocalSetup(t, ts)

	rec := ts.do(t, http.MethodPost, "/api/auth/login", map[string]any{"api_key": "omni_local_wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", map[string]any{"api_key": key})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var session string
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.LocalSessionCookie {
			session = c.Value
		}
	}
	require.NotEmpty(t, session, "login must set the session cookie")

	rec = ts.do(t, http.MethodGet, "/api/auth/me", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: auth.LocalSessionCookie, Value: session})
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me struct {
		Email        string `json:"email"`
		IsSuperAdmin bool   `json:"is_super_admin"`
	}
	decode(t, rec, &me)
	assert.Equal(t, "admin@localhost", me.Email)
	assert.True(t, me.IsSuperAdmin)

	rec = ts.do(t, http.MethodPost, "/api/auth/logout", nil, bearer(key))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "logged_out")

	// Both session cookies are expired on the way out.
	cookies := rec.Result().Cookies()
	names := make(map[string]int)
	for _, c := range cookies {
		names[c.Name] = c.MaxAge
	}
	assert.Equal(t, -1, names[auth.LocalSessionCookie])
	assert.Equal(t, -1, names[auth.SSOSessionCookie])
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	h := rec.Header()
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", h.Get("Referrer-Policy"))
	assert.Contains(t, h.Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.Empty(t, h.Get("Strict-Transport-Security"))
	assert.NotEmpty(t, h.Get("X-Request-Id"))

	// A caller-supplied request id is echoed back unchanged.
	rec = ts.do(t, http.MethodGet, "/health", nil, func(r *http.Request) {
		r.Header.Set("X-Request-Id", "req-42")
	})
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
}

func TestServerStatusReportsDrift(t *testing.T) {
	ts := newTestServer(t)
	key := completeLocalSetup(t, ts)

	rec := ts.do(t, http.MethodGet, "/api/server/status", nil, bearer(key))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status struct {
		RestartRequired bool `json:"restart_required"`
	}
	decode(t, rec, &status)
	assert.False(t, status.RestartRequired)

	rec = ts.do(t, http.MethodPost, "/api/server/apply-config",
		map[string]any{"port": 9000}, bearer(key))
	require.Equal(t, http.StatusOK, rec.Code)
	var applied struct {
		Applied         bool `json:"applied"`
		RestartRequired bool `json:"restart_required"`
	}
	decode(t, rec, &applied)
	assert.True(t, applied.Applied)
	assert.True(t, applied.RestartRequired)

	// Re-applying the same value is a no-op.
	rec = ts.do(t, http.MethodPost, "/api/server/apply-config",
		map[string]any{"port": 9000}, bearer(key))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &applied)
	assert.False(t, applied.Applied)
	assert.False(t, applied.RestartRequired)
}

func TestPortScanRejectsInvalidRange(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/setup/ports/scan",
		map[string]any{"from": 80, "to": 70000})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid-port-range")
}
