// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/auth"
	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/networking"
	"github.com/omnihub-ai/omnihub/pkg/secrets"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// defaultLocalAdminEmail is the pre-provisioned admin account in local mode
// when the wizard request names none.
const defaultLocalAdminEmail = "admin@localhost"

// ssoValidator checks WorkOS credentials by performing issuer discovery.
// Swapped in tests to avoid live network calls.
type ssoValidator func(ctx context.Context, issuerURL, clientID, apiKey string) error

// SetupRoutes serves the first-run setup wizard and its helpers. The
// mutating routes work unauthenticated only while the hub is unconfigured;
// afterwards they require a super-admin.
type SetupRoutes struct {
	store    store.Store
	config   *config.Provider
	cipher   *secrets.Cipher
	auditor  *audit.Auditor
	auth     *auth.Authenticator
	browser  *networking.Browser
	validate ssoValidator
}

// SetupRouter sets up the wizard routes. browseRoot confines the directory
// helper; an empty root disables it.
func SetupRouter(
	s store.Store,
	cfg *config.Provider,
	cipher *secrets.Cipher,
	auditor *audit.Auditor,
	authn *auth.Authenticator,
	browseRoot string,
) http.Handler {
	routes := &SetupRoutes{
		store:   s,
		config:  cfg,
		cipher:  cipher,
		auditor: auditor,
		auth:    authn,
		validate: func(ctx context.Context, issuerURL, clientID, apiKey string) error {
			_, err := auth.NewSSOAuthenticator(ctx, issuerURL, clientID, apiKey)
			return err
		},
	}
	if browseRoot != "" {
		if browser, err := networking.NewBrowser(browseRoot); err == nil {
			routes.browser = browser
		} else {
			logger.Warnf("directory browsing disabled: %v", err)
		}
	}

	r := chi.NewRouter()
	r.Get("/status", routes.getStatus)
	r.Get("/mode", routes.getMode)
	r.Post("/local", routes.setupLocal)
	r.Post("/workos", routes.setupWorkOS)
	r.Post("/workos/validate", routes.validateWorkOS)
	r.Post("/upgrade-to-workos", routes.upgradeToWorkOS)
	r.Post("/network-config", routes.setNetworkConfig)
	r.Post("/database-path", routes.setDatabasePath)
	r.Post("/browse", routes.browse)
	r.Post("/ports/scan", routes.scanPorts)
	return r
}

// getStatus
//
//	@Summary	Report setup progress
//	@Tags		setup
//	@Produce	json
//	@Success	200	{object}	setupStatusResponse
//	@Router		/api/v1/setup/status [get]
func (s *SetupRoutes) getStatus(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.config.Get(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusServiceUnavailable, "", "failed to load configuration")
		return
	}
	WriteJSON(w, http.StatusOK, setupStatusResponse{
		IsSetupRequired: !cfg.Configured(),
		CurrentMode:     cfg.AppMode,
		SetupCompleted:  cfg.Configured(),
	})
}

// getMode
//
//	@Summary	Report the configured application mode
//	@Tags		setup
//	@Produce	json
//	@Success	200	{object}	setupModeResponse
//	@Router		/api/v1/setup/mode [get]
func (s *SetupRoutes) getMode(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.config.Get(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusServiceUnavailable, "", "failed to load configuration")
		return
	}
	WriteJSON(w, http.StatusOK, setupModeResponse{Mode: cfg.AppMode})
}

// setupLocal
//
//	@Summary	Complete first-run setup in local mode
//	@Description	Generates the local API key, provisions the admin user,
//	and marks setup complete. The key is shown exactly once in this
//	response; store it somewhere safe.
//	@Tags		setup
//	@Accept		json
//	@Produce	json
//	@Param		body	body		setupLocalRequest	true	"Optional admin email"
//	@Success	200		{object}	setupLocalResponse
//	@Failure	409		{object}	errorResponse
//	@Router		/api/v1/setup/local [post]
func (s *SetupRoutes) setupLocal(w http.ResponseWriter, r *http.Request) {
	if !s.allowMutation(w, r) {
		return
	}

	var req setupLocalRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "", "invalid request body")
		return
	}
	email := req.Email
	if email == "" {
		email = defaultLocalAdminEmail
	}

	apiKey, err := auth.GenerateLocalAPIKey()
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "", "failed to generate API key")
		return
	}
	encrypted, err := s.cipher.EncryptString(apiKey)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "", "failed to protect API key")
		return
	}

	ctx := r.Context()
	admin, err := s.ensureAdminUser(ctx, email)
	if err != nil {
		logger.Errorf("failed to provision local admin: %v", err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to provision admin user")
		return
	}

	writes := []struct {
		key    string
		value  string
		secret bool
	}{
		{config.KeyLocalAPIKey, encrypted, true},
		{config.KeyLocalAdminEmail, email, false},
		{config.KeyAppMode, config.ModeLocal, false},
		{config.KeySetupCompleted, "true", false},
	}
	for _, wr := range writes {
		if err := s.store.SetSystemConfig(ctx, wr.key, wr.value, wr.secret); err != nil {
			WriteError(w, r, http.StatusInternalServerError, "", "failed to persist configuration")
			return
		}
	}
	s.config.Invalidate()

	actor := audit.Actor{ID: admin.ID, Email: admin.Email, Type: "user"}
	s.auditor.LogAdmin(ctx, audit.ActionSetupCompleted, actor, true, "", map[string]any{"mode": config.ModeLocal})

	WriteJSON(w, http.StatusOK, setupLocalResponse{
		Status:     "configured",
		Mode:       config.ModeLocal,
		APIKey:     apiKey,
		AdminEmail: email,
	})
}

// setupWorkOS
//
//	@Summary	Complete first-run setup in WorkOS SSO mode
//	@Tags		setup
//	@Accept		json
//	@Produce	json
//	@Param		body	body		setupWorkOSRequest	true	"SSO credentials"
//	@Success	200		{object}	statusResponse
//	@Failure	400		{object}	errorResponse
//	@Router		/api/v1/setup/workos [post]
func (s *SetupRoutes) setupWorkOS(w http.ResponseWriter, r *http.Request) {
	if !s.allowMutation(w, r) {
		return
	}
	s.applyWorkOS(w, r)
}

// upgradeToWorkOS
//
//	@Summary	Switch an already-configured local hub to WorkOS SSO
//	@Description	Existing local sessions stay valid until expiry; the
//	local API key keeps working for bearer access.
//	@Tags		setup
//	@Accept		json
//	@Produce	json
//	@Param		body	body		setupWorkOSRequest	true	"SSO credentials"
//	@Success	200		{object}	statusResponse
//	@Failure	409		{object}	errorResponse
//	@Router		/api/v1/setup/upgrade-to-workos [post]
func (s *SetupRoutes) upgradeToWorkOS(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.config.Get(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusServiceUnavailable, "", "failed to load configuration")
		return
	}
	if cfg.AppMode != config.ModeLocal {
		WriteError(w, r, http.StatusConflict, "",
			"upgrade requires local mode; current mode is "+cfg.AppMode)
		return
	}
	if !s.requireSuperAdmin(w, r) {
		return
	}
	s.applyWorkOS(w, r)
}

// validateWorkOS
//
//	@Summary	Validate WorkOS credentials without persisting them
//	@Description	Performs OIDC issuer discovery with the supplied values.
//	@Tags		setup
//	@Accept		json
//	@Produce	json
//	@Param		body	body		setupWorkOSRequest	true	"SSO credentials"
//	@Success	200		{object}	validateResponse
//	@Router		/api/v1/setup/workos/validate [post]
func (s *SetupRoutes) validateWorkOS(w http.ResponseWriter, r *http.Request) {
	var req setupWorkOSRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if msg := req.missing(); msg != "" {
		WriteJSON(w, http.StatusOK, validateResponse{Valid: false, Error: msg})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.validate(ctx, req.IssuerURL, req.ClientID, req.APIKey); err != nil {
		WriteJSON(w, http.StatusOK, validateResponse{
			Valid: false,
			Error: "issuer discovery failed: " + err.Error() +
				" (check the issuer URL and client id in the WorkOS dashboard under Applications)",
		})
		return
	}
	WriteJSON(w, http.StatusOK, validateResponse{Valid: true})
}

// setNetworkConfig
//
//	@Summary	Persist the listen host and port
//	@Tags		setup
//	@Accept		json
//	@Produce	json
//	@Param		body	body		networkConfigRequest	true	"Host and port"
//	@Success	200		{object}	applyConfigResponse
//	@Failure	400		{object}	errorResponse
//	@Router		/api/v1/setup/network-config [post]
func (s *SetupRoutes) setNetworkConfig(w http.ResponseWriter, r *http.Request) {
	if !s.allowMutation(w, r) {
		return
	}

	var req networkConfigRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if req.Port < networking.MinPort || req.Port > networking.MaxPort {
		WriteError(w, r, http.StatusBadRequest, "invalid-port-range",
			"port must be between "+strconv.Itoa(networking.MinPort)+" and "+strconv.Itoa(networking.MaxPort))
		return
	}

	ctx := r.Context()
	if req.Host != "" {
		if err := s.store.SetSystemConfig(ctx, config.KeyHost, req.Host, false); err != nil {
			WriteError(w, r, http.StatusInternalServerError, "", "failed to persist host")
			return
		}
	}
	if err := s.store.SetSystemConfig(ctx, config.KeyPort, strconv.Itoa(req.Port), false); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "", "failed to persist port")
		return
	}
	s.config.Invalidate()
	WriteJSON(w, http.StatusOK, applyConfigResponse{Applied: true, RestartRequired: true})
}

// setDatabasePath
//
//	@Summary	Persist the database file location
//	@Tags		setup
//	@Accept		json
//	@Produce	json
//	@Param		body	body		databasePathRequest	true	"Path"
//	@Success	200		{object}	applyConfigResponse
//	@Failure	400		{object}	errorResponse
//	@Router		/api/v1/setup/database-path [post]
func (s *SetupRoutes) setDatabasePath(w http.ResponseWriter, r *http.Request) {
	if !s.allowMutation(w, r) {
		return
	}

	var req databasePathRequest
	if err := decodeBody(r, &req); err != nil || req.Path == "" {
		WriteError(w, r, http.StatusBadRequest, "", "path is required")
		return
	}
	if err := s.store.SetSystemConfig(r.Context(), config.KeyDatabasePath, req.Path, false); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "", "failed to persist database path")
		return
	}
	s.config.Invalidate()
	WriteJSON(w, http.StatusOK, applyConfigResponse{Applied: true, RestartRequired: true})
}

// browse
//
//	@Summary	List a directory confined to the project root
//	@Tags		setup
//	@Accept		json
//	@Produce	json
//	@Param		body	body		browseRequest	true	"Relative path"
//	@Success	200		{object}	browseResponse
//	@Failure	400		{object}	errorResponse
//	@Router		/api/v1/setup/browse [post]
func (s *SetupRoutes) browse(w http.ResponseWriter, r *http.Request) {
	if s.browser == nil {
		WriteError(w, r, http.StatusNotImplemented, "", "directory browsing is not available")
		return
	}

	var req browseRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "", "invalid request body")
		return
	}
	entries, err := s.browser.List(req.Path)
	if err != nil {
		if errors.Is(err, networking.ErrInvalidPath) {
			WriteError(w, r, http.StatusBadRequest, "invalid-path", err.Error())
			return
		}
		WriteError(w, r, http.StatusBadRequest, "", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, browseResponse{Path: req.Path, Entries: entries})
}

// scanPorts
//
//	@Summary	Probe a port range and suggest nearby free ports
//	@Tags		setup
//	@Accept		json
//	@Produce	json
//	@Param		body	body		portScanRequest	true	"Range to scan"
//	@Success	200		{object}	portScanResponse
//	@Failure	400		{object}	errorResponse
//	@Router		/api/v1/setup/ports/scan [post]
func (s *SetupRoutes) scanPorts(w http.ResponseWriter, r *http.Request) {
	var req portScanRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "", "invalid request body")
		return
	}

	results, err := networking.ScanRange(r.Context(), req.From, req.To)
	if err != nil {
		if errors.Is(err, networking.ErrInvalidPortRange) {
			WriteError(w, r, http.StatusBadRequest, "invalid-port-range", err.Error())
			return
		}
		WriteError(w, r, http.StatusInternalServerError, "", "port scan failed")
		return
	}

	resp := portScanResponse{Ports: results}
	if req.Desired != 0 && !networking.IsAvailable(req.Desired) {
		resp.Suggestions = networking.SuggestNearby(req.Desired, 3)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// allowMutation gates setup mutations: open while unconfigured, super-admin
// only afterwards.
func (s *SetupRoutes) allowMutation(w http.ResponseWriter, r *http.Request) bool {
	cfg, err := s.config.Get(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusServiceUnavailable, "", "failed to load configuration")
		return false
	}
	if !cfg.Configured() {
		return true
	}
	return s.requireSuperAdmin(w, r)
}

func (s *SetupRoutes) requireSuperAdmin(w http.ResponseWriter, r *http.Request) bool {
	identity, err := s.auth.Resolve(r.Context(), r)
	if err != nil {
		WriteError(w, r, http.StatusUnauthorized, "", "unauthorized")
		return false
	}
	if !identity.IsSuperAdmin {
		WriteError(w, r, http.StatusForbidden, "", "forbidden: super_admin required")
		return false
	}
	return true
}

// applyWorkOS validates and persists SSO credentials, then flips the mode.
func (s *SetupRoutes) applyWorkOS(w http.ResponseWriter, r *http.Request) {
	var req setupWorkOSRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if msg := req.missing(); msg != "" {
		WriteError(w, r, http.StatusBadRequest, "", msg)
		return
	}

	cookiePassword := req.CookiePassword
	if cookiePassword == "" {
		raw := make([]byte, 24)
		if _, err := rand.Read(raw); err != nil {
			WriteError(w, r, http.StatusInternalServerError, "", "failed to generate cookie password")
			return
		}
		cookiePassword = base64.RawURLEncoding.EncodeToString(raw)
	}
	if len(cookiePassword) != 32 {
		WriteError(w, r, http.StatusBadRequest, "",
			"cookie password must be exactly 32 characters (got "+strconv.Itoa(len(cookiePassword))+")")
		return
	}

	encryptedKey, err := s.cipher.EncryptString(req.APIKey)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "", "failed to protect API key")
		return
	}
	encryptedCookiePassword, err := s.cipher.EncryptString(cookiePassword)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "", "failed to protect cookie password")
		return
	}

	ctx := r.Context()
	writes := []struct {
		key    string
		value  string
		secret bool
	}{
		{config.KeyWorkOSClientID, req.ClientID, false},
		{config.KeyWorkOSIssuerURL, req.IssuerURL, false},
		{config.KeyWorkOSAPIKey, encryptedKey, true},
		{config.KeyWorkOSCookiePassword, encryptedCookiePassword, true},
		{config.KeyAppMode, config.ModeWorkOS, false},
		{config.KeySetupCompleted, "true", false},
	}
	for _, wr := range writes {
		if err := s.store.SetSystemConfig(ctx, wr.key, wr.value, wr.secret); err != nil {
			WriteError(w, r, http.StatusInternalServerError, "", "failed to persist configuration")
			return
		}
	}
	s.config.Invalidate()

	s.auditor.LogAdmin(ctx, audit.ActionSetupCompleted, audit.SystemActor, true, "",
		map[string]any{"mode": config.ModeWorkOS})
	WriteJSON(w, http.StatusOK, statusResponse{Status: "configured"})
}

// ensureAdminUser provisions the local-mode super-admin, tolerating reruns.
func (s *SetupRoutes) ensureAdminUser(ctx context.Context, email string) (*store.User, error) {
	if existing, err := s.store.GetUserByEmail(ctx, email); err == nil {
		if !existing.IsSuperAdmin {
			if err := s.store.SetSuperAdmin(ctx, existing.ID, true); err != nil {
				return nil, err
			}
			existing.IsSuperAdmin = true
		}
		return existing, nil
	}

	admin := &store.User{
		Email:              email,
		Role:               store.RoleWorkspaceOwner,
		IsSuperAdmin:       true,
		ProvisioningSource: "setup",
		MFAGraceEnd:        time.Now().UTC(),
	}
	if err := s.store.CreateUserWithWorkspace(ctx, admin, "Admin Workspace"); err != nil {
		return nil, err
	}
	return admin, nil
}

func (r *setupWorkOSRequest) missing() string {
	switch {
	case r.ClientID == "":
		return "client_id is required (find it in the WorkOS dashboard under Applications)"
	case r.APIKey == "":
		return "api_key is required (create one under API Keys in the WorkOS dashboard)"
	case r.IssuerURL == "":
		return "issuer_url is required (your AuthKit domain, e.g. https://auth.example.com)"
	default:
		return ""
	}
}

type setupStatusResponse struct {
	IsSetupRequired bool   `json:"is_setup_required"`
	CurrentMode     string `json:"current_mode"`
	SetupCompleted  bool   `json:"setup_completed"`
}

type setupModeResponse struct {
	Mode string `json:"mode"`
}

type setupLocalRequest struct {
	Email string `json:"email,omitempty"`
}

type setupLocalResponse struct {
	Status     string `json:"status"`
	Mode       string `json:"mode"`
	APIKey     string `json:"api_key"`
	AdminEmail string `json:"admin_email"`
}

type setupWorkOSRequest struct {
	ClientID       string `json:"client_id"`
	APIKey         string `json:"api_key"`
	IssuerURL      string `json:"issuer_url"`
	CookiePassword string `json:"cookie_password,omitempty"`
}

type validateResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type networkConfigRequest struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port"`
}

type databasePathRequest struct {
	Path string `json:"path"`
}

type browseRequest struct {
	Path string `json:"path"`
}

type browseResponse struct {
	Path    string                `json:"path"`
	Entries []networking.DirEntry `json:"entries"`
}

type portScanRequest struct {
	From    int `json:"from"`
	To      int `json:"to"`
	Desired int `json:"desired,omitempty"`
}

type portScanResponse struct {
	Ports       []networking.PortStatus `json:"ports"`
	Suggestions []int                   `json:"suggestions,omitempty"`
}
