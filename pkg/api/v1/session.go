// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"crypto/hmac"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/auth"
	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/instances"
	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// SessionRoutes serves login and the caller's own session.
type SessionRoutes struct {
	store     store.Store
	config    *config.Provider
	instances *instances.Manager
	auditor   *audit.Auditor
}

// SessionRouter sets up the session routes. Login is public; the rest
// requires a resolved identity.
func SessionRouter(
	s store.Store,
	cfg *config.Provider,
	authn *auth.Authenticator,
	insts *instances.Manager,
	auditor *audit.Auditor,
) http.Handler {
	routes := &SessionRoutes{store: s, config: cfg, instances: insts, auditor: auditor}

	r := chi.NewRouter()
	r.Post("/login", routes.login)
	r.Group(func(r chi.Router) {
		r.Use(authn.Middleware)
		r.Get("/me", routes.whoAmI)
		r.Post("/logout", routes.logout)
	})
	return r
}

type loginRequest struct {
	APIKey string `json:"api_key"`
}

// login
//
//	@Summary	Exchange the local API key for a session cookie
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		loginRequest	true	"Local API key"
//	@Success	200		{object}	whoAmIResponse
//	@Failure	401		{object}	errorResponse
//	@Router		/api/v1/auth/login [post]
func (s *SessionRoutes) login(w http.ResponseWriter, r *http.Request) {
	rc, err := s.config.Get(r.Context())
	if err != nil {
		logger.Errorf("failed to load runtime config: %v", err)
		WriteError(w, r, http.StatusInternalServerError, "", "configuration unavailable")
		return
	}
	if rc.AppMode != config.ModeLocal {
		WriteError(w, r, http.StatusBadRequest, "", "password login is only available in local mode")
		return
	}

	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if !hmac.Equal([]byte(req.APIKey), []byte(rc.LocalAPIKey)) {
		s.auditor.LogAuth(r.Context(), audit.ActionLoginFailed, audit.Actor{Type: "anonymous"}, "", false, "bad API key")
		WriteError(w, r, http.StatusUnauthorized, "", "authentication failed")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), rc.LocalAdminEmail)
	if err != nil {
		logger.Errorf("local admin %s missing: %v", rc.LocalAdminEmail, err)
		WriteError(w, r, http.StatusUnauthorized, "", "authentication failed")
		return
	}

	codec := auth.NewLocalSessionCodec(rc.LocalAPIKey)
	value, err := codec.Encode(codec.NewSession(user.ID, user.Email, user.WorkspaceID, user.IsSuperAdmin))
	if err != nil {
		logger.Errorf("failed to encode session: %v", err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to create session")
		return
	}
	auth.SetSessionCookie(w, auth.LocalSessionCookie, value)

	actor := audit.Actor{ID: user.ID, Email: user.Email, Type: "user"}
	s.auditor.LogAuth(r.Context(), audit.ActionLoginSucceeded, actor, user.WorkspaceID, true, "")

	WriteJSON(w, http.StatusOK, whoAmIResponse{
		UserID:       user.ID,
		Email:        user.Email,
		WorkspaceID:  user.WorkspaceID,
		Role:         user.Role,
		IsSuperAdmin: user.IsSuperAdmin,
		AuthMethod:   auth.MethodLocalCookie,
	})
}

type whoAmIResponse struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	WorkspaceID  string `json:"workspace_id"`
	Role         string `json:"role"`
	IsSuperAdmin bool   `json:"is_super_admin"`
	AuthMethod   string `json:"auth_method"`
}

// whoAmI
//
//	@Summary	Describe the authenticated caller
//	@Tags		auth
//	@Produce	json
//	@Success	200	{object}	whoAmIResponse
//	@Router		/api/v1/auth/me [get]
func (s *SessionRoutes) whoAmI(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	WriteJSON(w, http.StatusOK, whoAmIResponse{
		UserID:       identity.UserID,
		Email:        identity.Email,
		WorkspaceID:  identity.WorkspaceID,
		Role:         identity.Role,
		IsSuperAdmin: identity.IsSuperAdmin,
		AuthMethod:   identity.AuthMethod,
	})
}

// logout
//
//	@Summary	End the caller's session
//	@Tags		auth
//	@Produce	json
//	@Success	200	{object}	statusResponse
//	@Router		/api/v1/auth/logout [post]
func (s *SessionRoutes) logout(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	// Running tool instances do not outlive the session.
	s.instances.StopAll(identity.UserID)

	auth.ClearSessionCookie(w, auth.LocalSessionCookie)
	auth.ClearSessionCookie(w, auth.SSOSessionCookie)

	actor := audit.Actor{ID: identity.UserID, Email: identity.Email, Type: "user"}
	s.auditor.LogAuth(r.Context(), audit.ActionLogout, actor, identity.WorkspaceID, true, "")

	WriteJSON(w, http.StatusOK, statusResponse{Status: "logged_out"})
}
