// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/auth"
	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/store"
	"github.com/omnihub-ai/omnihub/pkg/usertools"
)

// CredentialsRoutes serves the caller's stored third-party credentials.
type CredentialsRoutes struct {
	tools   *usertools.Manager
	auditor *audit.Auditor
}

// CredentialsRouter sets up the authenticated credential routes.
func CredentialsRouter(tools *usertools.Manager, auditor *audit.Auditor) http.Handler {
	routes := &CredentialsRoutes{tools: tools, auditor: auditor}

	r := chi.NewRouter()
	r.Get("/", routes.listCredentials)
	r.Post("/", routes.storeCredential)
	r.Get("/{tool}/{provider}", routes.getCredential)
	r.Delete("/{tool}/{provider}", routes.deleteCredential)
	return r
}

// listCredentials
//
//	@Summary	List stored credentials, redacted
//	@Tags		credentials
//	@Produce	json
//	@Success	200	{object}	credentialListResponse
//	@Router		/api/v1/user/credentials [get]
func (s *CredentialsRoutes) listCredentials(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	creds, err := s.tools.ListCredentials(r.Context(), identity.UserID)
	if err != nil {
		logger.Errorf("failed to list credentials: %v", err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to list credentials")
		return
	}

	// Secret material never leaves through list responses.
	out := make([]credentialSummary, 0, len(creds))
	for _, cred := range creds {
		out = append(out, credentialSummary{
			ToolName:  cred.ToolName,
			Provider:  cred.Provider,
			ExpiresAt: cred.ExpiresAt,
			Scopes:    cred.Scopes,
		})
	}
	WriteJSON(w, http.StatusOK, credentialListResponse{Credentials: out})
}

// storeCredential
//
//	@Summary	Store an encrypted credential
//	@Tags		credentials
//	@Accept		json
//	@Produce	json
//	@Param		body	body		storeCredentialRequest	true	"Credential"
//	@Success	200		{object}	statusResponse
//	@Failure	400		{object}	errorResponse
//	@Router		/api/v1/user/credentials [post]
func (s *CredentialsRoutes) storeCredential(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var req storeCredentialRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if req.ToolName == "" || req.Provider == "" || len(req.Secrets) == 0 {
		WriteError(w, r, http.StatusBadRequest, "", "tool_name, provider and secrets are required")
		return
	}

	actor := audit.Actor{ID: identity.UserID, Email: identity.Email, Type: "user"}
	if err := s.tools.StoreCredential(r.Context(), identity.UserID, req.ToolName, req.Provider, req.Secrets); err != nil {
		s.auditor.LogCredential(r.Context(), audit.ActionCredentialStored, actor,
			identity.WorkspaceID, req.ToolName, req.Provider, false, err.Error())
		WriteError(w, r, http.StatusBadRequest, "", err.Error())
		return
	}
	s.auditor.LogCredential(r.Context(), audit.ActionCredentialStored, actor,
		identity.WorkspaceID, req.ToolName, req.Provider, true, "")
	WriteJSON(w, http.StatusOK, statusResponse{Status: "stored", ToolName: req.ToolName})
}

// getCredential
//
//	@Summary	Get one decrypted credential
//	@Tags		credentials
//	@Produce	json
//	@Param		tool		path		string	true	"Tool name"
//	@Param		provider	path		string	true	"Provider"
//	@Success	200			{object}	usertools.Credential
//	@Failure	404			{object}	errorResponse
//	@Router		/api/v1/user/credentials/{tool}/{provider} [get]
func (s *CredentialsRoutes) getCredential(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	tool := chi.URLParam(r, "tool")
	provider := chi.URLParam(r, "provider")

	cred, err := s.tools.GetCredential(r.Context(), identity.UserID, tool, provider)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, r, http.StatusNotFound, "", "credential not found")
			return
		}
		logger.Errorf("failed to load credential %s/%s: %v", tool, provider, err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to load credential")
		return
	}
	if cred.Opaque != nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(cred.Opaque)
		return
	}
	WriteJSON(w, http.StatusOK, cred)
}

// deleteCredential
//
//	@Summary	Delete a stored credential
//	@Tags		credentials
//	@Produce	json
//	@Param		tool		path		string	true	"Tool name"
//	@Param		provider	path		string	true	"Provider"
//	@Success	200			{object}	statusResponse
//	@Failure	404			{object}	errorResponse
//	@Router		/api/v1/user/credentials/{tool}/{provider} [delete]
func (s *CredentialsRoutes) deleteCredential(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	tool := chi.URLParam(r, "tool")
	provider := chi.URLParam(r, "provider")

	if err := s.tools.DeleteCredential(r.Context(), identity.UserID, tool, provider); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, r, http.StatusNotFound, "", "credential not found")
			return
		}
		logger.Errorf("failed to delete credential %s/%s: %v", tool, provider, err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to delete credential")
		return
	}
	actor := audit.Actor{ID: identity.UserID, Email: identity.Email, Type: "user"}
	s.auditor.LogCredential(r.Context(), audit.ActionCredentialDeleted, actor,
		identity.WorkspaceID, tool, provider, true, "")
	WriteJSON(w, http.StatusOK, statusResponse{Status: "deleted", ToolName: tool})
}

type credentialSummary struct {
	ToolName  string    `json:"tool_name"`
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
}

type credentialListResponse struct {
	Credentials []credentialSummary `json:"credentials"`
}

type storeCredentialRequest struct {
	ToolName string          `json:"tool_name"`
	Provider string          `json:"provider"`
	Secrets  json.RawMessage `json:"secrets"`
}
