// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/auth"
	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// WorkspaceRoutes serves the caller's workspace and its audit trail.
type WorkspaceRoutes struct {
	store   store.Store
	auth    *auth.Authenticator
	auditor *audit.Auditor
}

// WorkspaceRouter sets up the workspace-scoped routes.
func WorkspaceRouter(s store.Store, authn *auth.Authenticator, auditor *audit.Auditor) http.Handler {
	routes := &WorkspaceRoutes{store: s, auth: authn, auditor: auditor}

	r := chi.NewRouter()
	r.Get("/", routes.getWorkspace)
	r.With(authn.RequirePermission(auth.PermWorkspaceWrite)).Put("/", routes.updateWorkspace)
	r.Get("/settings", routes.getSettings)
	r.With(authn.RequirePermission(auth.PermWorkspaceWrite)).Put("/settings", routes.updateSettings)
	return r
}

// AuditLogRouter sets up the workspace audit-log route.
func AuditLogRouter(s store.Store, authn *auth.Authenticator) http.Handler {
	routes := &WorkspaceRoutes{store: s, auth: authn}

	r := chi.NewRouter()
	r.With(authn.RequirePermission(auth.PermAuditRead)).Get("/", routes.listAuditLogs)
	return r
}

// getWorkspace
//
//	@Summary	Get the caller's workspace
//	@Tags		workspace
//	@Produce	json
//	@Success	200	{object}	store.Workspace
//	@Failure	404	{object}	errorResponse
//	@Router		/api/v1/workspace [get]
func (s *WorkspaceRoutes) getWorkspace(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	workspace, err := s.store.GetWorkspace(r.Context(), identity.WorkspaceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, r, http.StatusNotFound, "", "workspace not found")
			return
		}
		logger.Errorf("failed to load workspace %s: %v", identity.WorkspaceID, err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to load workspace")
		return
	}
	WriteJSON(w, http.StatusOK, workspace)
}

// updateWorkspace
//
//	@Summary	Rename the caller's workspace and replace its settings
//	@Tags		workspace
//	@Accept		json
//	@Produce	json
//	@Param		body	body		updateWorkspaceRequest	true	"New name and settings"
//	@Success	200		{object}	store.Workspace
//	@Failure	400		{object}	errorResponse
//	@Router		/api/v1/workspace [put]
func (s *WorkspaceRoutes) updateWorkspace(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var req updateWorkspaceRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "", "invalid request body")
		return
	}

	current, err := s.store.GetWorkspace(r.Context(), identity.WorkspaceID)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "", "workspace not found")
		return
	}

	name := current.Name
	if req.Name != "" {
		name = req.Name
	}
	settings := current.Settings
	if req.Settings != nil {
		settings = string(req.Settings)
	}

	if err := s.store.UpdateWorkspace(r.Context(), identity.WorkspaceID, name, settings); err != nil {
		logger.Errorf("failed to update workspace %s: %v", identity.WorkspaceID, err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to update workspace")
		return
	}

	actor := audit.Actor{ID: identity.UserID, Email: identity.Email, Type: "user"}
	s.auditor.LogWorkspace(r.Context(), audit.ActionWorkspaceUpdated, actor, identity.WorkspaceID, true, "")

	updated, err := s.store.GetWorkspace(r.Context(), identity.WorkspaceID)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "", "failed to reload workspace")
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// getSettings
//
//	@Summary	Get the workspace settings document
//	@Tags		workspace
//	@Produce	json
//	@Success	200
//	@Router		/api/v1/workspace/settings [get]
func (s *WorkspaceRoutes) getSettings(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	workspace, err := s.store.GetWorkspace(r.Context(), identity.WorkspaceID)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "", "workspace not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(workspace.Settings))
}

// updateSettings
//
//	@Summary	Replace the workspace settings document
//	@Tags		workspace
//	@Accept		json
//	@Produce	json
//	@Success	200	{object}	statusResponse
//	@Failure	400	{object}	errorResponse
//	@Router		/api/v1/workspace/settings [put]
func (s *WorkspaceRoutes) updateSettings(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var settings json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		WriteError(w, r, http.StatusBadRequest, "", "settings must be a JSON document")
		return
	}

	current, err := s.store.GetWorkspace(r.Context(), identity.WorkspaceID)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "", "workspace not found")
		return
	}
	if err := s.store.UpdateWorkspace(r.Context(), identity.WorkspaceID, current.Name, string(settings)); err != nil {
		logger.Errorf("failed to update workspace settings: %v", err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to update settings")
		return
	}

	actor := audit.Actor{ID: identity.UserID, Email: identity.Email, Type: "user"}
	s.auditor.LogWorkspace(r.Context(), audit.ActionWorkspaceUpdated, actor, identity.WorkspaceID, true, "")
	WriteJSON(w, http.StatusOK, statusResponse{Status: "updated"})
}

// listAuditLogs
//
//	@Summary	List the workspace's audit trail
//	@Tags		workspace
//	@Produce	json
//	@Param		category	query		string	false	"Filter by category"
//	@Param		action		query		string	false	"Filter by action"
//	@Param		limit		query		int		false	"Page size, default 100"
//	@Param		offset		query		int		false	"Page offset"
//	@Success	200			{object}	auditLogResponse
//	@Router		/api/v1/audit-logs [get]
func (s *WorkspaceRoutes) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	entries, err := s.store.ListAuditEntries(r.Context(), identity.WorkspaceID, auditFilterFromQuery(r))
	if err != nil {
		logger.Errorf("failed to list audit entries: %v", err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to list audit entries")
		return
	}
	WriteJSON(w, http.StatusOK, auditLogResponse{Entries: entries})
}

func auditFilterFromQuery(r *http.Request) store.AuditFilter {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return store.AuditFilter{
		Category: q.Get("category"),
		Action:   q.Get("action"),
		Limit:    limit,
		Offset:   offset,
	}
}

type updateWorkspaceRequest struct {
	Name     string          `json:"name,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

type auditLogResponse struct {
	Entries []store.AuditEntry `json:"entries"`
}
