// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omnihub-ai/omnihub/pkg/auth"
	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// AdminRoutes serves cross-workspace views for super-admins.
type AdminRoutes struct {
	store store.Store
}

// AdminRouter sets up the super-admin routes. Every route is gated on
// RequireSuperAdmin.
func AdminRouter(s store.Store, authn *auth.Authenticator) http.Handler {
	routes := &AdminRoutes{store: s}

	r := chi.NewRouter()
	r.Use(authn.RequireSuperAdmin)
	r.Get("/workspaces", routes.listWorkspaces)
	r.Get("/audit-logs", routes.listAuditLogs)
	return r
}

// listWorkspaces
//
//	@Summary	List every workspace
//	@Tags		admin
//	@Produce	json
//	@Success	200	{object}	workspaceListResponse
//	@Failure	403	{object}	errorResponse
//	@Router		/api/v1/admin/workspaces [get]
func (s *AdminRoutes) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces, err := s.store.ListWorkspaces(r.Context())
	if err != nil {
		logger.Errorf("failed to list workspaces: %v", err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to list workspaces")
		return
	}
	WriteJSON(w, http.StatusOK, workspaceListResponse{Workspaces: workspaces})
}

// listAuditLogs
//
//	@Summary	List audit entries across all workspaces
//	@Tags		admin
//	@Produce	json
//	@Param		category	query		string	false	"Filter by category"
//	@Param		action		query		string	false	"Filter by action"
//	@Param		limit		query		int		false	"Page size, default 100"
//	@Param		offset		query		int		false	"Page offset"
//	@Success	200			{object}	auditLogResponse
//	@Failure	403			{object}	errorResponse
//	@Router		/api/v1/admin/audit-logs [get]
func (s *AdminRoutes) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListAuditEntries(r.Context(), "", auditFilterFromQuery(r))
	if err != nil {
		logger.Errorf("failed to list audit entries: %v", err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to list audit entries")
		return
	}
	WriteJSON(w, http.StatusOK, auditLogResponse{Entries: entries})
}

type workspaceListResponse struct {
	Workspaces []store.Workspace `json:"workspaces"`
}
