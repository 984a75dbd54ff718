// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/auth"
	"github.com/omnihub-ai/omnihub/pkg/instances"
	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/store"
	"github.com/omnihub-ai/omnihub/pkg/usertools"
)

// UserToolsRoutes serves the caller's tool state: enablement, config, and
// instance lifecycle.
type UserToolsRoutes struct {
	tools     *usertools.Manager
	instances *instances.Manager
	auditor   *audit.Auditor
}

// UserToolsRouter sets up the authenticated per-user tool routes.
func UserToolsRouter(tools *usertools.Manager, insts *instances.Manager, auditor *audit.Auditor) http.Handler {
	routes := &UserToolsRoutes{tools: tools, instances: insts, auditor: auditor}

	r := chi.NewRouter()
	r.Get("/", routes.listTools)
	r.Post("/{name}", routes.addTool)
	r.Get("/{name}", routes.getConfig)
	r.Put("/{name}", routes.updateConfig)
	r.Delete("/{name}", routes.removeTool)
	r.Post("/{name}/start", routes.startInstance)
	r.Post("/{name}/stop", routes.stopInstance)
	r.Post("/{name}/refresh", routes.refreshInstance)
	r.Post("/{name}/test", routes.testTool)
	r.Get("/{name}/status", routes.getStatus)
	return r
}

// listTools
//
//	@Summary	List the caller's installed tools with instance status
//	@Tags		user-tools
//	@Produce	json
//	@Success	200	{object}	userToolListResponse
//	@Router		/api/v1/user/tools [get]
func (s *UserToolsRoutes) listTools(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	installed, err := s.tools.ListInstalled(r.Context(), identity.UserID)
	if err != nil {
		logger.Errorf("failed to list tools for %s: %v", identity.UserID, err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to list tools")
		return
	}

	out := make([]userToolStatus, 0, len(installed))
	for _, name := range installed {
		inst := s.instances.Get(identity.UserID, name)
		out = append(out, userToolStatus{ToolName: name, Status: inst.Status})
	}
	WriteJSON(w, http.StatusOK, userToolListResponse{Tools: out})
}

// addTool
//
//	@Summary	Enable a tool for the caller
//	@Tags		user-tools
//	@Accept		json
//	@Produce	json
//	@Param		name	path		string			true	"Tool name"
//	@Param		body	body		toolConfigRequest	true	"Configuration"
//	@Success	200		{object}	statusResponse
//	@Failure	400		{object}	errorResponse
//	@Failure	404		{object}	errorResponse
//	@Router		/api/v1/user/tools/{name} [post]
func (s *UserToolsRoutes) addTool(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	name := chi.URLParam(r, "name")

	var req toolConfigRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "", "invalid request body")
		return
	}

	actor := audit.Actor{ID: identity.UserID, Email: identity.Email, Type: "user"}
	err := s.auditor.ToolCall(r.Context(), actor, identity.WorkspaceID, audit.ActionToolAdded, name, func() error {
		return s.tools.AddTool(r.Context(), identity.UserID, name, req.Config)
	})
	if err != nil {
		var invalid *usertools.InvalidConfigError
		switch {
		case errors.As(err, &invalid):
			WriteError(w, r, http.StatusBadRequest, "invalid-config", invalid.Error())
		case errors.Is(err, store.ErrNotFound):
			WriteError(w, r, http.StatusNotFound, "", "unknown tool: "+name)
		default:
			logger.Errorf("failed to add tool %s: %v", name, err)
			WriteError(w, r, http.StatusInternalServerError, "", "failed to add tool")
		}
		return
	}
	WriteJSON(w, http.StatusOK, statusResponse{Status: "added", ToolName: name})
}

// getConfig
//
//	@Summary	Get the caller's persisted config for a tool
//	@Tags		user-tools
//	@Produce	json
//	@Param		name	path	string	true	"Tool name"
//	@Success	200
//	@Failure	404	{object}	errorResponse
//	@Router		/api/v1/user/tools/{name} [get]
func (s *UserToolsRoutes) getConfig(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	name := chi.URLParam(r, "name")

	config, err := s.tools.GetConfig(r.Context(), identity.UserID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, r, http.StatusNotFound, "", "unknown tool: "+name)
			return
		}
		logger.Errorf("failed to load config for %s: %v", name, err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to load config")
		return
	}
	WriteJSON(w, http.StatusOK, config)
}

// updateConfig
//
//	@Summary	Merge-update the caller's config for a tool
//	@Tags		user-tools
//	@Accept		json
//	@Produce	json
//	@Param		name	path		string			true	"Tool name"
//	@Param		body	body		toolConfigRequest	true	"Keys to update"
//	@Success	200		{object}	statusResponse
//	@Failure	400		{object}	errorResponse
//	@Router		/api/v1/user/tools/{name} [put]
func (s *UserToolsRoutes) updateConfig(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	name := chi.URLParam(r, "name")

	var req toolConfigRequest
	if err := decodeBody(r, &req); err != nil || len(req.Config) == 0 {
		WriteError(w, r, http.StatusBadRequest, "", "config object is required")
		return
	}

	actor := audit.Actor{ID: identity.UserID, Email: identity.Email, Type: "user"}
	err := s.auditor.ToolCall(r.Context(), actor, identity.WorkspaceID, audit.ActionToolConfigUpdated, name, func() error {
		return s.tools.UpdateConfig(r.Context(), identity.UserID, name, req.Config)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, r, http.StatusNotFound, "", "unknown tool: "+name)
			return
		}
		logger.Errorf("failed to update config for %s: %v", name, err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to update config")
		return
	}
	WriteJSON(w, http.StatusOK, statusResponse{Status: "updated", ToolName: name})
}

// removeTool
//
//	@Summary	Disable a tool for the caller, keeping config and credentials
//	@Tags		user-tools
//	@Produce	json
//	@Param		name	path		string	true	"Tool name"
//	@Success	200		{object}	statusResponse
//	@Failure	404		{object}	errorResponse
//	@Router		/api/v1/user/tools/{name} [delete]
func (s *UserToolsRoutes) removeTool(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	name := chi.URLParam(r, "name")

	actor := audit.Actor{ID: identity.UserID, Email: identity.Email, Type: "user"}
	err := s.auditor.ToolCall(r.Context(), actor, identity.WorkspaceID, audit.ActionToolRemoved, name, func() error {
		return s.tools.RemoveTool(r.Context(), identity.UserID, name)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, r, http.StatusNotFound, "", "unknown tool: "+name)
			return
		}
		logger.Errorf("failed to remove tool %s: %v", name, err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to remove tool")
		return
	}

	// Removing a tool also stops its instance.
	if _, err := s.instances.Stop(r.Context(), identity.UserID, name); err != nil {
		logger.Warnf("failed to stop instance of removed tool %s: %v", name, err)
	}
	WriteJSON(w, http.StatusOK, statusResponse{Status: "removed", ToolName: name})
}

func (s *UserToolsRoutes) startInstance(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, audit.ActionToolStarted, s.instances.Start)
}

func (s *UserToolsRoutes) stopInstance(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, audit.ActionToolStopped, s.instances.Stop)
}

func (s *UserToolsRoutes) refreshInstance(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, audit.ActionToolStarted, s.instances.Refresh)
}

// testTool
//
//	@Summary	Check whether a tool is ready to start
//	@Tags		user-tools
//	@Produce	json
//	@Param		name	path		string	true	"Tool name"
//	@Success	200		{object}	toolTestResponse
//	@Failure	404		{object}	errorResponse
//	@Router		/api/v1/user/tools/{name}/test [post]
func (s *UserToolsRoutes) testTool(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	name := chi.URLParam(r, "name")

	missing, err := s.tools.MissingConfig(r.Context(), identity.UserID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, r, http.StatusNotFound, "", "unknown tool: "+name)
			return
		}
		logger.Errorf("failed to test tool %s: %v", name, err)
		WriteError(w, r, http.StatusInternalServerError, "", "failed to test tool")
		return
	}
	WriteJSON(w, http.StatusOK, toolTestResponse{OK: len(missing) == 0, Missing: missing})
}

// getStatus
//
//	@Summary	Get the instance status for a tool
//	@Tags		user-tools
//	@Produce	json
//	@Param		name	path		string	true	"Tool name"
//	@Success	200		{object}	instances.Instance
//	@Router		/api/v1/user/tools/{name}/status [get]
func (s *UserToolsRoutes) getStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	name := chi.URLParam(r, "name")
	WriteJSON(w, http.StatusOK, s.instances.Get(identity.UserID, name))
}

// lifecycle runs one instance transition and renders the resulting state.
// Transition errors (e.g. missing config) surface as 400 with the instance
// snapshot carrying last_error.
func (s *UserToolsRoutes) lifecycle(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	fn func(ctx context.Context, userID, toolName string) (*instances.Instance, error),
) {
	identity, _ := auth.IdentityFromContext(r.Context())
	name := chi.URLParam(r, "name")

	inst, err := fn(r.Context(), identity.UserID, name)
	actor := audit.Actor{ID: identity.UserID, Email: identity.Email, Type: "user"}
	if err != nil {
		s.auditor.LogTool(r.Context(), action+"_failed", actor, identity.WorkspaceID, name, false, err.Error())
		WriteJSON(w, http.StatusBadRequest, inst)
		return
	}
	s.auditor.LogTool(r.Context(), action, actor, identity.WorkspaceID, name, true, "")
	WriteJSON(w, http.StatusOK, inst)
}

type userToolStatus struct {
	ToolName string `json:"tool_name"`
	Status   string `json:"status"`
}

type userToolListResponse struct {
	Tools []userToolStatus `json:"tools"`
}

type toolConfigRequest struct {
	Config map[string]any `json:"config"`
}

type toolTestResponse struct {
	OK      bool     `json:"ok"`
	Missing []string `json:"missing,omitempty"`
}

type statusResponse struct {
	Status   string `json:"status"`
	ToolName string `json:"tool_name,omitempty"`
}
