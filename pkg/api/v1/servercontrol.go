// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/auth"
	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// ServerControlRoutes serves runtime configuration and lifecycle control.
// Host and port changes only take effect after a restart; the status route
// reports the drift between the running and the saved values.
type ServerControlRoutes struct {
	store   store.Store
	config  *config.Provider
	auditor *audit.Auditor

	// runningHost/runningPort are the values the listener was started with.
	runningHost string
	runningPort int

	// restart asks the serve loop to shut down and re-exec. Nil when the
	// process owner disabled remote restarts.
	restart func()
}

// ServerControlRouter sets up the super-admin server control routes.
func ServerControlRouter(
	s store.Store,
	cfg *config.Provider,
	auditor *audit.Auditor,
	authn *auth.Authenticator,
	runningHost string,
	runningPort int,
	restart func(),
) http.Handler {
	routes := &ServerControlRoutes{
		store:       s,
		config:      cfg,
		auditor:     auditor,
		runningHost: runningHost,
		runningPort: runningPort,
		restart:     restart,
	}

	r := chi.NewRouter()
	r.Use(authn.RequireSuperAdmin)
	r.Get("/status", routes.getStatus)
	r.Post("/apply-config", routes.applyConfig)
	r.Get("/health", routes.getHealth)
	r.Post("/restart", routes.postRestart)
	return r
}

// getStatus
//
//	@Summary	Report running versus saved server configuration
//	@Tags		server
//	@Produce	json
//	@Success	200	{object}	serverStatusResponse
//	@Router		/api/v1/server/status [get]
func (s *ServerControlRoutes) getStatus(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.config.Get(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusServiceUnavailable, "", "failed to load configuration")
		return
	}
	WriteJSON(w, http.StatusOK, serverStatusResponse{
		Running:         addressConfig{Host: s.runningHost, Port: s.runningPort},
		Saved:           addressConfig{Host: cfg.Host, Port: cfg.Port},
		RestartRequired: cfg.Host != s.runningHost || cfg.Port != s.runningPort,
	})
}

// applyConfig
//
//	@Summary	Persist server configuration changes
//	@Description	Applies only the fields present in the request. Host and
//	port changes require a restart; a no-op apply returns
//	restart_required false.
//	@Tags		server
//	@Accept		json
//	@Produce	json
//	@Param		body	body		applyConfigRequest	true	"Fields to change"
//	@Success	200		{object}	applyConfigResponse
//	@Failure	400		{object}	errorResponse
//	@Router		/api/v1/server/apply-config [post]
func (s *ServerControlRoutes) applyConfig(w http.ResponseWriter, r *http.Request) {
	var req applyConfigRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "", "invalid request body")
		return
	}

	cfg, err := s.config.Get(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusServiceUnavailable, "", "failed to load configuration")
		return
	}

	changed := false
	restartRequired := false

	if req.Host != "" && req.Host != cfg.Host {
		if err := s.store.SetSystemConfig(r.Context(), config.KeyHost, req.Host, false); err != nil {
			WriteError(w, r, http.StatusInternalServerError, "", "failed to persist host")
			return
		}
		changed, restartRequired = true, true
	}
	if req.Port != 0 && req.Port != cfg.Port {
		if req.Port < 1 || req.Port > 65535 {
			WriteError(w, r, http.StatusBadRequest, "invalid-port-range", "port must be between 1 and 65535")
			return
		}
		if err := s.store.SetSystemConfig(r.Context(), config.KeyPort, strconv.Itoa(req.Port), false); err != nil {
			WriteError(w, r, http.StatusInternalServerError, "", "failed to persist port")
			return
		}
		changed, restartRequired = true, true
	}
	if req.AllowedOrigins != nil {
		value := strings.Join(req.AllowedOrigins, ",")
		if err := s.store.SetSystemConfig(r.Context(), config.KeyAllowedOrigins, value, false); err != nil {
			WriteError(w, r, http.StatusInternalServerError, "", "failed to persist allowed origins")
			return
		}
		changed = true
	}
	if req.HSTSEnabled != nil {
		value := strconv.FormatBool(*req.HSTSEnabled)
		if err := s.store.SetSystemConfig(r.Context(), config.KeyHSTSEnabled, value, false); err != nil {
			WriteError(w, r, http.StatusInternalServerError, "", "failed to persist hsts flag")
			return
		}
		changed = true
	}

	if changed {
		s.config.Invalidate()
		identity, _ := auth.IdentityFromContext(r.Context())
		actor := audit.Actor{ID: identity.UserID, Email: identity.Email, Type: "user"}
		s.auditor.LogAdmin(r.Context(), audit.ActionConfigApplied, actor, true, "", map[string]any{
			"restart_required": restartRequired,
		})
	}
	WriteJSON(w, http.StatusOK, applyConfigResponse{Applied: changed, RestartRequired: restartRequired})
}

// getHealth
//
//	@Summary	Check server and store health
//	@Tags		server
//	@Produce	json
//	@Success	200	{object}	serverHealthResponse
//	@Failure	503	{object}	errorResponse
//	@Router		/api/v1/server/health [get]
func (s *ServerControlRoutes) getHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		logger.Errorf("store health check failed: %v", err)
		WriteError(w, r, http.StatusServiceUnavailable, "", "store unreachable")
		return
	}
	WriteJSON(w, http.StatusOK, serverHealthResponse{Status: "ok", Database: "ok"})
}

// postRestart
//
//	@Summary	Restart the server process
//	@Tags		server
//	@Produce	json
//	@Success	202	{object}	statusResponse
//	@Failure	501	{object}	errorResponse
//	@Router		/api/v1/server/restart [post]
func (s *ServerControlRoutes) postRestart(w http.ResponseWriter, r *http.Request) {
	if s.restart == nil {
		WriteError(w, r, http.StatusNotImplemented, "", "restart is not available on this deployment")
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	actor := audit.Actor{ID: identity.UserID, Email: identity.Email, Type: "user"}
	s.auditor.LogAdmin(r.Context(), audit.ActionConfigApplied, actor, true, "", map[string]any{
		"restart": true,
	})
	WriteJSON(w, http.StatusAccepted, statusResponse{Status: "restarting"})
	go s.restart()
}

type addressConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type serverStatusResponse struct {
	Running         addressConfig `json:"running"`
	Saved           addressConfig `json:"saved"`
	RestartRequired bool          `json:"restart_required"`
}

type applyConfigRequest struct {
	Host           string   `json:"host,omitempty"`
	Port           int      `json:"port,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	HSTSEnabled    *bool    `json:"hsts_enabled,omitempty"`
}

type applyConfigResponse struct {
	Applied         bool `json:"applied"`
	RestartRequired bool `json:"restart_required"`
}

type serverHealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}
