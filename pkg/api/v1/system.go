// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/store"
	"github.com/omnihub-ai/omnihub/pkg/versions"
)

// SystemRoutes serves the unauthenticated health and version routes.
type SystemRoutes struct {
	store store.Store
}

// SystemRouter sets up the public system routes.
func SystemRouter(s store.Store) http.Handler {
	routes := &SystemRoutes{store: s}

	r := chi.NewRouter()
	r.Get("/health", routes.getHealth)
	r.Get("/info", routes.getInfo)
	return r
}

// getHealth
//
//	@Summary	Liveness and store connectivity check
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	serverHealthResponse
//	@Failure	503	{object}	errorResponse
//	@Router		/api/v1/system/health [get]
func (s *SystemRoutes) getHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		logger.Errorf("store health check failed: %v", err)
		WriteError(w, r, http.StatusServiceUnavailable, "", "store unreachable")
		return
	}
	WriteJSON(w, http.StatusOK, serverHealthResponse{Status: "ok", Database: "ok"})
}

// getInfo
//
//	@Summary	Build and version information
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	versions.VersionInfo
//	@Router		/api/v1/system/info [get]
func (*SystemRoutes) getInfo(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, versions.GetVersionInfo())
}
