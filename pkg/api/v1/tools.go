// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omnihub-ai/omnihub/pkg/registry"
)

// ToolsRoutes serves the public tool catalogue.
type ToolsRoutes struct {
	registry *registry.Registry
}

// ToolsRouter sets up the public catalogue routes.
func ToolsRouter(reg *registry.Registry) http.Handler {
	routes := &ToolsRoutes{registry: reg}

	r := chi.NewRouter()
	r.Get("/catalogue", routes.getCatalogue)
	r.Get("/{name}/metadata", routes.getMetadata)
	r.Get("/{name}/schema", routes.getSchema)
	return r
}

// getCatalogue
//
//	@Summary	List the global tool catalogue
//	@Tags		tools
//	@Produce	json
//	@Success	200	{object}	catalogueResponse
//	@Router		/api/v1/tools/catalogue [get]
func (s *ToolsRoutes) getCatalogue(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, catalogueResponse{Tools: s.registry.List()})
}

// getMetadata
//
//	@Summary	Get one tool's descriptor
//	@Tags		tools
//	@Produce	json
//	@Param		name	path		string	true	"Tool name"
//	@Success	200		{object}	registry.Descriptor
//	@Failure	404		{object}	errorResponse
//	@Router		/api/v1/tools/{name}/metadata [get]
func (s *ToolsRoutes) getMetadata(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	descriptor, err := s.registry.Get(name)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "", "unknown tool: "+name)
		return
	}
	WriteJSON(w, http.StatusOK, descriptor)
}

// getSchema
//
//	@Summary	Get one tool's config schema
//	@Tags		tools
//	@Produce	json
//	@Param		name	path	string	true	"Tool name"
//	@Success	200
//	@Failure	404	{object}	errorResponse
//	@Router		/api/v1/tools/{name}/schema [get]
func (s *ToolsRoutes) getSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	descriptor, err := s.registry.Get(name)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "", "unknown tool: "+name)
		return
	}
	schema, err := descriptor.SchemaJSON()
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "", "failed to render schema")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(schema))
}

type catalogueResponse struct {
	Tools []registry.Descriptor `json:"tools"`
}
