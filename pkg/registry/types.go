// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry defines the tool catalogue: descriptors for every tool
// the hub can serve, and the startup sync into the store.
package registry

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/omnihub-ai/omnihub/pkg/store"
)

// Property describes one configuration field of a tool.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
	Secret      bool   `json:"secret,omitempty"`
}

// ConfigSchema is the JSON-schema document describing a tool's per-user
// configuration. Required lists the keys a user must supply before the
// tool is considered active.
type ConfigSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Descriptor is the catalogue entry for one tool.
type Descriptor struct {
	Name                string       `json:"name"`
	DisplayName         string       `json:"display_name"`
	Description         string       `json:"description"`
	Category            string       `json:"category"`
	AuthType            string       `json:"auth_type"`
	ConfigSchema        ConfigSchema `json:"config_schema"`
	RequiredOAuthScopes []string     `json:"required_oauth_scopes,omitempty"`
	Icon                string       `json:"icon,omitempty"`
}

// Validate checks that the descriptor is well-formed and that its config
// schema compiles.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor has no name")
	}
	switch d.AuthType {
	case store.AuthTypeNone, store.AuthTypeKey, store.AuthTypeOAuth:
	default:
		return fmt.Errorf("tool %s: unknown auth type %q", d.Name, d.AuthType)
	}
	if d.AuthType == store.AuthTypeOAuth && len(d.RequiredOAuthScopes) == 0 {
		return fmt.Errorf("tool %s: oauth tools must declare required scopes", d.Name)
	}
	if _, err := d.CompileSchema(); err != nil {
		return fmt.Errorf("tool %s: %w", d.Name, err)
	}
	return nil
}

// SchemaJSON returns the config schema as a JSON document.
func (d *Descriptor) SchemaJSON() (string, error) {
	schema := d.ConfigSchema
	if schema.Type == "" {
		schema.Type = "object"
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("failed to encode config schema: %w", err)
	}
	return string(data), nil
}

// CompileSchema compiles the descriptor's config schema for validating
// user-supplied configuration documents.
func (d *Descriptor) CompileSchema() (*gojsonschema.Schema, error) {
	doc, err := d.SchemaJSON()
	if err != nil {
		return nil, err
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to compile config schema: %w", err)
	}
	return schema, nil
}

// record converts the descriptor to its store representation.
func (d *Descriptor) record() (*store.RegistryTool, error) {
	schemaJSON, err := d.SchemaJSON()
	if err != nil {
		return nil, err
	}
	scopes := ""
	if len(d.RequiredOAuthScopes) > 0 {
		data, err := json.Marshal(d.RequiredOAuthScopes)
		if err != nil {
			return nil, fmt.Errorf("failed to encode oauth scopes: %w", err)
		}
		scopes = string(data)
	}
	return &store.RegistryTool{
		Name:                d.Name,
		DisplayName:         d.DisplayName,
		Description:         d.Description,
		Category:            d.Category,
		AuthType:            d.AuthType,
		ConfigSchema:        schemaJSON,
		RequiredOAuthScopes: scopes,
		Icon:                d.Icon,
	}, nil
}
