// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package usertools manages per-user tool enablement, configuration and
// credentials on top of the registry catalogue.
package usertools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/omnihub-ai/omnihub/pkg/registry"
	"github.com/omnihub-ai/omnihub/pkg/secrets"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// Per-user tool statuses reported by GetCatalogue.
const (
	StatusActive        = "active"
	StatusMissingConfig = "missing_config"
	StatusNotInstalled  = "not_installed"
)

// InvalidConfigError reports the schema-required keys missing from a
// supplied configuration.
type InvalidConfigError struct {
	ToolName string
	Missing  []string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid-config: tool %s missing required keys: %s",
		e.ToolName, strings.Join(e.Missing, ", "))
}

// CatalogueEntry is a registry descriptor annotated with the caller's
// installation status.
type CatalogueEntry struct {
	registry.Descriptor
	Status string `json:"status"`
	// MissingConfig lists schema-required keys the user has not supplied.
	// Empty unless Status is missing_config.
	MissingConfig []string `json:"missing_config,omitempty"`
}

// Manager is the per-user tool state service.
type Manager struct {
	store    store.Store
	registry *registry.Registry
	cipher   *secrets.Cipher
}

// NewManager creates a Manager. The cipher encrypts stored credentials.
func NewManager(s store.Store, r *registry.Registry, cipher *secrets.Cipher) *Manager {
	return &Manager{store: s, registry: r, cipher: cipher}
}

// ListAvailable returns the global catalogue.
func (m *Manager) ListAvailable() []registry.Descriptor {
	return m.registry.List()
}

// GetMetadata returns the descriptor for one tool.
func (m *Manager) GetMetadata(name string) (*registry.Descriptor, error) {
	return m.registry.Get(name)
}

// GetCatalogue annotates the catalogue with the user's status per tool.
// A tool is active when it is enabled, every schema-required key is
// persisted, and (for oauth tools) a credential exists.
func (m *Manager) GetCatalogue(ctx context.Context, userID string) ([]CatalogueEntry, error) {
	installed := map[string]bool{}
	userTools, err := m.store.ListUserTools(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, ut := range userTools {
		installed[ut.ToolName] = ut.Enabled
	}

	descriptors := m.registry.List()
	entries := make([]CatalogueEntry, 0, len(descriptors))
	for _, d := range descriptors {
		entry := CatalogueEntry{Descriptor: d, Status: StatusNotInstalled}
		if installed[d.Name] {
			missing, err := m.missingRequirements(ctx, userID, &d)
			if err != nil {
				return nil, err
			}
			if len(missing) == 0 {
				entry.Status = StatusActive
			} else {
				entry.Status = StatusMissingConfig
				entry.MissingConfig = missing
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// AddTool validates config against the tool's required keys, then enables
// the tool and persists the config. Idempotent: re-adding overwrites the
// supplied keys and re-enables.
func (m *Manager) AddTool(ctx context.Context, userID, name string, config map[string]any) error {
	missing, err := m.registry.ValidateConfig(name, config)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &InvalidConfigError{ToolName: name, Missing: missing}
	}

	if err := m.store.UpsertUserTool(ctx, userID, name, true); err != nil {
		return err
	}
	return m.writeConfig(ctx, userID, name, config)
}

// RemoveTool soft-disables the tool. Config and credentials are preserved
// so a later AddTool restores the previous state. Removing a tool that was
// never installed is a no-op.
func (m *Manager) RemoveTool(ctx context.Context, userID, name string) error {
	if _, err := m.registry.Get(name); err != nil {
		return err
	}
	if _, err := m.store.GetUserTool(ctx, userID, name); errors.Is(err, store.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	return m.store.UpsertUserTool(ctx, userID, name, false)
}

// ListInstalled returns the names of the user's enabled tools.
func (m *Manager) ListInstalled(ctx context.Context, userID string) ([]string, error) {
	userTools, err := m.store.ListUserTools(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(userTools))
	for _, ut := range userTools {
		if ut.Enabled {
			names = append(names, ut.ToolName)
		}
	}
	return names, nil
}

// GetConfig returns the user's persisted configuration for a tool.
func (m *Manager) GetConfig(ctx context.Context, userID, name string) (map[string]any, error) {
	raw, err := m.store.GetToolConfig(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	config := make(map[string]any, len(raw))
	for key, encoded := range raw {
		var value any
		if err := json.Unmarshal([]byte(encoded), &value); err != nil {
			// Pre-JSON rows are kept readable as plain strings.
			value = encoded
		}
		config[key] = value
	}
	return config, nil
}

// UpdateConfig merge-updates the supplied keys; keys absent from the
// partial are left unchanged.
func (m *Manager) UpdateConfig(ctx context.Context, userID, name string, partial map[string]any) error {
	if _, err := m.registry.Get(name); err != nil {
		return err
	}
	return m.writeConfig(ctx, userID, name, partial)
}

// MissingConfig returns the schema-required keys the user has not
// persisted yet.
func (m *Manager) MissingConfig(ctx context.Context, userID, name string) ([]string, error) {
	d, err := m.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return m.missingRequirements(ctx, userID, d)
}

func (m *Manager) missingRequirements(ctx context.Context, userID string, d *registry.Descriptor) ([]string, error) {
	persisted, err := m.store.GetToolConfig(ctx, userID, d.Name)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, key := range d.ConfigSchema.Required {
		if _, ok := persisted[key]; !ok {
			missing = append(missing, key)
		}
	}
	if d.AuthType == store.AuthTypeOAuth {
		tokens, err := m.store.ListOAuthTokens(ctx, userID)
		if err != nil {
			return nil, err
		}
		found := false
		for _, tok := range tokens {
			if tok.ToolName == d.Name {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, "oauth_credential")
		}
	}
	return missing, nil
}

func (m *Manager) writeConfig(ctx context.Context, userID, name string, config map[string]any) error {
	for key, value := range config {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode config key %s: %w", key, err)
		}
		if err := m.store.UpsertToolConfig(ctx, userID, name, key, string(encoded)); err != nil {
			return err
		}
	}
	return nil
}
