// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"time"
)

// --- Tool registry -------------------------------------------------------

func (s *sqliteStore) UpsertRegistryTool(ctx context.Context, tool *RegistryTool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_registry (tool_name, display_name, description, category,
		   auth_type, config_schema, required_oauth, icon, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tool_name) DO UPDATE SET
		   display_name = excluded.display_name,
		   description = excluded.description,
		   category = excluded.category,
		   auth_type = excluded.auth_type,
		   config_schema = excluded.config_schema,
		   required_oauth = excluded.required_oauth,
		   icon = excluded.icon,
		   updated_at = excluded.updated_at`,
		tool.Name, tool.DisplayName, tool.Description, tool.Category,
		tool.AuthType, tool.ConfigSchema, tool.RequiredOAuthScopes, tool.Icon,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert registry tool %q: %w", tool.Name, err)
	}
	return nil
}

const registryColumns = `tool_name, display_name, description, category,
	auth_type, config_schema, required_oauth, icon, updated_at`

func (s *sqliteStore) GetRegistryTool(ctx context.Context, name string) (*RegistryTool, error) {
	var tool RegistryTool
	err := s.db.GetContext(ctx, &tool,
		`SELECT `+registryColumns+` FROM tool_registry WHERE tool_name = ?`, name)
	if err != nil {
		return nil, notFound(err)
	}
	return &tool, nil
}

func (s *sqliteStore) ListRegistryTools(ctx context.Context) ([]RegistryTool, error) {
	var tools []RegistryTool
	err := s.db.SelectContext(ctx, &tools,
		`SELECT `+registryColumns+` FROM tool_registry ORDER BY tool_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list registry tools: %w", err)
	}
	return tools, nil
}

// --- Per-user tool state -------------------------------------------------

func (s *sqliteStore) UpsertUserTool(ctx context.Context, userID, toolName string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_tools (user_id, tool_name, enabled) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, tool_name) DO UPDATE SET enabled = excluded.enabled`,
		userID, toolName, enabled)
	if err != nil {
		return fmt.Errorf("failed to upsert user tool %q: %w", toolName, err)
	}
	return nil
}

func (s *sqliteStore) GetUserTool(ctx context.Context, userID, toolName string) (*UserTool, error) {
	var ut UserTool
	err := s.db.GetContext(ctx, &ut,
		`SELECT user_id, tool_name, enabled FROM user_tools
		 WHERE user_id = ? AND tool_name = ?`, userID, toolName)
	if err != nil {
		return nil, notFound(err)
	}
	return &ut, nil
}

func (s *sqliteStore) ListUserTools(ctx context.Context, userID string) ([]UserTool, error) {
	var tools []UserTool
	err := s.db.SelectContext(ctx, &tools,
		`SELECT user_id, tool_name, enabled FROM user_tools
		 WHERE user_id = ? ORDER BY tool_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user tools: %w", err)
	}
	return tools, nil
}

func (s *sqliteStore) UpsertToolConfig(ctx context.Context, userID, toolName, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_configs (user_id, tool_name, config_key, config_value)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, tool_name, config_key) DO UPDATE SET
		   config_value = excluded.config_value`,
		userID, toolName, key, value)
	if err != nil {
		return fmt.Errorf("failed to upsert tool config %s/%s: %w", toolName, key, err)
	}
	return nil
}

func (s *sqliteStore) GetToolConfig(ctx context.Context, userID, toolName string) (map[string]string, error) {
	var entries []ToolConfigEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT user_id, tool_name, config_key, config_value FROM tool_configs
		 WHERE user_id = ? AND tool_name = ?`, userID, toolName)
	if err != nil {
		return nil, fmt.Errorf("failed to get tool config: %w", err)
	}
	config := make(map[string]string, len(entries))
	for _, e := range entries {
		config[e.ConfigKey] = e.ConfigValue
	}
	return config, nil
}

// --- OAuth tokens --------------------------------------------------------

func (s *sqliteStore) UpsertOAuthToken(ctx context.Context, token *OAuthToken) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oauth_tokens (user_id, tool_name, provider, access_token,
		   refresh_token, expires_at, scopes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, tool_name, provider) DO UPDATE SET
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   expires_at = excluded.expires_at,
		   scopes = excluded.scopes`,
		token.UserID, token.ToolName, token.Provider, token.AccessTokenCiphertext,
		token.RefreshTokenCipher, token.ExpiresAt, token.Scopes)
	if err != nil {
		return fmt.Errorf("failed to upsert oauth token: %w", err)
	}
	return nil
}

const tokenColumns = `user_id, tool_name, provider, access_token, refresh_token, expires_at, scopes`

func (s *sqliteStore) GetOAuthToken(ctx context.Context, userID, toolName, provider string) (*OAuthToken, error) {
	var token OAuthToken
	err := s.db.GetContext(ctx, &token,
		`SELECT `+tokenColumns+` FROM oauth_tokens
		 WHERE user_id = ? AND tool_name = ? AND provider = ?`,
		userID, toolName, provider)
	if err != nil {
		return nil, notFound(err)
	}
	return &token, nil
}

func (s *sqliteStore) ListOAuthTokens(ctx context.Context, userID string) ([]OAuthToken, error) {
	var tokens []OAuthToken
	err := s.db.SelectContext(ctx, &tokens,
		`SELECT `+tokenColumns+` FROM oauth_tokens
		 WHERE user_id = ? ORDER BY tool_name, provider`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list oauth tokens: %w", err)
	}
	return tokens, nil
}

func (s *sqliteStore) DeleteOAuthToken(ctx context.Context, userID, toolName, provider string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM oauth_tokens WHERE user_id = ? AND tool_name = ? AND provider = ?`,
		userID, toolName, provider)
	if err != nil {
		return fmt.Errorf("failed to delete oauth token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Audit log -----------------------------------------------------------

func (s *sqliteStore) AppendAuditEntry(ctx context.Context, entry *AuditEntry) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, workspace_id, action, category, actor_id,
		   actor_email, actor_type, target_type, target_id, target_name,
		   request_id, ip, user_agent, success, error_message, metadata, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.WorkspaceID, entry.Action, entry.Category, entry.ActorID,
		entry.ActorEmail, entry.ActorType, entry.TargetType, entry.TargetID, entry.TargetName,
		entry.RequestID, entry.IP, entry.UserAgent, entry.Success, entry.ErrorMessage,
		entry.Metadata, entry.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *sqliteStore) ListAuditEntries(ctx context.Context, workspaceID string, filter AuditFilter) ([]AuditEntry, error) {
	query := `SELECT id, workspace_id, action, category, actor_id, actor_email,
	   actor_type, target_type, target_id, target_name, request_id, ip,
	   user_agent, success, error_message, metadata, occurred_at
	 FROM audit_logs WHERE 1=1`
	args := []any{}

	if workspaceID != "" {
		query += ` AND workspace_id = ?`
		args = append(args, workspaceID)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, filter.Action)
	}

	query += ` ORDER BY occurred_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	var entries []AuditEntry
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

func (s *sqliteStore) PurgeAuditEntries(ctx context.Context, category string, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_logs WHERE category = ? AND occurred_at < ?`, category, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
