// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package store defines the persistence interface for the hub and provides
// the SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"
)

// Common store errors.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned on unique-constraint conflicts.
	ErrAlreadyExists = errors.New("already exists")
)

// Role values for users.
const (
	RoleSuperAdmin      = "super_admin"
	RoleWorkspaceOwner  = "workspace_owner"
	RoleWorkspaceMember = "workspace_member"
	RoleWorkspaceViewer = "workspace_viewer"
)

// AuthType values for registry tools.
const (
	AuthTypeNone  = "none"
	AuthTypeKey   = "key"
	AuthTypeOAuth = "oauth"
)

// SystemConfig is a runtime setting. Secret values hold ciphertext; the
// plaintext is never persisted.
type SystemConfig struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	IsSecret  bool      `db:"is_secret" json:"is_secret"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Workspace is the tenancy boundary owning all per-user data below it.
type Workspace struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Slug          string    `db:"slug" json:"slug"`
	OwnerUserID   string    `db:"owner_user_id" json:"owner_user_id"`
	ExternalOrgID string    `db:"external_org_id" json:"external_org_id,omitempty"`
	Settings      string    `db:"settings" json:"settings"` // JSON-encoded map
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// User is a hub user. Every user owns exactly one workspace.
type User struct {
	ID                 string    `db:"id" json:"id"`
	Email              string    `db:"email" json:"email"`
	GivenName          string    `db:"given_name" json:"given_name,omitempty"`
	FamilyName         string    `db:"family_name" json:"family_name,omitempty"`
	Role               string    `db:"role" json:"role"`
	WorkspaceID        string    `db:"workspace_id" json:"workspace_id"`
	IsSuperAdmin       bool      `db:"is_super_admin" json:"is_super_admin"`
	ProvisioningSource string    `db:"provisioning_source" json:"provisioning_source,omitempty"`
	MFAGraceEnd        time.Time `db:"mfa_grace_end" json:"mfa_grace_end"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// RegistryTool is a catalogue entry. The catalogue is process-wide.
type RegistryTool struct {
	Name                string    `db:"tool_name" json:"tool_name"`
	DisplayName         string    `db:"display_name" json:"display_name"`
	Description         string    `db:"description" json:"description"`
	Category            string    `db:"category" json:"category"`
	AuthType            string    `db:"auth_type" json:"auth_type"`
	ConfigSchema        string    `db:"config_schema" json:"config_schema"` // JSON schema document
	RequiredOAuthScopes string    `db:"required_oauth" json:"required_oauth,omitempty"`
	Icon                string    `db:"icon" json:"icon,omitempty"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// UserTool records tool enablement for a user. Absence means not installed.
type UserTool struct {
	UserID   string `db:"user_id" json:"user_id"`
	ToolName string `db:"tool_name" json:"tool_name"`
	Enabled  bool   `db:"enabled" json:"enabled"`
}

// ToolConfigEntry is one per-user per-tool configuration value, stored as a
// JSON-encoded string.
type ToolConfigEntry struct {
	UserID      string `db:"user_id" json:"user_id"`
	ToolName    string `db:"tool_name" json:"tool_name"`
	ConfigKey   string `db:"config_key" json:"config_key"`
	ConfigValue string `db:"config_value" json:"config_value"`
}

// OAuthToken holds encrypted third-party credentials for a (user, tool,
// provider) triple.
type OAuthToken struct {
	UserID                string    `db:"user_id" json:"user_id"`
	ToolName              string    `db:"tool_name" json:"tool_name"`
	Provider              string    `db:"provider" json:"provider"`
	AccessTokenCiphertext string    `db:"access_token" json:"-"`
	RefreshTokenCipher    string    `db:"refresh_token" json:"-"`
	ExpiresAt             time.Time `db:"expires_at" json:"expires_at"`
	Scopes                string    `db:"scopes" json:"scopes,omitempty"`
}

// AuditEntry is an append-only audit log record.
type AuditEntry struct {
	ID           string    `db:"id" json:"id"`
	WorkspaceID  string    `db:"workspace_id" json:"workspace_id,omitempty"`
	Action       string    `db:"action" json:"action"`
	Category     string    `db:"category" json:"category"`
	ActorID      string    `db:"actor_id" json:"actor_id,omitempty"`
	ActorEmail   string    `db:"actor_email" json:"actor_email,omitempty"`
	ActorType    string    `db:"actor_type" json:"actor_type,omitempty"`
	TargetType   string    `db:"target_type" json:"target_type,omitempty"`
	TargetID     string    `db:"target_id" json:"target_id,omitempty"`
	TargetName   string    `db:"target_name" json:"target_name,omitempty"`
	RequestID    string    `db:"request_id" json:"request_id,omitempty"`
	IP           string    `db:"ip" json:"ip,omitempty"`
	UserAgent    string    `db:"user_agent" json:"user_agent,omitempty"`
	Success      bool      `db:"success" json:"success"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	Metadata     string    `db:"metadata" json:"metadata,omitempty"` // JSON-encoded map
	OccurredAt   time.Time `db:"occurred_at" json:"occurred_at"`
}

// AuditFilter specifies criteria for listing audit entries.
type AuditFilter struct {
	Category string
	Action   string
	Limit    int
	Offset   int
}

// Store is the persistence interface for the hub. All mutations go through
// it; handlers never touch the database directly.
type Store interface {
	// System config
	GetSystemConfig(ctx context.Context, key string) (*SystemConfig, error)
	SetSystemConfig(ctx context.Context, key, value string, isSecret bool) error
	DeleteSystemConfig(ctx context.Context, key string) error
	ListSystemConfig(ctx context.Context) ([]SystemConfig, error)

	// Workspaces
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)
	ListWorkspaces(ctx context.Context) ([]Workspace, error)
	UpdateWorkspace(ctx context.Context, id, name, settings string) error
	DeleteWorkspace(ctx context.Context, id string) error

	// Users. CreateUserWithWorkspace provisions the user and their
	// dedicated workspace in one transaction, deriving a unique slug
	// from the workspace name.
	CreateUserWithWorkspace(ctx context.Context, user *User, workspaceName string) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	SetSuperAdmin(ctx context.Context, userID string, isSuperAdmin bool) error
	ListUsersByWorkspace(ctx context.Context, workspaceID string) ([]User, error)

	// Tool registry
	UpsertRegistryTool(ctx context.Context, tool *RegistryTool) error
	GetRegistryTool(ctx context.Context, name string) (*RegistryTool, error)
	ListRegistryTools(ctx context.Context) ([]RegistryTool, error)

	// Per-user tool state
	UpsertUserTool(ctx context.Context, userID, toolName string, enabled bool) error
	GetUserTool(ctx context.Context, userID, toolName string) (*UserTool, error)
	ListUserTools(ctx context.Context, userID string) ([]UserTool, error)
	UpsertToolConfig(ctx context.Context, userID, toolName, key, value string) error
	GetToolConfig(ctx context.Context, userID, toolName string) (map[string]string, error)

	// OAuth tokens
	UpsertOAuthToken(ctx context.Context, token *OAuthToken) error
	GetOAuthToken(ctx context.Context, userID, toolName, provider string) (*OAuthToken, error)
	ListOAuthTokens(ctx context.Context, userID string) ([]OAuthToken, error)
	DeleteOAuthToken(ctx context.Context, userID, toolName, provider string) error

	// Audit log. Append-only: no update or delete beyond retention purge.
	AppendAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, workspaceID string, filter AuditFilter) ([]AuditEntry, error)
	PurgeAuditEntries(ctx context.Context, category string, before time.Time) (int64, error)

	// Health
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}
