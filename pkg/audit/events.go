// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit writes the append-only structured event log.
package audit

import "context"

// Event categories. Retention policy is keyed on these.
const (
	CategoryAuth       = "auth"
	CategoryTool       = "tool"
	CategoryCredential = "credential"
	CategoryAdmin      = "admin"
	CategoryWorkspace  = "workspace"
	CategorySecurity   = "security"
)

// Well-known actions. Tool-call wrappers append "_failed" on error.
const (
	ActionLoginSucceeded   = "auth.login_succeeded"
	ActionLoginFailed      = "auth.login_failed"
	ActionLogout           = "auth.logout"
	ActionUserProvisioned  = "auth.user_provisioned"
	ActionPermissionDenied = "security.permission_denied"

	ActionToolAdded         = "tool.added"
	ActionToolRemoved       = "tool.removed"
	ActionToolConfigUpdated = "tool.config_updated"
	ActionToolCalled        = "tool.called"
	ActionToolStarted       = "tool.instance_started"
	ActionToolStopped       = "tool.instance_stopped"

	ActionCredentialStored  = "credential.stored"
	ActionCredentialDeleted = "credential.deleted"

	ActionConfigApplied    = "admin.config_applied"
	ActionSetupCompleted   = "admin.setup_completed"
	ActionWorkspaceUpdated = "workspace.updated"
)

// Actor identifies who performed an action.
type Actor struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	// Type is "user", "api_key", or "system".
	Type string `json:"type"`
}

// SystemActor is used for events not attributable to a caller.
var SystemActor = Actor{Type: "system"}

// Target identifies what an action operated on.
type Target struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Event is one audit record before persistence enrichment.
type Event struct {
	Action      string
	Category    string
	Actor       Actor
	Target      Target
	WorkspaceID string
	Success     bool
	Error       string
	Metadata    map[string]any
}

// RequestInfo carries transport metadata captured by HTTP middleware.
type RequestInfo struct {
	RequestID string
	IP        string
	UserAgent string
}

type requestInfoKey struct{}

// WithRequestInfo stores transport metadata in the context for the auditor
// to stamp onto every event logged during the request.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext retrieves transport metadata, if present.
func RequestInfoFromContext(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}
