// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// Auditor persists audit events through the store. Logging is best-effort:
// a write failure is reported to the process log but never fails the
// operation being audited.
type Auditor struct {
	store store.Store
}

// NewAuditor creates an Auditor over the given store.
func NewAuditor(s store.Store) *Auditor {
	return &Auditor{store: s}
}

// Log persists one event, stamping transport metadata from the context.
func (a *Auditor) Log(ctx context.Context, event Event) {
	entry := &store.AuditEntry{
		ID:           ulid.Make().String(),
		WorkspaceID:  event.WorkspaceID,
		Action:       event.Action,
		Category:     event.Category,
		ActorID:      event.Actor.ID,
		ActorEmail:   event.Actor.Email,
		ActorType:    event.Actor.Type,
		TargetType:   event.Target.Type,
		TargetID:     event.Target.ID,
		TargetName:   event.Target.Name,
		Success:      event.Success,
		ErrorMessage: event.Error,
		Metadata:     "{}",
		OccurredAt:   time.Now().UTC(),
	}

	if info, ok := RequestInfoFromContext(ctx); ok {
		entry.RequestID = info.RequestID
		entry.IP = info.IP
		entry.UserAgent = info.UserAgent
	}

	if len(event.Metadata) > 0 {
		if data, err := json.Marshal(event.Metadata); err == nil {
			entry.Metadata = string(data)
		}
	}

	if err := a.store.AppendAuditEntry(ctx, entry); err != nil {
		logger.Errorw("failed to write audit entry", "action", event.Action, "error", err)
	}
}

// LogAuth records an authentication event.
func (a *Auditor) LogAuth(ctx context.Context, action string, actor Actor, workspaceID string, success bool, errMsg string) {
	a.Log(ctx, Event{
		Action: action, Category: CategoryAuth, Actor: actor,
		WorkspaceID: workspaceID, Success: success, Error: errMsg,
	})
}

// LogTool records a tool lifecycle or invocation event.
func (a *Auditor) LogTool(ctx context.Context, action string, actor Actor, workspaceID, toolName string, success bool, errMsg string) {
	a.Log(ctx, Event{
		Action: action, Category: CategoryTool, Actor: actor,
		Target:      Target{Type: "tool", Name: toolName},
		WorkspaceID: workspaceID, Success: success, Error: errMsg,
	})
}

// LogCredential records a credential store/delete event. Secret material
// never appears in the entry.
func (a *Auditor) LogCredential(ctx context.Context, action string, actor Actor, workspaceID, toolName, provider string, success bool, errMsg string) {
	a.Log(ctx, Event{
		Action: action, Category: CategoryCredential, Actor: actor,
		Target:      Target{Type: "credential", Name: toolName, ID: provider},
		WorkspaceID: workspaceID, Success: success, Error: errMsg,
	})
}

// LogAdmin records an administrative event.
func (a *Auditor) LogAdmin(ctx context.Context, action string, actor Actor, success bool, errMsg string, metadata map[string]any) {
	a.Log(ctx, Event{
		Action: action, Category: CategoryAdmin, Actor: actor,
		Success: success, Error: errMsg, Metadata: metadata,
	})
}

// LogWorkspace records a workspace-scoped event.
func (a *Auditor) LogWorkspace(ctx context.Context, action string, actor Actor, workspaceID string, success bool, errMsg string) {
	a.Log(ctx, Event{
		Action: action, Category: CategoryWorkspace, Actor: actor,
		Target:      Target{Type: "workspace", ID: workspaceID},
		WorkspaceID: workspaceID, Success: success, Error: errMsg,
	})
}

// LogDenied records an authorization denial.
func (a *Auditor) LogDenied(ctx context.Context, actor Actor, workspaceID, permission string) {
	a.Log(ctx, Event{
		Action: ActionPermissionDenied, Category: CategorySecurity, Actor: actor,
		WorkspaceID: workspaceID, Success: false,
		Metadata: map[string]any{"permission": permission},
	})
}

// ToolCall wraps a tool operation, emitting action on success or
// action+"_failed" on error. The wrapped error is returned unchanged.
func (a *Auditor) ToolCall(ctx context.Context, actor Actor, workspaceID, action, toolName string, fn func() error) error {
	err := fn()
	if err != nil {
		a.LogTool(ctx, action+"_failed", actor, workspaceID, toolName, false, err.Error())
		return err
	}
	a.LogTool(ctx, action, actor, workspaceID, toolName, true, "")
	return nil
}
