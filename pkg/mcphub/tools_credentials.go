// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package mcphub

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/omnihub-ai/omnihub/pkg/audit"
)

func (h *Hub) registerCredentialTools() {
	h.mcp.AddTool(mcp.NewTool("store_credential",
		mcp.WithDescription("Store an encrypted credential for a tool."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Catalogue tool name")),
		mcp.WithString("provider", mcp.Required(), mcp.Description("Credential provider label")),
		mcp.WithObject("secrets", mcp.Required(),
			mcp.Description("Structured {access_token, refresh_token, expires_at, scopes} or an opaque JSON document")),
	), h.handleStoreCredential)

	h.mcp.AddTool(mcp.NewTool("get_credential",
		mcp.WithDescription("Get a decrypted credential."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Catalogue tool name")),
		mcp.WithString("provider", mcp.Required(), mcp.Description("Credential provider label")),
	), h.handleGetCredential)

	h.mcp.AddTool(mcp.NewTool("list_credentials",
		mcp.WithDescription("List the caller's stored credentials."),
	), h.handleListCredentials)

	h.mcp.AddTool(mcp.NewTool("delete_credential",
		mcp.WithDescription("Delete a stored credential."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Catalogue tool name")),
		mcp.WithString("provider", mcp.Required(), mcp.Description("Credential provider label")),
	), h.handleDeleteCredential)
}

func (h *Hub) handleStoreCredential(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := requireUser(ctx)
	if errResult != nil {
		return errResult, nil
	}
	name, err := req.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	provider, err := req.RequireString("provider")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	secrets, ok := req.GetArguments()["secrets"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("secrets must be an object"), nil
	}
	payload, err := json.Marshal(secrets)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	actor := audit.Actor{ID: state.UserID, Type: "user"}
	if err := h.cfg.Tools.StoreCredential(ctx, state.UserID, name, provider, payload); err != nil {
		h.cfg.Auditor.LogCredential(ctx, audit.ActionCredentialStored, actor, state.WorkspaceID, name, provider, false, err.Error())
		return mcp.NewToolResultError(err.Error()), nil
	}
	h.cfg.Auditor.LogCredential(ctx, audit.ActionCredentialStored, actor, state.WorkspaceID, name, provider, true, "")
	return jsonResult(map[string]any{"status": "stored", "tool_name": name, "provider": provider}), nil
}

func (h *Hub) handleGetCredential(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := requireUser(ctx)
	if errResult != nil {
		return errResult, nil
	}
	name, err := req.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	provider, err := req.RequireString("provider")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cred, err := h.cfg.Tools.GetCredential(ctx, state.UserID, name, provider)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if cred.Opaque != nil {
		return mcp.NewToolResultText(string(cred.Opaque)), nil
	}
	return jsonResult(cred), nil
}

func (h *Hub) handleListCredentials(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := requireUser(ctx)
	if errResult != nil {
		return errResult, nil
	}
	creds, err := h.cfg.Tools.ListCredentials(ctx, state.UserID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// Secret material stays out of list responses.
	summaries := make([]map[string]any, 0, len(creds))
	for _, cred := range creds {
		summaries = append(summaries, map[string]any{
			"tool_name":  cred.ToolName,
			"provider":   cred.Provider,
			"expires_at": cred.ExpiresAt,
			"scopes":     cred.Scopes,
		})
	}
	return jsonResult(map[string]any{"credentials": summaries}), nil
}

func (h *Hub) handleDeleteCredential(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := requireUser(ctx)
	if errResult != nil {
		return errResult, nil
	}
	name, err := req.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	provider, err := req.RequireString("provider")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	actor := audit.Actor{ID: state.UserID, Type: "user"}
	if err := h.cfg.Tools.DeleteCredential(ctx, state.UserID, name, provider); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h.cfg.Auditor.LogCredential(ctx, audit.ActionCredentialDeleted, actor, state.WorkspaceID, name, provider, true, "")
	return jsonResult(map[string]any{"status": "deleted", "tool_name": name, "provider": provider}), nil
}
