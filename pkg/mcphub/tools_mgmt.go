// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package mcphub

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/store"
	"github.com/omnihub-ai/omnihub/pkg/usertools"
)

func (h *Hub) registerManagementTools() {
	h.mcp.AddTool(mcp.NewTool("get_available_tools",
		mcp.WithDescription("List the global tool catalogue."),
	), h.handleGetAvailableTools)

	h.mcp.AddTool(mcp.NewTool("get_tool_metadata",
		mcp.WithDescription("Get the descriptor for one tool."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Catalogue tool name")),
	), h.handleGetToolMetadata)

	h.mcp.AddTool(mcp.NewTool("add_tool",
		mcp.WithDescription("Enable a tool for the caller with its configuration."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Catalogue tool name")),
		mcp.WithObject("config", mcp.Description("Configuration values keyed by schema property")),
	), h.handleAddTool)

	h.mcp.AddTool(mcp.NewTool("remove_tool",
		mcp.WithDescription("Disable a tool for the caller. Config and credentials are kept."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Catalogue tool name")),
	), h.handleRemoveTool)

	h.mcp.AddTool(mcp.NewTool("list_my_tools",
		mcp.WithDescription("List the caller's catalogue with per-tool status."),
	), h.handleListMyTools)

	h.mcp.AddTool(mcp.NewTool("get_tool_config",
		mcp.WithDescription("Get the caller's persisted config for a tool."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Catalogue tool name")),
	), h.handleGetToolConfig)

	h.mcp.AddTool(mcp.NewTool("update_tool_config",
		mcp.WithDescription("Merge-update the caller's config for a tool."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Catalogue tool name")),
		mcp.WithObject("partial", mcp.Required(), mcp.Description("Keys to update; omitted keys are unchanged")),
	), h.handleUpdateToolConfig)

	h.mcp.AddTool(mcp.NewTool("get_missing_config",
		mcp.WithDescription("List the schema-required keys the caller has not supplied."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Catalogue tool name")),
	), h.handleGetMissingConfig)
}

func (h *Hub) handleGetAvailableTools(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"tools": h.cfg.Tools.ListAvailable()}), nil
}

func (h *Hub) handleGetToolMetadata(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	descriptor, err := h.cfg.Tools.GetMetadata(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(descriptor), nil
}

func (h *Hub) handleAddTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := requireUser(ctx)
	if errResult != nil {
		return errResult, nil
	}
	name, err := req.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	config, _ := req.GetArguments()["config"].(map[string]any)

	actor := audit.Actor{ID: state.UserID, Type: "user"}
	err = h.cfg.Auditor.ToolCall(ctx, actor, state.WorkspaceID, audit.ActionToolAdded, name, func() error {
		return h.cfg.Tools.AddTool(ctx, state.UserID, name, config)
	})
	if err != nil {
		var invalid *usertools.InvalidConfigError
		if errors.As(err, &invalid) {
			return mcp.NewToolResultError(invalid.Error()), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"status": "added", "tool_name": name}), nil
}

func (h *Hub) handleRemoveTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := requireUser(ctx)
	if errResult != nil {
		return errResult, nil
	}
	name, err := req.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	actor := audit.Actor{ID: state.UserID, Type: "user"}
	err = h.cfg.Auditor.ToolCall(ctx, actor, state.WorkspaceID, audit.ActionToolRemoved, name, func() error {
		return h.cfg.Tools.RemoveTool(ctx, state.UserID, name)
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"status": "removed", "tool_name": name}), nil
}

func (h *Hub) handleListMyTools(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := requireUser(ctx)
	if errResult != nil {
		return errResult, nil
	}
	catalogue, err := h.cfg.Tools.GetCatalogue(ctx, state.UserID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"tools": catalogue}), nil
}

func (h *Hub) handleGetToolConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := requireUser(ctx)
	if errResult != nil {
		return errResult, nil
	}
	name, err := req.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	config, err := h.cfg.Tools.GetConfig(ctx, state.UserID, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(config), nil
}

func (h *Hub) handleUpdateToolConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := requireUser(ctx)
	if errResult != nil {
		return errResult, nil
	}
	name, err := req.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	partial, ok := req.GetArguments()["partial"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("partial must be an object"), nil
	}

	actor := audit.Actor{ID: state.UserID, Type: "user"}
	err = h.cfg.Auditor.ToolCall(ctx, actor, state.WorkspaceID, audit.ActionToolConfigUpdated, name, func() error {
		return h.cfg.Tools.UpdateConfig(ctx, state.UserID, name, partial)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError("unknown tool: " + name), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"status": "updated", "tool_name": name}), nil
}

func (h *Hub) handleGetMissingConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := requireUser(ctx)
	if errResult != nil {
		return errResult, nil
	}
	name, err := req.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	missing, err := h.cfg.Tools.MissingConfig(ctx, state.UserID, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"missing": missing}), nil
}
