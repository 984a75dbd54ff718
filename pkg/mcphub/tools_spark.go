// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package mcphub

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/omnihub-ai/omnihub/pkg/tools/spark"
)

func (h *Hub) registerSparkTools() {
	h.mcp.AddTool(mcp.NewTool("list_workflows",
		mcp.WithDescription("List Spark workflows visible to the caller's configured API key."),
	), h.handleListWorkflows)
	h.configSources["list_workflows"] = "spark"
}

// handleListWorkflows builds the client from the config injected for this
// call. Nothing is read from process-level state, so two callers with
// different api_key values hit different orchestrators.
func (h *Hub) handleListWorkflows(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, errResult := requireUser(ctx)
	if errResult != nil {
		return errResult, nil
	}
	if len(state.ToolConfig) == 0 {
		return mcp.NewToolResultError("spark is not configured: add the tool with api_key and base_url first"), nil
	}
	client, err := spark.NewClient(state.ToolConfig)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	workflows, err := client.ListWorkflows(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"workflows": workflows}), nil
}
