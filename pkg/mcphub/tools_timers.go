// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package mcphub

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/omnihub-ai/omnihub/pkg/timers"
)

func (h *Hub) registerTimerTools() {
	h.mcp.AddTool(mcp.NewTool("start_timer",
		mcp.WithDescription("Start a background timer."),
		mcp.WithNumber("duration", mcp.Required(), mcp.Description("Timer duration in seconds")),
		mcp.WithNumber("interval", mcp.Description("Progress tick interval in seconds")),
	), h.handleStartTimer)

	h.mcp.AddTool(mcp.NewTool("get_timer_status",
		mcp.WithDescription("Get a timer's current status."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Timer id")),
	), h.handleGetTimerStatus)

	h.mcp.AddTool(mcp.NewTool("cancel_timer",
		mcp.WithDescription("Cancel a running timer."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Timer id")),
	), h.handleCancelTimer)

	h.mcp.AddTool(mcp.NewTool("list_active_timers",
		mcp.WithDescription("List running timers."),
	), h.handleListActiveTimers)

	h.mcp.AddTool(mcp.NewTool("cleanup_timers",
		mcp.WithDescription("Prune completed and cancelled timers."),
	), h.handleCleanupTimers)

	h.mcp.AddTool(mcp.NewTool("wait_seconds",
		mcp.WithDescription("Block for a number of seconds."),
		mcp.WithNumber("duration", mcp.Required(), mcp.Description("Seconds to wait")),
	), h.handleWaitSeconds)

	h.mcp.AddTool(mcp.NewTool("wait_minutes",
		mcp.WithDescription("Block for a number of minutes."),
		mcp.WithNumber("duration", mcp.Required(), mcp.Description("Minutes to wait")),
	), h.handleWaitMinutes)

	h.mcp.AddTool(mcp.NewTool("wait_until_timestamp",
		mcp.WithDescription("Block until an RFC3339 timestamp."),
		mcp.WithString("timestamp", mcp.Required(), mcp.Description("RFC3339 timestamp, e.g. 2026-01-02T15:04:05Z")),
	), h.handleWaitUntilTimestamp)

	h.mcp.AddTool(mcp.NewTool("wait_with_progress",
		mcp.WithDescription("Block for a duration, emitting progress ticks."),
		mcp.WithNumber("duration", mcp.Required(), mcp.Description("Seconds to wait")),
		mcp.WithNumber("interval", mcp.Required(), mcp.Description("Tick interval in seconds")),
	), h.handleWaitWithProgress)
}

func (h *Hub) handleStartTimer(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	duration, err := req.RequireFloat("duration")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	interval := req.GetFloat("interval", 0)

	id := h.cfg.Timers.StartTimer(
		time.Duration(duration*float64(time.Second)),
		time.Duration(interval*float64(time.Second)),
	)
	return jsonResult(map[string]any{"id": id, "status": timers.StatusRunning}), nil
}

func (h *Hub) handleGetTimerStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	handle, ok := h.cfg.Timers.GetStatus(id)
	if !ok {
		return mcp.NewToolResultError("unknown timer: " + id), nil
	}
	return jsonResult(handle), nil
}

func (h *Hub) handleCancelTimer(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !h.cfg.Timers.CancelTimer(id) {
		return mcp.NewToolResultError("timer is not running: " + id), nil
	}
	return jsonResult(map[string]any{"id": id, "status": timers.StatusCancelled}), nil
}

func (h *Hub) handleListActiveTimers(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"timers": h.cfg.Timers.ListActive()}), nil
}

func (h *Hub) handleCleanupTimers(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"removed": h.cfg.Timers.Cleanup()}), nil
}

func (h *Hub) handleWaitSeconds(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	duration, err := req.RequireFloat("duration")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := timers.Wait(ctx, time.Duration(duration*float64(time.Second)))
	return jsonResult(result), nil
}

func (h *Hub) handleWaitMinutes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	duration, err := req.RequireFloat("duration")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := timers.Wait(ctx, time.Duration(duration*float64(time.Minute)))
	return jsonResult(result), nil
}

func (h *Hub) handleWaitUntilTimestamp(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	timestamp, err := req.RequireString("timestamp")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := timers.WaitUntil(ctx, timestamp)
	if err != nil {
		if errors.Is(err, timers.ErrInvalidTimestamp) {
			return mcp.NewToolResultError(timers.ErrInvalidTimestamp.Error()), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result), nil
}

func (h *Hub) handleWaitWithProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	duration, err := req.RequireFloat("duration")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	interval, err := req.RequireFloat("interval")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := timers.WaitWithProgress(ctx,
		time.Duration(duration*float64(time.Second)),
		time.Duration(interval*float64(time.Second)),
		nil)
	return jsonResult(result), nil
}
