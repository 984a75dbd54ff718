// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package mcphub

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

func (h *Hub) registerChannelTools() {
	h.mcp.AddTool(mcp.NewTool("listen_for_message",
		mcp.WithDescription("Block until a message arrives on the channel or the timeout elapses."),
		mcp.WithString("channel", mcp.Required(), mcp.Description("Channel name")),
		mcp.WithNumber("timeout", mcp.Description("Seconds to wait; defaults from runtime config")),
	), h.handleListenForMessage)

	h.mcp.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a message to a channel, optionally waiting for a reply."),
		mcp.WithString("channel", mcp.Required(), mcp.Description("Channel name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Message body")),
		mcp.WithBoolean("wait_for_reply", mcp.Description("Listen on the derived reply channel")),
		mcp.WithNumber("reply_timeout", mcp.Description("Seconds to wait for the reply")),
		mcp.WithObject("metadata", mcp.Description("Free-form metadata attached to the message")),
	), h.handleSendMessage)

	h.mcp.AddTool(mcp.NewTool("send_reply",
		mcp.WithDescription("Reply to a message received on a channel."),
		mcp.WithString("original_message_id", mcp.Required(), mcp.Description("ID of the message being answered")),
		mcp.WithString("reply_channel", mcp.Required(), mcp.Description("Channel the original message arrived on")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Reply body")),
		mcp.WithObject("metadata", mcp.Description("Free-form metadata attached to the reply")),
	), h.handleSendReply)

	h.mcp.AddTool(mcp.NewTool("get_channel_history",
		mcp.WithDescription("Get the most recent messages on a channel."),
		mcp.WithString("channel", mcp.Required(), mcp.Description("Channel name")),
		mcp.WithNumber("limit", mcp.Description("Maximum messages to return")),
	), h.handleGetChannelHistory)

	h.mcp.AddTool(mcp.NewTool("clear_channel",
		mcp.WithDescription("Empty a channel's pending queue and history."),
		mcp.WithString("channel", mcp.Required(), mcp.Description("Channel name")),
	), h.handleClearChannel)

	h.mcp.AddTool(mcp.NewTool("list_active_channels",
		mcp.WithDescription("Enumerate channels with their metadata."),
	), h.handleListActiveChannels)
}

func (h *Hub) handleListenForMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channel, err := req.RequireString("channel")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	timeout := time.Duration(req.GetFloat("timeout", 0) * float64(time.Second))

	result, err := h.cfg.Channels.Listen(ctx, channel, timeout)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result), nil
}

func (h *Hub) handleSendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channel, err := req.RequireString("channel")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	metadata, _ := req.GetArguments()["metadata"].(map[string]any)

	sender := ""
	if state, ok := StateFromContext(ctx); ok {
		sender = state.UserID
	}

	if req.GetBool("wait_for_reply", false) {
		replyTimeout := time.Duration(req.GetFloat("reply_timeout", 0) * float64(time.Second))
		msg, reply, err := h.cfg.Channels.SendWithReply(ctx, channel, content, sender, metadata, replyTimeout)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{
			"message_id":   msg.ID,
			"reply_status": reply.Status,
			"reply":        reply.Message,
		}), nil
	}

	msg, err := h.cfg.Channels.Send(ctx, channel, content, sender, metadata)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"status": "sent", "message_id": msg.ID}), nil
}

func (h *Hub) handleSendReply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	originalID, err := req.RequireString("original_message_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	replyChannel, err := req.RequireString("reply_channel")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	metadata, _ := req.GetArguments()["metadata"].(map[string]any)

	sender := ""
	if state, ok := StateFromContext(ctx); ok {
		sender = state.UserID
	}

	msg, err := h.cfg.Channels.SendReply(ctx, originalID, replyChannel, content, sender, metadata)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"status": "sent", "message_id": msg.ID, "channel": msg.Channel}), nil
}

func (h *Hub) handleGetChannelHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channel, err := req.RequireString("channel")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := int(req.GetFloat("limit", 0))

	history, err := h.cfg.Channels.History(ctx, channel, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"channel": channel, "messages": history}), nil
}

func (h *Hub) handleClearChannel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channel, err := req.RequireString("channel")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := h.cfg.Channels.Clear(ctx, channel); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"status": "cleared", "channel": channel}), nil
}

func (h *Hub) handleListActiveChannels(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries, err := h.cfg.Channels.ActiveChannels(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"channels": summaries}), nil
}
