// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package channels implements file-backed inter-agent message channels.
// Cooperating tool instances, potentially in different processes, meet on
// named channels persisted as JSON documents under advisory file locks.
package channels

import "time"

// Listen result statuses.
const (
	StatusReceived  = "received"
	StatusTimeout   = "timeout"
	StatusCancelled = "cancelled"
)

// Message is one unit of channel traffic.
type Message struct {
	ID       string         `json:"id"`
	Channel  string         `json:"channel_id"`
	Content  string         `json:"content"`
	SenderID string         `json:"sender_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	SentAt   time.Time      `json:"sent_at"`
}

// ChannelInfo is the per-channel bookkeeping kept alongside the queue.
type ChannelInfo struct {
	TotalMessagesSent int       `json:"total_messages_sent"`
	PendingMessages   int       `json:"pending_messages"`
	CreatedAt         time.Time `json:"created_at"`
	LastActivity      time.Time `json:"last_activity"`
}

// ChannelSummary is the public view of one channel.
type ChannelSummary struct {
	Name      string      `json:"name"`
	Listeners int         `json:"listeners"`
	Info      ChannelInfo `json:"info"`
}

// ListenResult is the outcome of a Listen or SendWithReply call.
type ListenResult struct {
	Status  string   `json:"status"`
	Message *Message `json:"message,omitempty"`
}

// channelState is the durable record for one channel in channels.json.
type channelState struct {
	Pending   []Message   `json:"pending"`
	Listeners int         `json:"listeners"`
	Info      ChannelInfo `json:"info"`
}

// channelsDoc is the whole channels.json document.
type channelsDoc map[string]*channelState

// historyDoc is the whole history.json document.
type historyDoc map[string][]Message
