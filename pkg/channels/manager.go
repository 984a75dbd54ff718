// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package channels

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/omnihub-ai/omnihub/pkg/config"
)

// pollInterval is how often Listen re-checks the pending queue. Listeners
// never hold the lock between polls.
const pollInterval = 100 * time.Millisecond

// Manager is the channel store rooted at one directory. Managers in
// separate processes pointed at the same directory interoperate.
type Manager struct {
	dir            string
	maxQueueSize   int
	maxHistorySize int
	defaultTimeout time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxQueueSize bounds the per-channel pending queue.
func WithMaxQueueSize(n int) Option {
	return func(m *Manager) { m.maxQueueSize = n }
}

// WithMaxHistorySize bounds the per-channel history.
func WithMaxHistorySize(n int) Option {
	return func(m *Manager) { m.maxHistorySize = n }
}

// WithDefaultListenTimeout sets the timeout used when Listen is called
// with a non-positive timeout.
func WithDefaultListenTimeout(d time.Duration) Option {
	return func(m *Manager) { m.defaultTimeout = d }
}

// NewManager creates a Manager over the given directory.
func NewManager(dir string, opts ...Option) *Manager {
	m := &Manager{
		dir:            dir,
		maxQueueSize:   config.DefaultMaxQueueSize,
		maxHistorySize: config.DefaultMaxHistorySize,
		defaultTimeout: time.Duration(config.DefaultListenTimeout * float64(time.Second)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send enqueues a message and appends it to history. When the pending
// queue is already at capacity the oldest message is dropped, favouring
// fresh traffic under sustained pressure.
func (m *Manager) Send(ctx context.Context, channel, content, senderID string, metadata map[string]any) (*Message, error) {
	msg := &Message{
		ID:       ulid.Make().String(),
		Channel:  channel,
		Content:  content,
		SenderID: senderID,
		Metadata: metadata,
		SentAt:   time.Now().UTC(),
	}

	err := m.withExclusive(ctx, func(channels channelsDoc, history historyDoc) error {
		state := ensureChannel(channels, channel, msg.SentAt)

		state.Pending = append(state.Pending, *msg)
		if len(state.Pending) > m.maxQueueSize {
			state.Pending = state.Pending[len(state.Pending)-m.maxQueueSize:]
		}
		state.Info.TotalMessagesSent++
		state.Info.PendingMessages = len(state.Pending)
		state.Info.LastActivity = msg.SentAt

		history[channel] = append(history[channel], *msg)
		if len(history[channel]) > m.maxHistorySize {
			history[channel] = history[channel][len(history[channel])-m.maxHistorySize:]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Listen blocks until a message arrives on the channel, the timeout
// elapses, or ctx is cancelled. The listener count is incremented up
// front and decremented on every exit path.
func (m *Manager) Listen(ctx context.Context, channel string, timeout time.Duration) (*ListenResult, error) {
	if timeout <= 0 {
		timeout = m.defaultTimeout
	}

	if err := m.adjustListeners(ctx, channel, +1); err != nil {
		return nil, err
	}
	defer func() {
		// Decrement must run on all exit paths; use a fresh context so
		// caller cancellation cannot strand the count.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), lockTimeout)
		defer cancel()
		_ = m.adjustListeners(cleanupCtx, channel, -1)
	}()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		msg, err := m.popOldest(ctx, channel)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return &ListenResult{Status: StatusReceived, Message: msg}, nil
		}
		if time.Now().After(deadline) {
			return &ListenResult{Status: StatusTimeout}, nil
		}

		select {
		case <-ctx.Done():
			return &ListenResult{Status: StatusCancelled}, nil
		case <-ticker.C:
		}
	}
}

// History returns the last limit messages for the channel, oldest first.
func (m *Manager) History(ctx context.Context, channel string, limit int) ([]Message, error) {
	var out []Message
	err := m.withShared(ctx, func(_ channelsDoc, history historyDoc) error {
		messages := history[channel]
		if limit > 0 && len(messages) > limit {
			messages = messages[len(messages)-limit:]
		}
		out = append(out, messages...)
		return nil
	})
	return out, err
}

// Clear empties the channel's pending queue and history. The channel
// record itself is retained.
func (m *Manager) Clear(ctx context.Context, channel string) error {
	return m.withExclusive(ctx, func(channels channelsDoc, history historyDoc) error {
		if state, ok := channels[channel]; ok {
			state.Pending = nil
			state.Info.PendingMessages = 0
			state.Info.LastActivity = time.Now().UTC()
		}
		delete(history, channel)
		return nil
	})
}

// ActiveChannels enumerates all channels with their metadata, sorted by
// name.
func (m *Manager) ActiveChannels(ctx context.Context) ([]ChannelSummary, error) {
	var out []ChannelSummary
	err := m.withShared(ctx, func(channels channelsDoc, _ historyDoc) error {
		for name, state := range channels {
			out = append(out, ChannelSummary{
				Name:      name,
				Listeners: state.Listeners,
				Info:      state.Info,
			})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

// SendWithReply sends to the channel, then listens on the dedicated reply
// channel derived from the message id.
func (m *Manager) SendWithReply(ctx context.Context, channel, content, senderID string, metadata map[string]any, replyTimeout time.Duration) (*Message, *ListenResult, error) {
	msg, err := m.Send(ctx, channel, content, senderID, metadata)
	if err != nil {
		return nil, nil, err
	}
	reply, err := m.Listen(ctx, ReplyChannel(channel, msg.ID), replyTimeout)
	if err != nil {
		return msg, nil, err
	}
	return msg, reply, nil
}

// SendReply sends to the reply channel paired with the original message.
func (m *Manager) SendReply(ctx context.Context, originalMessageID, replyChannel, content, senderID string, metadata map[string]any) (*Message, error) {
	return m.Send(ctx, ReplyChannel(replyChannel, originalMessageID), content, senderID, metadata)
}

// Cleanup removes channels idle for longer than inactiveHours that have
// no listeners. Returns the removed channel names.
func (m *Manager) Cleanup(ctx context.Context, inactiveHours float64) ([]string, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(inactiveHours * float64(time.Hour)))
	var removed []string
	err := m.withExclusive(ctx, func(channels channelsDoc, history historyDoc) error {
		for name, state := range channels {
			if state.Listeners == 0 && state.Info.LastActivity.Before(cutoff) {
				delete(channels, name)
				delete(history, name)
				removed = append(removed, name)
			}
		}
		return nil
	})
	sort.Strings(removed)
	return removed, err
}

// ReplyChannel derives the dedicated reply channel name. The ":" keeps
// reply channels disjoint from ordinary names.
func ReplyChannel(channel, messageID string) string {
	return fmt.Sprintf("%s:reply:%s", channel, messageID)
}

func (m *Manager) adjustListeners(ctx context.Context, channel string, delta int) error {
	return m.withExclusive(ctx, func(channels channelsDoc, _ historyDoc) error {
		state := ensureChannel(channels, channel, time.Now().UTC())
		state.Listeners += delta
		if state.Listeners < 0 {
			state.Listeners = 0
		}
		return nil
	})
}

// popOldest removes and returns the head of the pending queue, or nil
// when the queue is empty.
func (m *Manager) popOldest(ctx context.Context, channel string) (*Message, error) {
	var msg *Message
	err := m.withExclusive(ctx, func(channels channelsDoc, _ historyDoc) error {
		state, ok := channels[channel]
		if !ok || len(state.Pending) == 0 {
			return nil
		}
		head := state.Pending[0]
		state.Pending = state.Pending[1:]
		state.Info.PendingMessages = len(state.Pending)
		state.Info.LastActivity = time.Now().UTC()
		msg = &head
		return nil
	})
	return msg, err
}

func ensureChannel(channels channelsDoc, name string, now time.Time) *channelState {
	state, ok := channels[name]
	if !ok {
		state = &channelState{Info: ChannelInfo{CreatedAt: now, LastActivity: now}}
		channels[name] = state
	}
	return state
}
