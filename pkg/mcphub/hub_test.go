// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package mcphub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/auth"
	"github.com/omnihub-ai/omnihub/pkg/channels"
	"github.com/omnihub-ai/omnihub/pkg/registry"
	"github.com/omnihub-ai/omnihub/pkg/secrets"
	"github.com/omnihub-ai/omnihub/pkg/store"
	"github.com/omnihub-ai/omnihub/pkg/timers"
	"github.com/omnihub-ai/omnihub/pkg/usertools"
)

func testHub(t *testing.T, identity *auth.Identity) *Hub {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.CreateUserWithWorkspace(context.Background(),
		&store.User{ID: "u1", Email: "u1@example.com", MFAGraceEnd: time.Now()}, "U1's Workspace"))

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	cipher, err := secrets.NewCipherWithKey(key)
	require.NoError(t, err)

	return New(Config{
		Tools:          usertools.NewManager(s, registry.New(s), cipher),
		Channels:       channels.NewManager(t.TempDir()),
		Timers:         timers.NewManager(),
		Auditor:        audit.NewAuditor(s),
		StaticIdentity: identity,
	})
}

// callTool drives a tools/call through the full middleware chain and
// returns the first text content plus the error flag.
func callTool(t *testing.T, h *Hub, name string, args map[string]any) (string, bool) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      name,
			"arguments": args,
		},
	})
	require.NoError(t, err)

	encoded, err := json.Marshal(h.mcp.HandleMessage(context.Background(), raw))
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			IsError bool `json:"isError"`
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	if decoded.Error != nil {
		t.Fatalf("protocol error calling %s: %s", name, decoded.Error.Message)
	}
	require.NotEmpty(t, decoded.Result.Content)
	return decoded.Result.Content[0].Text, decoded.Result.IsError
}

func TestUserScopedToolsRejectAnonymousCalls(t *testing.T) {
	t.Parallel()
	h := testHub(t, nil)

	for _, name := range []string{"list_my_tools", "get_tool_config", "store_credential", "list_workflows"} {
		text, isError := callTool(t, h, name, map[string]any{
			"tool_name": "spark",
			"provider":  "p",
			"secrets":   map[string]any{"k": "v"},
		})
		assert.True(t, isError, "tool %s accepted an anonymous call", name)
		assert.Contains(t, text, "not authenticated")
	}
}

func TestCatalogueToolsWorkWithoutIdentity(t *testing.T) {
	t.Parallel()
	h := testHub(t, nil)

	text, isError := callTool(t, h, "get_available_tools", nil)
	require.False(t, isError, text)
	assert.Contains(t, text, "spark")
	assert.Contains(t, text, "whatsapp")
}

func TestAddToolReportsMissingConfig(t *testing.T) {
	t.Parallel()
	h := testHub(t, &auth.Identity{UserID: "u1", WorkspaceID: "w1"})

	text, isError := callTool(t, h, "add_tool", map[string]any{"tool_name": "spark"})
	require.True(t, isError)
	assert.Contains(t, text, "api_key")
	assert.Contains(t, text, "base_url")
}

func TestSparkConfigIsInjectedPerCall(t *testing.T) {
	t.Parallel()
	h := testHub(t, &auth.Identity{UserID: "u1", WorkspaceID: "w1"})

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/workflows", r.URL.Path)
		require.Equal(t, "Bearer k1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"workflows":[{"id":"wf1","name":"deploy","status":"active"}]}`))
	}))
	defer upstream.Close()

	// Before the tool is added, the call must fail with guidance rather
	// than reach any upstream.
	text, isError := callTool(t, h, "list_workflows", nil)
	require.True(t, isError)
	assert.Contains(t, text, "not configured")

	text, isError = callTool(t, h, "add_tool", map[string]any{
		"tool_name": "spark",
		"config":    map[string]any{"api_key": "k1", "base_url": upstream.URL},
	})
	require.False(t, isError, text)

	text, isError = callTool(t, h, "list_workflows", nil)
	require.False(t, isError, text)
	assert.Contains(t, text, "deploy")
	assert.Contains(t, text, "wf1")
}

func TestTimerToolLifecycle(t *testing.T) {
	t.Parallel()
	h := testHub(t, &auth.Identity{UserID: "u1", WorkspaceID: "w1"})

	text, isError := callTool(t, h, "start_timer", map[string]any{"duration": 60})
	require.False(t, isError, text)
	var started struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &started))
	require.NotEmpty(t, started.ID)
	assert.Equal(t, timers.StatusRunning, started.Status)

	text, isError = callTool(t, h, "get_timer_status", map[string]any{"id": started.ID})
	require.False(t, isError, text)
	assert.Contains(t, text, timers.StatusRunning)

	text, isError = callTool(t, h, "cancel_timer", map[string]any{"id": started.ID})
	require.False(t, isError, text)

	// A second cancel finds nothing running.
	_, isError = callTool(t, h, "cancel_timer", map[string]any{"id": started.ID})
	assert.True(t, isError)
}

func TestWaitUntilRejectsMalformedTimestamp(t *testing.T) {
	t.Parallel()
	h := testHub(t, &auth.Identity{UserID: "u1", WorkspaceID: "w1"})

	text, isError := callTool(t, h, "wait_until_timestamp", map[string]any{"timestamp": "tomorrow-ish"})
	require.True(t, isError)
	assert.Contains(t, text, "invalid-timestamp-format")
}

func TestChannelToolsRoundTrip(t *testing.T) {
	t.Parallel()
	h := testHub(t, &auth.Identity{UserID: "u1", WorkspaceID: "w1"})

	text, isError := callTool(t, h, "send_message", map[string]any{
		"channel": "builds",
		"content": "done",
	})
	require.False(t, isError, text)
	var sent struct {
		Status    string `json:"status"`
		MessageID string `json:"message_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &sent))
	assert.Equal(t, "sent", sent.Status)
	require.NotEmpty(t, sent.MessageID)

	text, isError = callTool(t, h, "listen_for_message", map[string]any{
		"channel": "builds",
		"timeout": 2,
	})
	require.False(t, isError, text)
	var received struct {
		Status  string `json:"status"`
		Message struct {
			ChannelID string `json:"channel_id"`
			Content   string `json:"content"`
			SenderID  string `json:"sender_id"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &received))
	assert.Equal(t, "received", received.Status)
	assert.Equal(t, "builds", received.Message.ChannelID)
	assert.Equal(t, "done", received.Message.Content)
	// The sender is stamped from the resolved identity.
	assert.Equal(t, "u1", received.Message.SenderID)
}

func TestSendMessageWaitForReply(t *testing.T) {
	t.Parallel()
	h := testHub(t, &auth.Identity{UserID: "u1", WorkspaceID: "w1"})

	// The responder picks up the ping and answers on the derived reply
	// channel while the caller blocks in send_message.
	respErr := make(chan error, 1)
	go func() {
		ctx := context.Background()
		result, err := h.cfg.Channels.Listen(ctx, "demo", 5*time.Second)
		if err != nil {
			respErr <- err
			return
		}
		_, err = h.cfg.Channels.SendReply(ctx, result.Message.ID, "demo", "pong", "responder", nil)
		respErr <- err
	}()

	text, isError := callTool(t, h, "send_message", map[string]any{
		"channel":        "demo",
		"content":        "ping",
		"wait_for_reply": true,
		"reply_timeout":  5,
	})
	require.False(t, isError, text)
	require.NoError(t, <-respErr)

	var resp struct {
		MessageID   string `json:"message_id"`
		ReplyStatus string `json:"reply_status"`
		Reply       struct {
			Content string `json:"content"`
		} `json:"reply"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.NotEmpty(t, resp.MessageID)
	assert.Equal(t, "received", resp.ReplyStatus)
	assert.Equal(t, "pong", resp.Reply.Content)
}

func TestCredentialToolsRedactListings(t *testing.T) {
	t.Parallel()
	h := testHub(t, &auth.Identity{UserID: "u1", WorkspaceID: "w1"})

	text, isError := callTool(t, h, "store_credential", map[string]any{
		"tool_name": "whatsapp",
		"provider":  "meta",
		"secrets": map[string]any{
			"access_token":  "tok-secret",
			"refresh_token": "ref-secret",
		},
	})
	require.False(t, isError, text)

	text, isError = callTool(t, h, "list_credentials", nil)
	require.False(t, isError, text)
	assert.Contains(t, text, "whatsapp")
	assert.NotContains(t, text, "tok-secret")
	assert.NotContains(t, text, "ref-secret")

	text, isError = callTool(t, h, "get_credential", map[string]any{
		"tool_name": "whatsapp",
		"provider":  "meta",
	})
	require.False(t, isError, text)
	assert.Contains(t, text, "tok-secret")
}
