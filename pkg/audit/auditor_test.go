// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnihub-ai/omnihub/pkg/store"
)

func testAuditor(t *testing.T) (*Auditor, store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewAuditor(s), s
}

func TestLogStampsRequestInfo(t *testing.T) {
	t.Parallel()
	a, s := testAuditor(t)

	ctx := WithRequestInfo(context.Background(), RequestInfo{
		RequestID: "req-1", IP: "192.0.2.9", UserAgent: "curl/8",
	})
	a.LogAuth(ctx, ActionLoginSucceeded, Actor{ID: "u1", Email: "a@b.c", Type: "user"}, "w1", true, "")

	entries, err := s.ListAuditEntries(ctx, "w1", store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, ActionLoginSucceeded, entry.Action)
	assert.Equal(t, CategoryAuth, entry.Category)
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, "192.0.2.9", entry.IP)
	assert.Equal(t, "curl/8", entry.UserAgent)
	assert.True(t, entry.Success)
	assert.NotEmpty(t, entry.ID)
}

func TestToolCallWrapper(t *testing.T) {
	t.Parallel()
	a, s := testAuditor(t)
	ctx := context.Background()
	actor := Actor{ID: "u1", Type: "user"}

	require.NoError(t, a.ToolCall(ctx, actor, "w1", ActionToolCalled, "spark", func() error {
		return nil
	}))

	wantErr := errors.New("boom")
	err := a.ToolCall(ctx, actor, "w1", ActionToolCalled, "spark", func() error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	ok, err := s.ListAuditEntries(ctx, "w1", store.AuditFilter{Action: ActionToolCalled})
	require.NoError(t, err)
	require.Len(t, ok, 1)
	assert.True(t, ok[0].Success)

	failed, err := s.ListAuditEntries(ctx, "w1", store.AuditFilter{Action: ActionToolCalled + "_failed"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.False(t, failed[0].Success)
	assert.Equal(t, "boom", failed[0].ErrorMessage)
}

func TestDenialIsRecorded(t *testing.T) {
	t.Parallel()
	a, s := testAuditor(t)
	ctx := context.Background()

	a.LogDenied(ctx, Actor{ID: "u2", Type: "user"}, "w2", "admin:workspaces:read")

	entries, err := s.ListAuditEntries(ctx, "w2", store.AuditFilter{Category: CategorySecurity})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionPermissionDenied, entries[0].Action)
	assert.Contains(t, entries[0].Metadata, "admin:workspaces:read")
}

func TestRunRetention(t *testing.T) {
	t.Parallel()
	a, s := testAuditor(t)
	ctx := context.Background()

	// One stale operational entry, one fresh, one stale-but-retained
	// credential entry (365d policy, only 100d old).
	stale := time.Now().UTC().Add(-100 * 24 * time.Hour)
	fresh := time.Now().UTC().Add(-24 * time.Hour)
	require.NoError(t, s.AppendAuditEntry(ctx, &store.AuditEntry{
		ID: "01OLD", Action: ActionToolCalled, Category: CategoryTool, OccurredAt: stale,
	}))
	require.NoError(t, s.AppendAuditEntry(ctx, &store.AuditEntry{
		ID: "01NEW", Action: ActionToolCalled, Category: CategoryTool, OccurredAt: fresh,
	}))
	require.NoError(t, s.AppendAuditEntry(ctx, &store.AuditEntry{
		ID: "01CRED", Action: ActionCredentialStored, Category: CategoryCredential, OccurredAt: stale,
	}))

	purged, err := a.RunRetention(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	remaining, err := s.ListAuditEntries(ctx, "", store.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
