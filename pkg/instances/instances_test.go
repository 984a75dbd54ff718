// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package instances

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnihub-ai/omnihub/pkg/registry"
	"github.com/omnihub-ai/omnihub/pkg/secrets"
	"github.com/omnihub-ai/omnihub/pkg/store"
	"github.com/omnihub-ai/omnihub/pkg/usertools"
)

func testManagers(t *testing.T) (*Manager, *usertools.Manager) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	for _, id := range []string{"u1", "u2"} {
		require.NoError(t, s.CreateUserWithWorkspace(context.Background(),
			&store.User{ID: id, Email: id + "@example.com", MFAGraceEnd: time.Now()}, id+"'s Workspace"))
	}

	key := make([]byte, 32)
	cipher, err := secrets.NewCipherWithKey(key)
	require.NoError(t, err)
	tools := usertools.NewManager(s, registry.New(s), cipher)
	return NewManager(tools), tools
}

func TestStartStopLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, tools := testManagers(t)

	require.NoError(t, tools.AddTool(ctx, "u1", "spark",
		map[string]any{"api_key": "k", "base_url": "http://x"}))

	inst, err := m.Start(ctx, "u1", "spark")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, inst.Status)
	assert.Equal(t, "k", inst.Config["api_key"])
	assert.False(t, inst.StartedAt.IsZero())

	// Start is idempotent on a running instance.
	again, err := m.Start(ctx, "u1", "spark")
	require.NoError(t, err)
	assert.Equal(t, inst.StartedAt, again.StartedAt)

	stopped, err := m.Stop(ctx, "u1", "spark")
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, stopped.Status)
	assert.Nil(t, stopped.Config, "config dropped on stop")
}

func TestStartWithMissingConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, _ := testManagers(t)

	inst, err := m.Start(ctx, "u1", "spark")
	require.Error(t, err)
	assert.Equal(t, StatusError, inst.Status)
	assert.Contains(t, inst.LastError, "api_key")

	// The error state is observable via Get.
	assert.Equal(t, StatusError, m.Get("u1", "spark").Status)
}

func TestRefreshPicksUpNewConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, tools := testManagers(t)

	require.NoError(t, tools.AddTool(ctx, "u1", "spark",
		map[string]any{"api_key": "k", "base_url": "http://x"}))
	_, err := m.Start(ctx, "u1", "spark")
	require.NoError(t, err)

	require.NoError(t, tools.UpdateConfig(ctx, "u1", "spark", map[string]any{"base_url": "http://y"}))
	inst, err := m.Refresh(ctx, "u1", "spark")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, inst.Status)
	assert.Equal(t, "http://y", inst.Config["base_url"])
}

func TestRefreshFromMissingStarts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, tools := testManagers(t)

	require.NoError(t, tools.AddTool(ctx, "u1", "spark",
		map[string]any{"api_key": "k", "base_url": "http://x"}))

	inst, err := m.Refresh(ctx, "u1", "spark")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, inst.Status)
}

func TestListAndStopAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, tools := testManagers(t)

	for _, user := range []string{"u1", "u2"} {
		require.NoError(t, tools.AddTool(ctx, user, "spark",
			map[string]any{"api_key": "k", "base_url": "http://x"}))
		_, err := m.Start(ctx, user, "spark")
		require.NoError(t, err)
	}

	assert.Len(t, m.List("u1"), 1)
	assert.Len(t, m.List("u2"), 1)

	m.StopAll("u1")
	assert.Empty(t, m.List("u1"), "u1 instances stopped")
	assert.Len(t, m.List("u2"), 1, "u2 untouched")

	m.Shutdown()
	assert.Empty(t, m.List("u2"))
}

func TestGetUnknownPairIsStopped(t *testing.T) {
	t.Parallel()
	m, _ := testManagers(t)
	inst := m.Get("nobody", "spark")
	assert.Equal(t, StatusStopped, inst.Status)
}
