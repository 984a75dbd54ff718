// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

func testProvisioner(t *testing.T) (*Provisioner, store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := config.NewProvider(s, nil)
	return NewProvisioner(s, cfg, audit.NewAuditor(s)), s
}

func TestEnsureUserProvisionsWorkspace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, s := testProvisioner(t)

	user, err := p.EnsureUser(ctx, "ada@example.com", "Ada", "Lovelace", "sso")
	require.NoError(t, err)
	assert.Equal(t, store.RoleWorkspaceOwner, user.Role)
	assert.NotEmpty(t, user.WorkspaceID)
	assert.False(t, user.IsSuperAdmin)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), user.MFAGraceEnd, time.Minute)

	ws, err := s.GetWorkspace(ctx, user.WorkspaceID)
	require.NoError(t, err)
	assert.Equal(t, "Ada's Workspace", ws.Name)
	assert.Equal(t, "ada-s-workspace", ws.Slug)
	assert.Equal(t, user.ID, ws.OwnerUserID)
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _ := testProvisioner(t)

	first, err := p.EnsureUser(ctx, "bob@example.com", "", "", "sso")
	require.NoError(t, err)
	second, err := p.EnsureUser(ctx, "bob@example.com", "Bob", "", "sso")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.WorkspaceID, second.WorkspaceID)
}

func TestEnsureUserEmailPrefixFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, s := testProvisioner(t)

	user, err := p.EnsureUser(ctx, "grace@example.com", "", "", "local")
	require.NoError(t, err)

	ws, err := s.GetWorkspace(ctx, user.WorkspaceID)
	require.NoError(t, err)
	assert.Equal(t, "grace's Workspace", ws.Name)
}

func TestEnsureUserSuperAdminList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, s := testProvisioner(t)

	require.NoError(t, s.SetSystemConfig(ctx, config.KeySuperAdminEmails, " Root@Example.com , ops@example.com", false))

	user, err := p.EnsureUser(ctx, "root@example.com", "Root", "", "sso")
	require.NoError(t, err)
	assert.True(t, user.IsSuperAdmin, "list match is case-insensitive and trimmed")
}

func TestEnsureUserPromotesExisting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, s := testProvisioner(t)

	user, err := p.EnsureUser(ctx, "late@example.com", "", "", "sso")
	require.NoError(t, err)
	require.False(t, user.IsSuperAdmin)

	require.NoError(t, s.SetSystemConfig(ctx, config.KeySuperAdminEmails, "late@example.com", false))
	p.config.Invalidate()

	promoted, err := p.EnsureUser(ctx, "late@example.com", "", "", "sso")
	require.NoError(t, err)
	assert.True(t, promoted.IsSuperAdmin)
}
