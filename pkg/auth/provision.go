// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omnihub-ai/omnihub/pkg/audit"
	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// mfaGracePeriod is recorded on newly provisioned users.
const mfaGracePeriod = 7 * 24 * time.Hour

// Provisioner creates users and their dedicated workspaces on first login.
type Provisioner struct {
	store   store.Store
	config  *config.Provider
	auditor *audit.Auditor
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(s store.Store, cfg *config.Provider, auditor *audit.Auditor) *Provisioner {
	return &Provisioner{store: s, config: cfg, auditor: auditor}
}

// EnsureUser looks up a user by email and provisions one if absent. Each
// new user gets a dedicated workspace named after them. Super-admin status
// is granted when the email appears on the configured list.
func (p *Provisioner) EnsureUser(ctx context.Context, email, givenName, familyName, source string) (*store.User, error) {
	existing, err := p.store.GetUserByEmail(ctx, email)
	if err == nil {
		return p.reconcileSuperAdmin(ctx, existing)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	cfg, err := p.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	user := &store.User{
		ID:                 uuid.NewString(),
		Email:              email,
		GivenName:          givenName,
		FamilyName:         familyName,
		Role:               store.RoleWorkspaceOwner,
		IsSuperAdmin:       cfg.IsSuperAdminEmail(email),
		ProvisioningSource: source,
		MFAGraceEnd:        time.Now().UTC().Add(mfaGracePeriod),
	}
	if err := p.store.CreateUserWithWorkspace(ctx, user, workspaceName(givenName, email)); err != nil {
		// Concurrent first logins can race on the unique email.
		if errors.Is(err, store.ErrAlreadyExists) {
			return p.store.GetUserByEmail(ctx, email)
		}
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	p.auditor.LogAuth(ctx, audit.ActionUserProvisioned,
		audit.Actor{ID: user.ID, Email: user.Email, Type: "user"},
		user.WorkspaceID, true, "")
	return user, nil
}

// reconcileSuperAdmin promotes an existing user whose email has since been
// added to the super-admin list. Demotion is deliberate-only: a user row
// flagged super-admin stays that way until an admin clears it.
func (p *Provisioner) reconcileSuperAdmin(ctx context.Context, user *store.User) (*store.User, error) {
	if user.IsSuperAdmin {
		return user, nil
	}
	cfg, err := p.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.IsSuperAdminEmail(user.Email) {
		return user, nil
	}
	if err := p.store.SetSuperAdmin(ctx, user.ID, true); err != nil {
		return nil, err
	}
	user.IsSuperAdmin = true
	return user, nil
}

// workspaceName derives the dedicated workspace name from the user's given
// name, falling back to the email local part.
func workspaceName(givenName, email string) string {
	name := strings.TrimSpace(givenName)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	return name + "'s Workspace"
}
