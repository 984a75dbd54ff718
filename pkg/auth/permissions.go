// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import "github.com/omnihub-ai/omnihub/pkg/store"

// Permission names checked by RequirePermission.
const (
	PermToolsRead        = "tools:read"
	PermToolsWrite       = "tools:write"
	PermCredentialsWrite = "credentials:write"
	PermWorkspaceRead    = "workspace:read"
	PermWorkspaceWrite   = "workspace:write"
	PermAuditRead        = "audit:read"
	PermServerControl    = "server:control"
	PermAdminRead        = "admin:read"
)

// rolePermissions maps each permission to the roles allowed to hold it.
// Super-admins bypass the table entirely.
var rolePermissions = map[string][]string{
	PermToolsRead:        {store.RoleWorkspaceOwner, store.RoleWorkspaceMember, store.RoleWorkspaceViewer},
	PermToolsWrite:       {store.RoleWorkspaceOwner, store.RoleWorkspaceMember},
	PermCredentialsWrite: {store.RoleWorkspaceOwner, store.RoleWorkspaceMember},
	PermWorkspaceRead:    {store.RoleWorkspaceOwner, store.RoleWorkspaceMember, store.RoleWorkspaceViewer},
	PermWorkspaceWrite:   {store.RoleWorkspaceOwner},
	PermAuditRead:        {store.RoleWorkspaceOwner},
	PermServerControl:    {},
	PermAdminRead:        {},
}

// HasPermission reports whether the identity holds the permission.
func HasPermission(identity *Identity, permission string) bool {
	if identity == nil {
		return false
	}
	if identity.IsSuperAdmin {
		return true
	}
	for _, role := range rolePermissions[permission] {
		if identity.Role == role {
			return true
		}
	}
	return false
}
