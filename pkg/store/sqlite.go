// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // CGO-free sqlite driver
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// sqliteStore implements Store backed by a SQLite database file.
type sqliteStore struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the SQLite store at path and applies
// pending schema migrations.
func Open(ctx context.Context, path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		url.PathEscape(path))
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under concurrent handlers.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// SchemaExists reports whether the store file at path already contains the
// hub schema. Used by bootstrap to distinguish NO_DATABASE from later states.
func SchemaExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}
	db, err := sql.Open("sqlite", "file:"+url.PathEscape(path)+"?mode=ro")
	if err != nil {
		return false
	}
	defer db.Close()
	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='system_config'`).Scan(&name)
	return err == nil
}

func (s *sqliteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// notFound maps sql.ErrNoRows onto the store sentinel.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- System config -------------------------------------------------------

func (s *sqliteStore) GetSystemConfig(ctx context.Context, key string) (*SystemConfig, error) {
	var cfg SystemConfig
	err := s.db.GetContext(ctx, &cfg,
		`SELECT key, value, is_secret, updated_at FROM system_config WHERE key = ?`, key)
	if err != nil {
		return nil, notFound(err)
	}
	return &cfg, nil
}

func (s *sqliteStore) SetSystemConfig(ctx context.Context, key, value string, isSecret bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO system_config (key, value, is_secret, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value,
		   is_secret = excluded.is_secret, updated_at = excluded.updated_at`,
		key, value, isSecret, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set config %q: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) DeleteSystemConfig(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM system_config WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete config %q: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) ListSystemConfig(ctx context.Context) ([]SystemConfig, error) {
	var configs []SystemConfig
	err := s.db.SelectContext(ctx, &configs,
		`SELECT key, value, is_secret, updated_at FROM system_config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list config: %w", err)
	}
	return configs, nil
}

// --- Workspaces ----------------------------------------------------------

func (s *sqliteStore) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	var ws Workspace
	err := s.db.GetContext(ctx, &ws,
		`SELECT id, name, slug, owner_user_id, external_org_id, settings, created_at
		 FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &ws, nil
}

func (s *sqliteStore) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var workspaces []Workspace
	err := s.db.SelectContext(ctx, &workspaces,
		`SELECT id, name, slug, owner_user_id, external_org_id, settings, created_at
		 FROM workspaces ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return workspaces, nil
}

func (s *sqliteStore) UpdateWorkspace(ctx context.Context, id, name, settings string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE workspaces SET name = ?, settings = ? WHERE id = ?`, name, settings, id)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DeleteWorkspace(ctx context.Context, id string) error {
	// Users and their tool state cascade via foreign keys. Audit entries
	// are retained by design.
	res, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Users ---------------------------------------------------------------

func (s *sqliteStore) CreateUserWithWorkspace(ctx context.Context, user *User, workspaceName string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = RoleWorkspaceOwner
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	slug, err := uniqueSlug(ctx, tx, workspaceName)
	if err != nil {
		return err
	}

	workspaceID := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, slug, owner_user_id, settings, created_at)
		 VALUES (?, ?, ?, ?, '{}', ?)`,
		workspaceID, workspaceName, slug, user.ID, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	user.WorkspaceID = workspaceID
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, given_name, family_name, role, workspace_id,
		   is_super_admin, provisioning_source, mfa_grace_end, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.GivenName, user.FamilyName, user.Role, user.WorkspaceID,
		user.IsSuperAdmin, user.ProvisioningSource, user.MFAGraceEnd, user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("user %s: %w", user.Email, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return tx.Commit()
}

// uniqueSlug derives a slug from name, appending a numeric suffix until it
// does not collide with an existing workspace.
func uniqueSlug(ctx context.Context, tx *sqlx.Tx, name string) (string, error) {
	base := Slugify(name)
	slug := base
	for i := 2; ; i++ {
		var count int
		if err := tx.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM workspaces WHERE slug = ?`, slug); err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

const userColumns = `id, email, given_name, family_name, role, workspace_id,
	is_super_admin, provisioning_source, mfa_grace_end, created_at`

func (s *sqliteStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *sqliteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *sqliteStore) SetSuperAdmin(ctx context.Context, userID string, isSuperAdmin bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_super_admin = ? WHERE id = ?`, isSuperAdmin, userID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) ListUsersByWorkspace(ctx context.Context, workspaceID string) ([]User, error) {
	var users []User
	err := s.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE workspace_id = ? ORDER BY created_at`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
