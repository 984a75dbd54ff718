// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/omnihub-ai/omnihub/pkg/secrets"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// cacheTTL bounds staleness of the runtime config snapshot between
// explicit invalidations.
const cacheTTL = 60 * time.Second

// RuntimeConfig is the immutable snapshot of settings the serving path
// needs. Reload through Provider rather than mutating fields.
type RuntimeConfig struct {
	AppMode          string
	Host             string
	Port             int
	DatabasePath     string
	ChannelDir       string
	AllowedOrigins   []string
	HSTSEnabled      bool
	CSPReportURI     string
	SuperAdminEmails []string
	// CookiePassword seals SSO session cookies. Empty in local mode.
	CookiePassword string
	// LocalAPIKey signs local session cookies. Empty in workos mode.
	LocalAPIKey string
	// LocalAdminEmail is the pre-provisioned local-mode admin account.
	LocalAdminEmail string
	WorkOSIssuerURL string
	WorkOSClientID  string
	// WorkOSAPIKey doubles as the OAuth client secret on token refresh.
	WorkOSAPIKey string
}

// IsSuperAdminEmail reports whether email appears in the configured
// super-admin list (case-insensitive, trimmed).
func (c *RuntimeConfig) IsSuperAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.SuperAdminEmails {
		if strings.ToLower(strings.TrimSpace(admin)) == email {
			return true
		}
	}
	return false
}

// Configured reports whether the setup wizard has completed.
func (c *RuntimeConfig) Configured() bool {
	return c.AppMode == ModeLocal || c.AppMode == ModeWorkOS
}

// Provider serves the runtime config with a TTL cache. Writes through the
// config API call Invalidate to force a reload on next read.
type Provider struct {
	store  store.Store
	cipher *secrets.Cipher

	mu       sync.Mutex
	cached   *RuntimeConfig
	loadedAt time.Time
}

// NewProvider creates a runtime config provider over the given store.
// The cipher decrypts secret values; it may be nil before bootstrap
// completes, in which case secret keys resolve to empty strings.
func NewProvider(s store.Store, cipher *secrets.Cipher) *Provider {
	return &Provider{store: s, cipher: cipher}
}

// Get returns the runtime config, reloading from the store when the cached
// snapshot is older than the TTL.
func (p *Provider) Get(ctx context.Context) (*RuntimeConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && time.Since(p.loadedAt) < cacheTTL {
		return p.cached, nil
	}

	cfg, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	p.cached = cfg
	p.loadedAt = time.Now()
	return cfg, nil
}

// Invalidate drops the cached snapshot so the next Get reloads.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

func (p *Provider) load(ctx context.Context) (*RuntimeConfig, error) {
	cfg := &RuntimeConfig{
		AppMode: ModeUnconfigured,
		Host:    DefaultHost,
		Port:    DefaultPort,
	}

	cfg.AppMode = p.stringValue(ctx, KeyAppMode, cfg.AppMode)
	cfg.Host = p.stringValue(ctx, KeyHost, cfg.Host)
	cfg.DatabasePath = p.stringValue(ctx, KeyDatabasePath, "")
	cfg.ChannelDir = p.stringValue(ctx, KeyChannelDir, "")
	cfg.CSPReportURI = p.stringValue(ctx, KeyCSPReportURI, "")
	cfg.LocalAdminEmail = p.stringValue(ctx, KeyLocalAdminEmail, "")
	cfg.WorkOSIssuerURL = p.stringValue(ctx, KeyWorkOSIssuerURL, "")
	cfg.WorkOSClientID = p.stringValue(ctx, KeyWorkOSClientID, "")

	if raw := p.stringValue(ctx, KeyPort, ""); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", KeyPort, raw, err)
		}
		cfg.Port = port
	}

	if raw := p.stringValue(ctx, KeyAllowedOrigins, ""); raw != "" {
		cfg.AllowedOrigins = splitAndTrim(raw)
	}
	if raw := p.stringValue(ctx, KeySuperAdminEmails, ""); raw != "" {
		cfg.SuperAdminEmails = splitAndTrim(raw)
	}
	if raw := p.stringValue(ctx, KeyHSTSEnabled, ""); raw != "" {
		cfg.HSTSEnabled, _ = strconv.ParseBool(raw)
	}

	var err error
	cfg.CookiePassword, err = p.secretValue(ctx, KeyWorkOSCookiePassword)
	if err != nil {
		return nil, err
	}
	cfg.LocalAPIKey, err = p.secretValue(ctx, KeyLocalAPIKey)
	if err != nil {
		return nil, err
	}
	cfg.WorkOSAPIKey, err = p.secretValue(ctx, KeyWorkOSAPIKey)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (p *Provider) stringValue(ctx context.Context, key, fallback string) string {
	row, err := p.store.GetSystemConfig(ctx, key)
	if err != nil {
		return fallback
	}
	return row.Value
}

func (p *Provider) secretValue(ctx context.Context, key string) (string, error) {
	row, err := p.store.GetSystemConfig(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !row.IsSecret {
		return row.Value, nil
	}
	if p.cipher == nil {
		return "", nil
	}
	plaintext, err := p.cipher.DecryptString(row.Value)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plaintext, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
