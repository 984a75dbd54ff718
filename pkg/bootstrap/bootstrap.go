// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap brings the hub from an arbitrary on-disk state to a
// serving-ready one. It drives a small state machine:
//
//	NO_DATABASE    -> create schema, migrate
//	EMPTY_DATABASE -> seed encryption salt, import environment
//	UNCONFIGURED   -> wait for the setup wizard
//	CONFIGURED     -> normal operation
//
// Any failure here is fatal: the caller logs the diagnostic and exits
// non-zero. Running bootstrap against an already-configured store is a
// no-op.
package bootstrap

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/secrets"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// State is the bootstrap state machine position.
type State string

// Bootstrap states, in progression order.
const (
	StateNoDatabase    State = "NO_DATABASE"
	StateEmptyDatabase State = "EMPTY_DATABASE"
	StateUnconfigured  State = "UNCONFIGURED"
	StateConfigured    State = "CONFIGURED"
)

// preflightMaxElapsed bounds the startup connectivity check.
const preflightMaxElapsed = 10 * time.Second

// envImports maps process environment variables to system config keys.
// Consulted only on first boot; afterwards all configuration lives in the
// store.
var envImports = []struct {
	env    string
	key    string
	secret bool
}{
	{"OMNIHUB_HOST", config.KeyHost, false},
	{"OMNIHUB_PORT", config.KeyPort, false},
	{"OMNIHUB_ALLOWED_ORIGINS", config.KeyAllowedOrigins, false},
	{"OMNIHUB_HSTS_ENABLED", config.KeyHSTSEnabled, false},
	{"OMNIHUB_CSP_REPORT_URI", config.KeyCSPReportURI, false},
	{"OMNIHUB_SUPER_ADMIN_EMAILS", config.KeySuperAdminEmails, false},
	{"WORKOS_CLIENT_ID", config.KeyWorkOSClientID, false},
	{"WORKOS_ISSUER_URL", config.KeyWorkOSIssuerURL, false},
	{"WORKOS_API_KEY", config.KeyWorkOSAPIKey, true},
	{"WORKOS_COOKIE_PASSWORD", config.KeyWorkOSCookiePassword, true},
	{"OAUTH_CLIENT_ID", config.KeyOAuthClientID, false},
	{"OAUTH_CLIENT_SECRET", config.KeyOAuthClientSecret, true},
}

// Options configures a bootstrap run.
type Options struct {
	// DatabasePath is the SQLite file location.
	DatabasePath string
	// ChannelDir is where the channel store keeps its JSON documents.
	ChannelDir string
	// Getenv overrides environment access, for tests. Defaults to os.Getenv.
	Getenv func(string) string
	// CipherKey, when set, bypasses machine-id key derivation. Tests use
	// this to avoid the 480k-iteration KDF per case.
	CipherKey []byte
}

// Result is the outcome of a successful bootstrap.
type Result struct {
	Store     store.Store
	Cipher    *secrets.Cipher
	Config    *config.Provider
	State     State
	FirstBoot bool
}

// Run executes the bootstrap sequence and returns the opened store, the
// secrets cipher, and the runtime config provider.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.DatabasePath == "" {
		return nil, errors.New("database path is required")
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	initialState := StateNoDatabase
	if store.SchemaExists(opts.DatabasePath) {
		initialState = StateEmptyDatabase
	}
	logger.Infow("bootstrapping", "state", string(initialState), "database", opts.DatabasePath)

	s, err := store.Open(ctx, opts.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := preflight(ctx, s); err != nil {
		s.Close()
		return nil, fmt.Errorf("store preflight failed: %w", err)
	}

	cipher, firstBoot, err := ensureSalt(ctx, s, opts.CipherKey)
	if err != nil {
		s.Close()
		return nil, err
	}

	if firstBoot {
		if err := importEnvironment(ctx, s, cipher, getenv); err != nil {
			s.Close()
			return nil, err
		}
		if opts.ChannelDir != "" {
			if err := s.SetSystemConfig(ctx, config.KeyChannelDir, opts.ChannelDir, false); err != nil {
				s.Close()
				return nil, err
			}
		}
		if err := s.SetSystemConfig(ctx, config.KeyDatabasePath, opts.DatabasePath, false); err != nil {
			s.Close()
			return nil, err
		}
	}

	// app_mode row is created exactly once; the setup wizard moves it
	// from "unconfigured" to "local" or "workos".
	state := StateUnconfigured
	mode, err := s.GetSystemConfig(ctx, config.KeyAppMode)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := s.SetSystemConfig(ctx, config.KeyAppMode, config.ModeUnconfigured, false); err != nil {
			s.Close()
			return nil, err
		}
	case err != nil:
		s.Close()
		return nil, err
	case mode.Value == config.ModeLocal || mode.Value == config.ModeWorkOS:
		state = StateConfigured
	}

	logger.Infow("bootstrap complete", "state", string(state), "first_boot", firstBoot)

	return &Result{
		Store:     s,
		Cipher:    cipher,
		Config:    config.NewProvider(s, cipher),
		State:     state,
		FirstBoot: firstBoot,
	}, nil
}

// preflight verifies store connectivity with bounded exponential retries.
func preflight(ctx context.Context, s store.Store) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.Ping(ctx)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(preflightMaxElapsed))
	return err
}

// ensureSalt loads or seeds the encryption salt and builds the cipher.
// A freshly seeded salt marks this run as the first boot.
func ensureSalt(ctx context.Context, s store.Store, cipherKey []byte) (*secrets.Cipher, bool, error) {
	firstBoot := false

	row, err := s.GetSystemConfig(ctx, config.KeyEncryptionSalt)
	var salt []byte
	switch {
	case errors.Is(err, store.ErrNotFound):
		salt, err = secrets.GenerateSalt()
		if err != nil {
			return nil, false, err
		}
		encoded := base64.StdEncoding.EncodeToString(salt)
		if err := s.SetSystemConfig(ctx, config.KeyEncryptionSalt, encoded, false); err != nil {
			return nil, false, fmt.Errorf("failed to seed encryption salt: %w", err)
		}
		firstBoot = true
	case err != nil:
		return nil, false, err
	default:
		salt, err = base64.StdEncoding.DecodeString(row.Value)
		if err != nil {
			return nil, false, fmt.Errorf("stored encryption salt is corrupt: %w", err)
		}
	}

	var cipher *secrets.Cipher
	if cipherKey != nil {
		cipher, err = secrets.NewCipherWithKey(cipherKey)
	} else {
		cipher, err = secrets.NewCipher(salt)
	}
	if err != nil {
		return nil, false, err
	}

	// A key/salt mismatch would silently return garbage on every secret
	// read later; detect it now and abort startup instead.
	if err := cipher.Verify(); err != nil {
		return nil, false, fmt.Errorf("encryption key verification failed: %w", err)
	}

	return cipher, firstBoot, nil
}

// importEnvironment seeds initial settings from the process environment.
// Runs on first boot only.
func importEnvironment(ctx context.Context, s store.Store, cipher *secrets.Cipher, getenv func(string) string) error {
	for _, imp := range envImports {
		value := getenv(imp.env)
		if value == "" {
			continue
		}
		if imp.secret {
			encrypted, err := cipher.EncryptString(value)
			if err != nil {
				return fmt.Errorf("failed to encrypt %s: %w", imp.env, err)
			}
			value = encrypted
		}
		if err := s.SetSystemConfig(ctx, imp.key, value, imp.secret); err != nil {
			return err
		}
		logger.Debugf("imported %s from environment", imp.env)
	}
	return nil
}
