// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func noEnv(string) string { return "" }

func TestFreshBootstrap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	result, err := Run(ctx, Options{
		DatabasePath: filepath.Join(t.TempDir(), "hub.db"),
		Getenv:       noEnv,
		CipherKey:    testKey(),
	})
	require.NoError(t, err)
	defer result.Store.Close()

	assert.Equal(t, StateUnconfigured, result.State)
	assert.True(t, result.FirstBoot)

	salt, err := result.Store.GetSystemConfig(ctx, config.KeyEncryptionSalt)
	require.NoError(t, err)
	assert.NotEmpty(t, salt.Value)

	mode, err := result.Store.GetSystemConfig(ctx, config.KeyAppMode)
	require.NoError(t, err)
	assert.Equal(t, config.ModeUnconfigured, mode.Value)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hub.db")

	first, err := Run(ctx, Options{DatabasePath: path, Getenv: noEnv, CipherKey: testKey()})
	require.NoError(t, err)
	salt1, err := first.Store.GetSystemConfig(ctx, config.KeyEncryptionSalt)
	require.NoError(t, err)

	// Simulate a completed setup, then bootstrap again.
	require.NoError(t, first.Store.SetSystemConfig(ctx, config.KeyAppMode, config.ModeLocal, false))
	require.NoError(t, first.Store.Close())

	second, err := Run(ctx, Options{DatabasePath: path, Getenv: noEnv, CipherKey: testKey()})
	require.NoError(t, err)
	defer second.Store.Close()

	assert.Equal(t, StateConfigured, second.State)
	assert.False(t, second.FirstBoot)

	salt2, err := second.Store.GetSystemConfig(ctx, config.KeyEncryptionSalt)
	require.NoError(t, err)
	assert.Equal(t, salt1.Value, salt2.Value, "salt must survive re-bootstrap")

	mode, err := second.Store.GetSystemConfig(ctx, config.KeyAppMode)
	require.NoError(t, err)
	assert.Equal(t, config.ModeLocal, mode.Value, "app mode must be preserved")
}

func TestEnvironmentImportOnFirstBootOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hub.db")

	env := map[string]string{
		"OMNIHUB_HOST":               "0.0.0.0",
		"OMNIHUB_PORT":               "9200",
		"OMNIHUB_SUPER_ADMIN_EMAILS": "root@example.com",
		"WORKOS_API_KEY":             "sk_test_123",
	}
	getenv := func(k string) string { return env[k] }

	first, err := Run(ctx, Options{DatabasePath: path, Getenv: getenv, CipherKey: testKey()})
	require.NoError(t, err)

	host, err := first.Store.GetSystemConfig(ctx, config.KeyHost)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", host.Value)

	// Secrets are imported encrypted.
	apiKey, err := first.Store.GetSystemConfig(ctx, config.KeyWorkOSAPIKey)
	require.NoError(t, err)
	assert.True(t, apiKey.IsSecret)
	assert.NotEqual(t, "sk_test_123", apiKey.Value)
	plaintext, err := first.Cipher.DecryptString(apiKey.Value)
	require.NoError(t, err)
	assert.Equal(t, "sk_test_123", plaintext)

	require.NoError(t, first.Store.Close())

	// Change the environment; a second boot must not re-import.
	env["OMNIHUB_HOST"] = "192.0.2.1"
	second, err := Run(ctx, Options{DatabasePath: path, Getenv: getenv, CipherKey: testKey()})
	require.NoError(t, err)
	defer second.Store.Close()

	host, err = second.Store.GetSystemConfig(ctx, config.KeyHost)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", host.Value, "environment must not be consulted after first boot")
}

func TestRunRequiresDatabasePath(t *testing.T) {
	t.Parallel()
	_, err := Run(context.Background(), Options{})
	assert.Error(t, err)
}

func TestRuntimeConfigProviderWired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	result, err := Run(ctx, Options{
		DatabasePath: filepath.Join(t.TempDir(), "hub.db"),
		Getenv:       noEnv,
		CipherKey:    testKey(),
	})
	require.NoError(t, err)
	defer result.Store.Close()

	cfg, err := result.Config.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.ModeUnconfigured, cfg.AppMode)

	// Writes through the store become visible after invalidation.
	require.NoError(t, result.Store.SetSystemConfig(ctx, config.KeyAppMode, config.ModeLocal, false))
	result.Config.Invalidate()
	cfg, err = result.Config.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.ModeLocal, cfg.AppMode)

	// The store is reachable through the result for direct queries.
	_, err = result.Store.GetSystemConfig(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
