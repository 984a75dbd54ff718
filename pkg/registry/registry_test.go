// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnihub-ai/omnihub/pkg/store"
)

func testStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBuiltinsAreValid(t *testing.T) {
	t.Parallel()
	for _, d := range builtinDescriptors() {
		assert.NoError(t, d.Validate(), d.Name)
	}
}

func TestInvalidDescriptorIsSkipped(t *testing.T) {
	t.Parallel()
	r := New(testStore(t), Descriptor{
		Name:     "broken",
		AuthType: "magic",
	})

	_, err := r.Get("broken")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Built-ins survive alongside the rejected extra.
	_, err = r.Get("spark")
	assert.NoError(t, err)
}

func TestSyncUpsertsCatalogue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)
	r := New(s)

	require.NoError(t, r.Sync(ctx))
	require.NoError(t, r.Sync(ctx), "sync must be idempotent")

	tools, err := s.ListRegistryTools(ctx)
	require.NoError(t, err)
	assert.Len(t, tools, len(builtinDescriptors()))

	spark, err := s.GetRegistryTool(ctx, "spark")
	require.NoError(t, err)
	assert.Equal(t, store.AuthTypeKey, spark.AuthType)
	assert.Contains(t, spark.ConfigSchema, "api_key")
}

func TestValidateConfigMissingKeys(t *testing.T) {
	t.Parallel()
	r := New(testStore(t))

	missing, err := r.ValidateConfig("spark", map[string]any{"api_key": "sk-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"base_url"}, missing)

	missing, err = r.ValidateConfig("spark", map[string]any{
		"api_key":  "sk-1",
		"base_url": "https://spark.example.com",
	})
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestValidateConfigTreatsEmptyAsMissing(t *testing.T) {
	t.Parallel()
	r := New(testStore(t))

	missing, err := r.ValidateConfig("spark", map[string]any{
		"api_key":  "",
		"base_url": "https://spark.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"api_key"}, missing)
}

func TestListSorted(t *testing.T) {
	t.Parallel()
	r := New(testStore(t))
	list := r.List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Name, list[i].Name)
	}
}
