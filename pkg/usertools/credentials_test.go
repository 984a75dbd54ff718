// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package usertools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnihub-ai/omnihub/pkg/store"
)

func TestStructuredCredentialRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := testManager(t)

	payload := []byte(`{
		"access_token": "at-secret",
		"refresh_token": "rt-secret",
		"expires_at": "2026-01-02T15:04:05Z",
		"scopes": ["read", "write"]
	}`)
	require.NoError(t, m.StoreCredential(ctx, "u1", "whatsapp", "meta", payload))

	cred, err := m.GetCredential(ctx, "u1", "whatsapp", "meta")
	require.NoError(t, err)
	assert.Equal(t, "at-secret", cred.AccessToken)
	assert.Equal(t, "rt-secret", cred.RefreshToken)
	assert.Equal(t, []string{"read", "write"}, cred.Scopes)
	assert.Equal(t, 2026, cred.ExpiresAt.Year())
	assert.Nil(t, cred.Opaque)
}

func TestCredentialEncryptedAtRest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := testManager(t)

	require.NoError(t, m.StoreCredential(ctx, "u1", "whatsapp", "meta",
		[]byte(`{"access_token":"at-secret"}`)))

	row, err := m.store.GetOAuthToken(ctx, "u1", "whatsapp", "meta")
	require.NoError(t, err)
	assert.NotEqual(t, "at-secret", row.AccessTokenCiphertext)
	assert.NotContains(t, row.AccessTokenCiphertext, "at-secret")
}

func TestOpaqueCredentialRoundTripsVerbatim(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := testManager(t)

	opaque := `{"service_account":{"project":"p","key":"k"},"kind":"gcp"}`
	require.NoError(t, m.StoreCredential(ctx, "u1", "spark", "gcp", []byte(opaque)))

	cred, err := m.GetCredential(ctx, "u1", "spark", "gcp")
	require.NoError(t, err)
	assert.Empty(t, cred.AccessToken)
	assert.JSONEq(t, opaque, string(cred.Opaque))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(cred.Opaque, &decoded))
	assert.Equal(t, "gcp", decoded["kind"])
}

func TestStoreCredentialRejectsNonJSON(t *testing.T) {
	t.Parallel()
	m := testManager(t)
	err := m.StoreCredential(context.Background(), "u1", "spark", "gcp", []byte("not json"))
	assert.Error(t, err)
}

func TestListAndDeleteCredentials(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := testManager(t)

	require.NoError(t, m.StoreCredential(ctx, "u1", "whatsapp", "meta", []byte(`{"access_token":"a"}`)))
	require.NoError(t, m.StoreCredential(ctx, "u1", "spark", "gcp", []byte(`{"access_token":"b"}`)))

	creds, err := m.ListCredentials(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, creds, 2)

	require.NoError(t, m.DeleteCredential(ctx, "u1", "spark", "gcp"))
	_, err = m.GetCredential(ctx, "u1", "spark", "gcp")
	assert.ErrorIs(t, err, store.ErrNotFound)

	creds, err = m.ListCredentials(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}
