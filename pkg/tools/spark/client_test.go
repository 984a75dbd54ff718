// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package spark

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresConfig(t *testing.T) {
	t.Parallel()
	_, err := NewClient(map[string]any{"api_key": "k"})
	assert.Error(t, err)
	_, err = NewClient(map[string]any{"base_url": "http://x"})
	assert.Error(t, err)
}

func TestListWorkflows(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/workflows", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"workflows":[{"id":"wf1","name":"deploy","status":"idle"}]}`))
	}))
	defer srv.Close()

	client, err := NewClient(map[string]any{"api_key": "k", "base_url": srv.URL})
	require.NoError(t, err)

	workflows, err := client.ListWorkflows(context.Background())
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, "deploy", workflows[0].Name)
}

func TestListWorkflowsUpstreamError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(map[string]any{"api_key": "k", "base_url": srv.URL})
	require.NoError(t, err)

	_, err = client.ListWorkflows(context.Background())
	assert.ErrorContains(t, err, "502")
}
