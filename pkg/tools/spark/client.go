// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package spark is a minimal client for the Spark workflow orchestrator.
// It exists to exercise the per-request config injection contract: every
// call reads its API key and base URL from the caller-scoped tool config.
package spark

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// requestTimeout bounds outbound calls to the orchestrator.
const requestTimeout = 30 * time.Second

// Workflow is one orchestrator workflow.
type Workflow struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Client talks to one Spark instance. Build it per-call from injected
// config, never from process globals.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient builds a client from a tool config document.
func NewClient(config map[string]any) (*Client, error) {
	apiKey, _ := config["api_key"].(string)
	baseURL, _ := config["base_url"].(string)
	if apiKey == "" || baseURL == "" {
		return nil, fmt.Errorf("spark config requires api_key and base_url")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid spark base_url: %w", err)
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}, nil
}

// ListWorkflows fetches the workflows visible to the configured key.
func (c *Client) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/workflows", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spark request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spark returned %s", resp.Status)
	}

	var payload struct {
		Workflows []Workflow `json:"workflows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode spark response: %w", err)
	}
	return payload.Workflows, nil
}
