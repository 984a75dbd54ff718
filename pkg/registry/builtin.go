// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import "github.com/omnihub-ai/omnihub/pkg/store"

// builtinDescriptors is the set of tools compiled into the hub. External
// descriptor sources are merged on top of these at sync time.
func builtinDescriptors() []Descriptor {
	return []Descriptor{
		{
			Name:        "spark",
			DisplayName: "Spark Workflows",
			Description: "List and inspect workflows on a Spark orchestrator instance.",
			Category:    "automation",
			AuthType:    store.AuthTypeKey,
			ConfigSchema: ConfigSchema{
				Type: "object",
				Properties: map[string]Property{
					"api_key": {
						Type:        "string",
						Description: "Spark API key",
						Secret:      true,
					},
					"base_url": {
						Type:        "string",
						Description: "Base URL of the Spark instance",
					},
				},
				Required: []string{"api_key", "base_url"},
			},
			Icon: "zap",
		},
		{
			Name:        "whatsapp",
			DisplayName: "WhatsApp",
			Description: "Send and receive WhatsApp messages through the Business API.",
			Category:    "messaging",
			AuthType:    store.AuthTypeOAuth,
			ConfigSchema: ConfigSchema{
				Type: "object",
				Properties: map[string]Property{
					"phone_number_id": {
						Type:        "string",
						Description: "WhatsApp Business phone number ID",
					},
				},
				Required: []string{"phone_number_id"},
			},
			RequiredOAuthScopes: []string{"whatsapp_business_messaging"},
			Icon:                "message-circle",
		},
		{
			Name:        "coordination",
			DisplayName: "Agent Channels",
			Description: "File-backed message channels for coordinating between agents.",
			Category:    "coordination",
			AuthType:    store.AuthTypeNone,
			ConfigSchema: ConfigSchema{
				Type: "object",
			},
			Icon: "radio",
		},
		{
			Name:        "wait",
			DisplayName: "Timers",
			Description: "Blocking waits and background timers with progress reporting.",
			Category:    "coordination",
			AuthType:    store.AuthTypeNone,
			ConfigSchema: ConfigSchema{
				Type: "object",
			},
			Icon: "clock",
		},
	}
}
