// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omnihub-ai/omnihub/pkg/config"
)

func newMCPConfigCmd() *cobra.Command {
	var (
		transport string
		host      string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp-config",
		Short: "Print an MCP client configuration snippet for this hub",
		Long: `Print the JSON block an MCP client needs to connect to this hub,
either spawning it over stdio or pointing at a running HTTP instance.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			var server map[string]any
			switch transport {
			case "stdio":
				server = map[string]any{
					"command": "omnihub",
					"args":    []string{"hub", "--transport", "stdio"},
				}
			case "http":
				server = map[string]any{
					"url": fmt.Sprintf("http://%s:%d/mcp", host, port),
				}
			default:
				return fmt.Errorf("unknown transport %q (want http or stdio)", transport)
			}

			snippet := map[string]any{
				"mcpServers": map[string]any{
					"omnihub": server,
				},
			}
			data, err := json.MarshalIndent(snippet, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Connection type (stdio or http)")
	cmd.Flags().StringVar(&host, "host", config.DefaultHost, "Hub host for http configs")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "Hub port for http configs")
	return cmd
}
