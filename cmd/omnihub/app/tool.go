// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omnihub-ai/omnihub/pkg/registry"
)

func newToolCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "tool <name>",
		Short: "Show a tool's catalogue entry and config schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			d, err := registry.New(nil).Get(args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(d, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("%s (%s)\n", d.DisplayName, d.Name)
			fmt.Printf("Category: %s\n", d.Category)
			fmt.Printf("Auth: %s\n", d.AuthType)
			if len(d.RequiredOAuthScopes) > 0 {
				fmt.Printf("OAuth scopes: %s\n", strings.Join(d.RequiredOAuthScopes, ", "))
			}
			fmt.Printf("\n%s\n", d.Description)

			schema, err := d.SchemaJSON()
			if err != nil {
				return err
			}
			fmt.Printf("\nConfig schema:\n%s\n", schema)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the descriptor as JSON")
	return cmd
}
