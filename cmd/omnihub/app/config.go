// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/omnihub-ai/omnihub/pkg/config"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// secretKeys may not be written from the CLI: their values are encrypted
// with the store's cipher, which only the running hub holds. The setup
// wizard and the server-control API manage them.
var secretKeys = map[string]bool{
	config.KeyLocalAPIKey:          true,
	config.KeyWorkOSAPIKey:         true,
	config.KeyWorkOSCookiePassword: true,
	config.KeyOAuthClientSecret:    true,
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the stored system configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigResetCmd())
	return cmd
}

// withStore opens the store for a one-shot CLI operation.
func withStore(ctx context.Context, fn func(s store.Store) error) error {
	dbPath, err := databasePath()
	if err != nil {
		return err
	}
	if !store.SchemaExists(dbPath) {
		return fmt.Errorf("no database at %s; run 'omnihub hub' once to initialise it", dbPath)
	}
	s, err := store.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored configuration, secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(s store.Store) error {
				rows, err := s.ListSystemConfig(cmd.Context())
				if err != nil {
					return err
				}
				sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })

				table := tablewriter.NewWriter(os.Stdout)
				table.Options(
					tablewriter.WithHeader([]string{"Key", "Value"}),
					tablewriter.WithRendition(
						tw.Rendition{
							Borders: tw.Border{
								Left:   tw.State(1),
								Top:    tw.State(1),
								Right:  tw.State(1),
								Bottom: tw.State(1),
							},
						},
					),
					tablewriter.WithAlignment(tw.MakeAlign(2, tw.AlignLeft)),
				)
				for _, row := range rows {
					value := row.Value
					if row.IsSecret {
						value = "(encrypted)"
					}
					if err := table.Append([]string{row.Key, value}); err != nil {
						return fmt.Errorf("failed to append row: %w", err)
					}
				}
				if err := table.Render(); err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}
				return nil
			})
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if secretKeys[key] {
				return fmt.Errorf("%s is a secret and cannot be set from the CLI; use the setup wizard", key)
			}
			return withStore(cmd.Context(), func(s store.Store) error {
				if err := s.SetSystemConfig(cmd.Context(), key, value, false); err != nil {
					return err
				}
				fmt.Printf("%s = %s\n", key, value)
				return nil
			})
		},
	}
}

func newConfigResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <key>",
		Short: "Remove a configuration value, restoring the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(s store.Store) error {
				if err := s.DeleteSystemConfig(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("%s reset\n", args[0])
				return nil
			})
		},
	}
}
