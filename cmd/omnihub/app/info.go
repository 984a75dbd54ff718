// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omnihub-ai/omnihub/pkg/registry"
	"github.com/omnihub-ai/omnihub/pkg/store"
	"github.com/omnihub-ai/omnihub/pkg/versions"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the hub's build and on-disk state",
		RunE: func(_ *cobra.Command, _ []string) error {
			v := versions.GetVersionInfo()
			fmt.Printf("OmniHub %s (%s, %s)\n", v.Version, v.GoVersion, v.Platform)

			dbPath, err := databasePath()
			if err != nil {
				return err
			}
			state := "not initialised"
			if store.SchemaExists(dbPath) {
				state = "initialised"
			}
			fmt.Printf("Database: %s (%s)\n", dbPath, state)
			fmt.Printf("Channels: %s\n", channelDir())
			fmt.Printf("Catalogue: %d tools\n", len(registry.New(nil).List()))
			return nil
		},
	}
}
