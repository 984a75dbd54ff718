// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/omnihub-ai/omnihub/pkg/registry"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tools in the catalogue",
		RunE: func(_ *cobra.Command, _ []string) error {
			return renderCatalogue(registry.New(nil).List())
		},
	}
}

func renderCatalogue(descriptors []registry.Descriptor) error {
	if len(descriptors) == 0 {
		fmt.Println("The catalogue is empty.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Options(
		tablewriter.WithHeader([]string{"Name", "Category", "Auth", "Required Config", "Description"}),
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
		tablewriter.WithAlignment(tw.MakeAlign(5, tw.AlignLeft)),
	)

	for _, d := range descriptors {
		if err := table.Append([]string{
			d.Name,
			d.Category,
			d.AuthType,
			strings.Join(d.ConfigSchema.Required, ", "),
			d.Description,
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
