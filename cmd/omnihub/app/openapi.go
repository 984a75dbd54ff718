// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

func newOpenAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "openapi <url-or-file>",
		Short: "Inspect an OpenAPI document and list its operations",
		Long: `Load an OpenAPI 3 document from a URL or a local file, validate it,
and list the operations a tool wrapper would expose.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := openapi3.NewLoader()
			loader.Context = cmd.Context()
			loader.IsExternalRefsAllowed = true

			doc, err := loadOpenAPIDoc(loader, args[0])
			if err != nil {
				return fmt.Errorf("failed to load OpenAPI document: %w", err)
			}
			if err := doc.Validate(loader.Context); err != nil {
				return fmt.Errorf("document failed validation: %w", err)
			}

			fmt.Printf("%s %s\n", doc.Info.Title, doc.Info.Version)
			if doc.Info.Description != "" {
				fmt.Println(doc.Info.Description)
			}
			fmt.Println()
			return renderOperations(doc)
		},
	}
}

func loadOpenAPIDoc(loader *openapi3.Loader, location string) (*openapi3.T, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, err
		}
		return loader.LoadFromURI(u)
	}
	return loader.LoadFromFile(location)
}

func renderOperations(doc *openapi3.T) error {
	type row struct {
		method, path, id, summary string
	}
	var rows []row
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			rows = append(rows, row{method, path, op.OperationID, op.Summary})
		}
	}
	if len(rows) == 0 {
		fmt.Println("The document declares no operations.")
		return nil
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].path != rows[j].path {
			return rows[i].path < rows[j].path
		}
		return rows[i].method < rows[j].method
	})

	table := tablewriter.NewWriter(os.Stdout)
	table.Options(
		tablewriter.WithHeader([]string{"Method", "Path", "Operation ID", "Summary"}),
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
		tablewriter.WithAlignment(tw.MakeAlign(4, tw.AlignLeft)),
	)
	for _, r := range rows {
		if err := table.Append([]string{r.method, r.path, r.id, r.summary}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
