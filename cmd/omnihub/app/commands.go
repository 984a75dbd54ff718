// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the omnihub command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/omnihub-ai/omnihub/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "omnihub",
	DisableAutoGenTag: true,
	Short:             "OmniHub is a multi-tenant hub for MCP tools",
	Long: `OmniHub serves a catalogue of tools to MCP clients over stdio or
streamable HTTP, with per-user configuration, encrypted credentials, and a
REST API for managing it all.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the OmniHub CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().String("database", "", "Path to the SQLite database file")
	if err := viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database")); err != nil {
		logger.Errorf("Error binding database flag: %v", err)
	}

	rootCmd.PersistentFlags().String("channel-dir", "", "Directory for channel persistence")
	if err := viper.BindPFlag("channel-dir", rootCmd.PersistentFlags().Lookup("channel-dir")); err != nil {
		logger.Errorf("Error binding channel-dir flag: %v", err)
	}

	rootCmd.AddCommand(newHubCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newToolCmd())
	rootCmd.AddCommand(newOpenAPICmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newMCPConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}
