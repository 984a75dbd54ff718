// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the OmniHub CLI.
package main

import (
	"errors"
	"os"

	"github.com/omnihub-ai/omnihub/cmd/omnihub/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		if errors.Is(err, app.ErrExpectedTimeout) {
			os.Exit(124)
		}
		os.Exit(1)
	}
}
