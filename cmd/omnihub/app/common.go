// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"errors"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// ErrExpectedTimeout is returned when --timeout elapses on the hub command.
// The process maps it to exit code 124, matching what integration harnesses
// expect from a deliberately bounded run.
var ErrExpectedTimeout = errors.New("expected timeout elapsed")

// databasePath resolves the SQLite file location: the --database flag, or
// the XDG data directory.
func databasePath() (string, error) {
	if path := viper.GetString("database"); path != "" {
		return path, nil
	}
	return xdg.DataFile("omnihub/omnihub.db")
}

// channelDir resolves the channel persistence directory.
func channelDir() string {
	if dir := viper.GetString("channel-dir"); dir != "" {
		return dir
	}
	return filepath.Join(xdg.DataHome, "omnihub", "channels")
}
