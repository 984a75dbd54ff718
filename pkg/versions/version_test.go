// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package versions

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfo(t *testing.T) { //nolint:paralleltest // modifies package globals
	origVersion, origCommit, origDate := Version, Commit, BuildDate
	defer func() { Version, Commit, BuildDate = origVersion, origCommit, origDate }()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
		want      string
		wantDate  string
	}{
		{
			name:    "dev build with commit",
			version: "dev", commit: "abc123def456789", buildDate: unknownStr,
			want: "build-abc123de", wantDate: unknownStr,
		},
		{
			name:    "dev build without commit",
			version: "dev", commit: unknownStr, buildDate: unknownStr,
			want: "build-unknown", wantDate: unknownStr,
		},
		{
			name:    "release build",
			version: "v1.2.3", commit: "abc123def456789", buildDate: "2025-01-15T10:30:00Z",
			want: "v1.2.3", wantDate: "2025-01-15 10:30:00 UTC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit, BuildDate = tt.version, tt.commit, tt.buildDate

			got := GetVersionInfo()
			assert.Equal(t, tt.want, got.Version)
			assert.Equal(t, tt.wantDate, got.BuildDate)
			assert.Equal(t, runtime.Version(), got.GoVersion)
			assert.Equal(t, fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), got.Platform)
		})
	}
}
