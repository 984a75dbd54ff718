// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Alice's Workspace", "alice-s-workspace"},
		{"already clean", "team-alpha", "team-alpha"},
		{"uppercase", "ACME Corp", "acme-corp"},
		{"punctuation runs", "a!!b##c", "a-b-c"},
		{"leading and trailing junk", "  --Dev Box--  ", "dev-box"},
		{"unicode letters kept", "Büro München", "büro-münchen"},
		{"digits", "workspace 2", "workspace-2"},
		{"empty", "", "workspace"},
		{"only punctuation", "!!!", "workspace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}
