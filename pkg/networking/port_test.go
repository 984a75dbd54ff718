// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// occupy binds an ephemeral port and returns it still held.
func occupy(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })
	return listener.Addr().(*net.TCPAddr).Port
}

func TestIsAvailable(t *testing.T) {
	t.Parallel()
	taken := occupy(t)
	assert.False(t, IsAvailable(taken))
}

func TestScanRange(t *testing.T) {
	t.Parallel()
	taken := occupy(t)

	from, to := taken-2, taken+2
	if from < MinPort {
		from = MinPort
	}
	results, err := ScanRange(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, results, to-from+1)

	for i, r := range results {
		assert.Equal(t, from+i, r.Port, "results sorted by port")
		if r.Port == taken {
			assert.False(t, r.Available)
		}
	}
}

func TestScanRangeRejectsInvalid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, tc := range [][2]int{{80, 81}, {2000, 1999}, {60000, 70000}} {
		_, err := ScanRange(ctx, tc[0], tc[1])
		assert.ErrorIs(t, err, ErrInvalidPortRange, "%v", tc)
	}
}

func TestSuggestNearby(t *testing.T) {
	t.Parallel()
	taken := occupy(t)

	suggestions := SuggestNearby(taken, 3)
	require.NotEmpty(t, suggestions)
	for _, port := range suggestions {
		assert.NotEqual(t, taken, port)
		assert.InDelta(t, taken, port, nearbyRadius)
	}
}
