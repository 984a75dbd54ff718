// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package timers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerCompletes(t *testing.T) {
	t.Parallel()
	m := NewManager()

	id := m.StartTimer(150*time.Millisecond, 50*time.Millisecond)

	handle, ok := m.GetStatus(id)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, handle.Status)
	assert.Len(t, m.ListActive(), 1)

	require.Eventually(t, func() bool {
		handle, _ := m.GetStatus(id)
		return handle.Status == StatusCompleted
	}, 2*time.Second, 20*time.Millisecond)

	handle, _ = m.GetStatus(id)
	assert.GreaterOrEqual(t, handle.TicksEmitted, 1)
	assert.False(t, handle.FinishedAt.IsZero())
	assert.Empty(t, m.ListActive())
}

func TestCancelTimer(t *testing.T) {
	t.Parallel()
	m := NewManager()

	id := m.StartTimer(10*time.Second, 0)
	assert.True(t, m.CancelTimer(id))

	handle, ok := m.GetStatus(id)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, handle.Status)

	// Final states never resurrect: a second cancel is refused and the
	// status stays cancelled even past the original deadline.
	assert.False(t, m.CancelTimer(id))
	handle, _ = m.GetStatus(id)
	assert.Equal(t, StatusCancelled, handle.Status)
}

func TestCancelUnknownTimer(t *testing.T) {
	t.Parallel()
	m := NewManager()
	assert.False(t, m.CancelTimer("no-such-timer"))
	_, ok := m.GetStatus("no-such-timer")
	assert.False(t, ok)
}

func TestCancelledTimerStaysCancelledAfterDeadline(t *testing.T) {
	t.Parallel()
	m := NewManager()

	id := m.StartTimer(100*time.Millisecond, 0)
	require.True(t, m.CancelTimer(id))

	time.Sleep(200 * time.Millisecond)
	handle, _ := m.GetStatus(id)
	assert.Equal(t, StatusCancelled, handle.Status)
}

func TestCleanupPrunesFinalStates(t *testing.T) {
	t.Parallel()
	m := NewManager()

	done := m.StartTimer(10*time.Millisecond, 0)
	cancelled := m.StartTimer(10*time.Second, 0)
	running := m.StartTimer(10*time.Second, 0)
	m.CancelTimer(cancelled)

	require.Eventually(t, func() bool {
		handle, _ := m.GetStatus(done)
		return handle.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, m.Cleanup())
	_, ok := m.GetStatus(done)
	assert.False(t, ok)
	_, ok = m.GetStatus(running)
	assert.True(t, ok)
}

func TestWaitCompletes(t *testing.T) {
	t.Parallel()
	result := Wait(context.Background(), 120*time.Millisecond)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.GreaterOrEqual(t, result.Waited, 120*time.Millisecond)
}

func TestWaitCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	result := Wait(ctx, 10*time.Second)
	assert.Equal(t, StatusCancelled, result.Status)
	assert.Less(t, result.Waited, time.Second)
}

func TestWaitUntil(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	result, err := WaitUntil(ctx, time.Now().Add(100*time.Millisecond).Format(time.RFC3339Nano))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)

	// Past timestamps complete immediately.
	result, err = WaitUntil(ctx, "2020-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)

	_, err = WaitUntil(ctx, "tomorrow-ish")
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestWaitWithProgress(t *testing.T) {
	t.Parallel()
	var seen []time.Duration
	result := WaitWithProgress(context.Background(), 300*time.Millisecond, 90*time.Millisecond,
		func(elapsed time.Duration) { seen = append(seen, elapsed) })

	assert.Equal(t, StatusCompleted, result.Status)
	assert.GreaterOrEqual(t, result.Ticks, 2)
	assert.Equal(t, result.Ticks, len(seen))
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1])
	}
}
