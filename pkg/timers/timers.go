// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package timers implements background timers and the blocking wait
// operations exposed through the hub.
package timers

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Timer statuses. A timer only moves running → completed or
// running → cancelled; final states never resurrect.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// TimerHandle is the public view of one timer.
type TimerHandle struct {
	ID           string        `json:"id"`
	Duration     time.Duration `json:"duration"`
	Interval     time.Duration `json:"interval,omitempty"`
	Status       string        `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at,omitempty"`
	TicksEmitted int           `json:"ticks_emitted"`
}

type timer struct {
	handle TimerHandle
	cancel context.CancelFunc
}

// Manager tracks timers by id behind a single mutex.
type Manager struct {
	mu     sync.Mutex
	timers map[string]*timer
}

// NewManager creates a Manager.
func NewManager() *Manager {
	return &Manager{timers: make(map[string]*timer)}
}

// StartTimer schedules a background timer that completes after duration,
// emitting a progress tick every interval. Returns the timer id.
func (m *Manager) StartTimer(duration, interval time.Duration) string {
	ctx, cancel := context.WithCancel(context.Background())
	t := &timer{
		handle: TimerHandle{
			ID:        ulid.Make().String(),
			Duration:  duration,
			Interval:  interval,
			Status:    StatusRunning,
			StartedAt: time.Now().UTC(),
		},
		cancel: cancel,
	}

	m.mu.Lock()
	m.timers[t.handle.ID] = t
	m.mu.Unlock()

	go m.run(ctx, t.handle.ID, duration, interval)
	return t.handle.ID
}

// CancelTimer transitions a running timer to cancelled and stops the
// underlying task. Cancelling a finished or unknown timer reports false.
func (m *Manager) CancelTimer(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[id]
	if !ok || t.handle.Status != StatusRunning {
		return false
	}
	t.handle.Status = StatusCancelled
	t.handle.FinishedAt = time.Now().UTC()
	t.cancel()
	return true
}

// GetStatus returns the timer's current state.
func (m *Manager) GetStatus(id string) (TimerHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timers[id]
	if !ok {
		return TimerHandle{}, false
	}
	return t.handle, true
}

// ListActive returns all running timers.
func (m *Manager) ListActive() []TimerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TimerHandle
	for _, t := range m.timers {
		if t.handle.Status == StatusRunning {
			out = append(out, t.handle)
		}
	}
	return out
}

// Cleanup prunes timers in a final state, returning how many were removed.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, t := range m.timers {
		if t.handle.Status != StatusRunning {
			delete(m.timers, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) run(ctx context.Context, id string, duration, interval time.Duration) {
	done := time.NewTimer(duration)
	defer done.Stop()

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			// CancelTimer already recorded the final state.
			return
		case <-tick:
			m.mu.Lock()
			if t, ok := m.timers[id]; ok && t.handle.Status == StatusRunning {
				t.handle.TicksEmitted++
			}
			m.mu.Unlock()
		case <-done.C:
			m.mu.Lock()
			if t, ok := m.timers[id]; ok && t.handle.Status == StatusRunning {
				t.handle.Status = StatusCompleted
				t.handle.FinishedAt = time.Now().UTC()
			}
			m.mu.Unlock()
			return
		}
	}
}
