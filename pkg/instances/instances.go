// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package instances tracks per-(user, tool) runtime instances. The manager
// is a placeholder for richer isolation; the contract that matters is that
// config is injected at start and refresh time, never per-call.
package instances

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/usertools"
)

// Instance statuses.
const (
	StatusStopped  = "stopped"
	StatusStarting = "starting"
	StatusRunning  = "running"
	StatusStopping = "stopping"
	StatusError    = "error"
)

// Instance is one user's running copy of a tool.
type Instance struct {
	UserID    string         `json:"user_id"`
	ToolName  string         `json:"tool_name"`
	Status    string         `json:"status"`
	Config    map[string]any `json:"-"`
	StartedAt time.Time      `json:"started_at,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

type instanceKey struct {
	userID   string
	toolName string
}

// Manager serialises all instance transitions behind a single mutex.
type Manager struct {
	mu        sync.Mutex
	instances map[instanceKey]*Instance
	tools     *usertools.Manager
}

// NewManager creates a Manager.
func NewManager(tools *usertools.Manager) *Manager {
	return &Manager{
		instances: make(map[instanceKey]*Instance),
		tools:     tools,
	}
}

// Start transitions stopped → starting → running, loading the user's
// persisted config at start time. Starting an instance that is already
// running is a no-op. Missing required config fails the start and parks
// the instance in the error state.
func (m *Manager) Start(ctx context.Context, userID, toolName string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(ctx, userID, toolName)
}

// Stop transitions running → stopping → stopped. Stopping an instance
// that is not running is a no-op.
func (m *Manager) Stop(_ context.Context, userID, toolName string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := instanceKey{userID, toolName}
	inst, ok := m.instances[key]
	if !ok || inst.Status != StatusRunning {
		if !ok {
			inst = &Instance{UserID: userID, ToolName: toolName, Status: StatusStopped}
			m.instances[key] = inst
		}
		return inst.snapshot(), nil
	}

	inst.Status = StatusStopping
	inst.Config = nil
	inst.Status = StatusStopped
	return inst.snapshot(), nil
}

// Refresh re-injects the user's current config: a running instance passes
// through stopping → starting → running; a missing or stopped one simply
// starts.
func (m *Manager) Refresh(ctx context.Context, userID, toolName string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := instanceKey{userID, toolName}
	if inst, ok := m.instances[key]; ok && inst.Status == StatusRunning {
		inst.Status = StatusStopping
		inst.Status = StatusStopped
	}
	return m.startLocked(ctx, userID, toolName)
}

// Get returns the instance status, defaulting to stopped for a pair that
// was never started.
func (m *Manager) Get(userID, toolName string) *Instance {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inst, ok := m.instances[instanceKey{userID, toolName}]; ok {
		return inst.snapshot()
	}
	return &Instance{UserID: userID, ToolName: toolName, Status: StatusStopped}
}

// List returns the user's running instances.
func (m *Manager) List(userID string) []*Instance {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Instance
	for key, inst := range m.instances {
		if key.userID == userID && inst.Status == StatusRunning {
			out = append(out, inst.snapshot())
		}
	}
	return out
}

// StopAll stops every instance belonging to the user. Used on logout and
// shutdown.
func (m *Manager) StopAll(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, inst := range m.instances {
		if key.userID == userID && inst.Status == StatusRunning {
			inst.Status = StatusStopped
			inst.Config = nil
		}
	}
}

// Shutdown stops every instance. Used on process exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.instances {
		if inst.Status == StatusRunning {
			inst.Status = StatusStopped
			inst.Config = nil
		}
	}
	logger.Debugf("all tool instances stopped")
}

func (m *Manager) startLocked(ctx context.Context, userID, toolName string) (*Instance, error) {
	key := instanceKey{userID, toolName}
	inst, ok := m.instances[key]
	if !ok {
		inst = &Instance{UserID: userID, ToolName: toolName, Status: StatusStopped}
		m.instances[key] = inst
	}
	if inst.Status == StatusRunning {
		return inst.snapshot(), nil
	}

	inst.Status = StatusStarting
	inst.LastError = ""

	missing, err := m.tools.MissingConfig(ctx, userID, toolName)
	if err != nil {
		inst.Status = StatusError
		inst.LastError = err.Error()
		return inst.snapshot(), err
	}
	if len(missing) > 0 {
		inst.Status = StatusError
		err := fmt.Errorf("cannot start %s: missing config: %v", toolName, missing)
		inst.LastError = err.Error()
		return inst.snapshot(), err
	}

	config, err := m.tools.GetConfig(ctx, userID, toolName)
	if err != nil {
		inst.Status = StatusError
		inst.LastError = err.Error()
		return inst.snapshot(), err
	}

	inst.Config = config
	inst.Status = StatusRunning
	inst.StartedAt = time.Now().UTC()
	return inst.snapshot(), nil
}

func (i *Instance) snapshot() *Instance {
	copied := *i
	return &copied
}
