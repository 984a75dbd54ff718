// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/omnihub-ai/omnihub/pkg/logger"
)

const (
	channelsFile = "channels.json"
	historyFile  = "history.json"
	lockFile     = "channels.lock"

	lockTimeout       = 5 * time.Second
	lockRetryInterval = 50 * time.Millisecond
)

// withExclusive runs fn holding the exclusive lock, persisting both
// documents afterwards. Every mutation is a whole-document
// read-modify-write under this lock.
func (m *Manager) withExclusive(ctx context.Context, fn func(channelsDoc, historyDoc) error) error {
	if err := os.MkdirAll(m.dir, 0750); err != nil {
		return fmt.Errorf("failed to create channel directory: %w", err)
	}

	fileLock := flock.New(filepath.Join(m.dir, lockFile))
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			logger.Warnf("failed to unlock channel store: %v", err)
		}
	}()

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := fileLock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("failed to acquire channel lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("timed out waiting for channel lock")
	}

	channels := m.loadChannels()
	history := m.loadHistory()
	if err := fn(channels, history); err != nil {
		return err
	}
	if err := m.writeDoc(channelsFile, channels); err != nil {
		return err
	}
	return m.writeDoc(historyFile, history)
}

// withShared runs fn holding the shared lock over a consistent snapshot.
func (m *Manager) withShared(ctx context.Context, fn func(channelsDoc, historyDoc) error) error {
	if err := os.MkdirAll(m.dir, 0750); err != nil {
		return fmt.Errorf("failed to create channel directory: %w", err)
	}

	fileLock := flock.New(filepath.Join(m.dir, lockFile))
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			logger.Warnf("failed to unlock channel store: %v", err)
		}
	}()

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := fileLock.TryRLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("failed to acquire channel read lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("timed out waiting for channel read lock")
	}

	return fn(m.loadChannels(), m.loadHistory())
}

// loadChannels reads channels.json. A missing or corrupt file is an empty
// state: a crashed writer may leave partial JSON behind, and the next
// write rebuilds the document.
func (m *Manager) loadChannels() channelsDoc {
	doc := channelsDoc{}
	if !m.loadDoc(channelsFile, &doc) {
		return channelsDoc{}
	}
	return doc
}

func (m *Manager) loadHistory() historyDoc {
	doc := historyDoc{}
	if !m.loadDoc(historyFile, &doc) {
		return historyDoc{}
	}
	return doc
}

// loadDoc reports false when the document is corrupt and must be
// discarded; a decoder error can leave partial entries behind.
func (m *Manager) loadDoc(name string, out any) bool {
	data, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		return true
	}
	if err := json.Unmarshal(data, out); err != nil {
		logger.Warnf("corrupt %s, treating as empty: %v", name, err)
		return false
	}
	return true
}

func (m *Manager) writeDoc(name string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	path := filepath.Join(m.dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
