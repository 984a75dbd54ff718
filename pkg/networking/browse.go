// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for traversal attempts or paths outside the
// confinement root.
var ErrInvalidPath = errors.New("invalid-path")

// DirEntry is one row of a directory listing.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

// Browser lists directories confined to a root. Requests are resolved
// relative to the root and must not escape it.
type Browser struct {
	root string
}

// NewBrowser confines browsing to root.
func NewBrowser(root string) (*Browser, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve browse root: %w", err)
	}
	return &Browser{root: abs}, nil
}

// List returns the entries of the directory at the given relative path.
func (b *Browser) List(relative string) ([]DirEntry, error) {
	target, err := b.resolve(relative)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	out := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		row := DirEntry{Name: entry.Name(), IsDir: entry.IsDir()}
		if info, err := entry.Info(); err == nil && !entry.IsDir() {
			row.Size = info.Size()
		}
		out = append(out, row)
	}
	return out, nil
}

// resolve maps a relative request onto the confinement root, rejecting
// absolute paths and traversal.
func (b *Browser) resolve(relative string) (string, error) {
	if filepath.IsAbs(relative) {
		return "", fmt.Errorf("%w: absolute paths are not allowed", ErrInvalidPath)
	}
	target := filepath.Clean(filepath.Join(b.root, relative))
	if target != b.root && !strings.HasPrefix(target, b.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: escapes browse root", ErrInvalidPath)
	}
	return target, nil
}
