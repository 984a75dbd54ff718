// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package networking provides the port probing and confined filesystem
// helpers used by the setup wizard.
package networking

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	// MinPort is the lowest port the wizard will consider.
	MinPort = 1024
	// MaxPort is the highest valid TCP port.
	MaxPort = 65535
	// scanConcurrency bounds parallel probes during a range scan.
	scanConcurrency = 64
	// nearbyRadius is how far SuggestNearby searches around a taken port.
	nearbyRadius = 20
)

// ErrInvalidPortRange is returned for out-of-bounds or inverted ranges.
var ErrInvalidPortRange = errors.New("invalid-port-range")

// PortStatus is one scan result.
type PortStatus struct {
	Port      int  `json:"port"`
	Available bool `json:"available"`
}

// IsAvailable reports whether the port can be bound on the host.
func IsAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// ScanRange probes every port in [from, to] in parallel.
func ScanRange(ctx context.Context, from, to int) ([]PortStatus, error) {
	if from < MinPort || to > MaxPort || from > to {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidPortRange, from, to)
	}

	var mu sync.Mutex
	out := make([]PortStatus, 0, to-from+1)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for port := from; port <= to; port++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			status := PortStatus{Port: port, Available: IsAvailable(port)}
			mu.Lock()
			out = append(out, status)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out, nil
}

// SuggestNearby returns up to limit available ports close to the desired
// one, nearest first.
func SuggestNearby(desired, limit int) []int {
	if limit <= 0 {
		limit = 3
	}
	var suggestions []int
	for offset := 1; offset <= nearbyRadius && len(suggestions) < limit; offset++ {
		for _, candidate := range []int{desired + offset, desired - offset} {
			if candidate < MinPort || candidate > MaxPort {
				continue
			}
			if IsAvailable(candidate) {
				suggestions = append(suggestions, candidate)
				if len(suggestions) == limit {
					break
				}
			}
		}
	}
	return suggestions
}
