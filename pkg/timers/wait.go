// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package timers

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidTimestamp is returned by WaitUntil for unparseable input.
var ErrInvalidTimestamp = errors.New("invalid-timestamp-format")

// WaitResult is the outcome of a blocking wait.
type WaitResult struct {
	Status string        `json:"status"`
	Waited time.Duration `json:"waited"`
	Ticks  int           `json:"ticks,omitempty"`
}

// Wait blocks for the duration, honouring cancellation. A cancelled wait
// reports how long it actually slept.
func Wait(ctx context.Context, duration time.Duration) WaitResult {
	return WaitWithProgress(ctx, duration, 0, nil)
}

// WaitUntil blocks until the RFC3339 timestamp. A timestamp in the past
// completes immediately.
func WaitUntil(ctx context.Context, timestamp string) (WaitResult, error) {
	target, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return WaitResult{}, ErrInvalidTimestamp
	}
	return Wait(ctx, time.Until(target)), nil
}

// WaitWithProgress blocks for the duration, invoking onTick every interval
// with the elapsed time. A non-positive interval disables progress.
func WaitWithProgress(ctx context.Context, duration, interval time.Duration, onTick func(elapsed time.Duration)) WaitResult {
	start := time.Now()
	if duration <= 0 {
		return WaitResult{Status: StatusCompleted}
	}

	done := time.NewTimer(duration)
	defer done.Stop()

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return WaitResult{Status: StatusCancelled, Waited: time.Since(start), Ticks: ticks}
		case <-tick:
			ticks++
			if onTick != nil {
				onTick(time.Since(start))
			}
		case <-done.C:
			return WaitResult{Status: StatusCompleted, Waited: time.Since(start), Ticks: ticks}
		}
	}
}
