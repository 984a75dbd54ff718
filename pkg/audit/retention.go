// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"time"

	"github.com/omnihub-ai/omnihub/pkg/logger"
)

// Retention ages per category. The writer never enforces retention; this
// job runs separately.
var retentionAges = map[string]time.Duration{
	CategorySecurity:   365 * 24 * time.Hour,
	CategoryCredential: 365 * 24 * time.Hour,
	CategoryAuth:       6 * 365 * 24 * time.Hour, // PII-bearing
	CategoryTool:       90 * 24 * time.Hour,
	CategoryAdmin:      90 * 24 * time.Hour,
	CategoryWorkspace:  90 * 24 * time.Hour,
}

// defaultRetentionInterval is how often the retention loop wakes up.
const defaultRetentionInterval = 24 * time.Hour

// RunRetention purges entries older than their category's retention age.
// Returns the total number of purged rows.
func (a *Auditor) RunRetention(ctx context.Context) (int64, error) {
	var total int64
	now := time.Now().UTC()
	for category, age := range retentionAges {
		purged, err := a.store.PurgeAuditEntries(ctx, category, now.Add(-age))
		if err != nil {
			return total, err
		}
		total += purged
	}
	return total, nil
}

// StartRetentionLoop runs RunRetention periodically until ctx is done.
func (a *Auditor) StartRetentionLoop(ctx context.Context) {
	ticker := time.NewTicker(defaultRetentionInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if purged, err := a.RunRetention(ctx); err != nil {
					logger.Errorw("audit retention failed", "error", err)
				} else if purged > 0 {
					logger.Infow("audit retention purged entries", "count", purged)
				}
			}
		}
	}()
}
