// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package jobs

import (
	"context"
	"fmt"
	"log/slog"
)

// PruneOldChatTurns deletes non-promoted chat_turn entries older than the
// threshold across every scope of the tenant.
//
// Description:
//
//	Entries carrying the promoted tag are never deleted. A failing scope is
//	logged and skipped.
//
// Outputs:
//   - map[string]int64: deletions per scope ID, scopes with zero omitted.
//   - error: non-nil only when the scope enumeration itself fails.
func (r *Runner) PruneOldChatTurns(ctx context.Context, tenantID string, olderThanDays int) (map[string]int64, error) {
	scopes, err := r.Store.ListScopes(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("enumerate scopes: %w", err)
	}

	results := make(map[string]int64)
	var totalDeleted int64
	for _, scopeID := range scopes {
		count, err := r.Store.DeleteOldChatTurns(ctx, tenantID, scopeID, olderThanDays)
		if err != nil {
			r.Logger.Error("Failed to prune chat turns",
				slog.String("scope_id", scopeID),
				slog.String("error", err.Error()))
			continue
		}
		if count > 0 {
			results[scopeID] = count
			totalDeleted += count
		}
	}

	r.Logger.Info("Prune job complete",
		slog.String("tenant_id", tenantID),
		slog.Int("scopes", len(scopes)),
		slog.Int64("total_deleted", totalDeleted))
	return results, nil
}
