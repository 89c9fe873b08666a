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

	"github.com/AleutianAI/AleutianMemory/services/memory/datatypes"
)

// PromoteHighValueMemories appends the promoted tag to task_outcome entries
// referenced at least minReferences times within the lookback window.
//
// Description:
//
//	Promotion both biases retrieval and protects entries from pruning. The
//	tag append is a no-op for already-promoted entries, so the job is
//	idempotent. Individual failures do not abort the batch.
//
// Outputs:
//   - []string: IDs of the entries promoted in this run.
//   - error: non-nil only when the candidate query itself fails.
func (r *Runner) PromoteHighValueMemories(ctx context.Context, tenantID string, minReferences, lookbackDays int) ([]string, error) {
	candidates, err := r.Store.PromotionCandidates(ctx, tenantID, minReferences, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("query promotion candidates: %w", err)
	}

	var promotedIDs []string
	for _, c := range candidates {
		if err := r.Store.AddTag(ctx, tenantID, c.ID, datatypes.TagPromoted); err != nil {
			r.Logger.Error("Failed to promote memory",
				slog.String("memory_id", c.ID),
				slog.String("error", err.Error()))
			continue
		}
		promotedIDs = append(promotedIDs, c.ID)
		r.Logger.Info("Promoted memory",
			slog.String("memory_id", c.ID),
			slog.Int64("ref_count", c.RefCount))
	}

	r.Logger.Info("Promotion job complete",
		slog.String("tenant_id", tenantID),
		slog.Int("candidates", len(candidates)),
		slog.Int("promoted", len(promotedIDs)))
	return promotedIDs, nil
}
