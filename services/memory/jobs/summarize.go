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
	"strings"

	"github.com/AleutianAI/AleutianMemory/services/memory/datatypes"
	"github.com/AleutianAI/AleutianMemory/services/memory/identity"
	"github.com/AleutianAI/AleutianMemory/services/memory/storage/postgres"
)

// summaryTitle is the fixed title of scheduled summaries; the synchronous
// endpoint uses "scope_summary" instead, so the two never dedupe into each
// other.
const summaryTitle = "weekly_summary"

// SummarizeActiveScopes creates one summary entry per scope with recent
// non-summary activity.
//
// Description:
//
//	Each summary is written through the normal dedupe path, tagged
//	auto_summary + scheduled + mode, and linked derived_from to every
//	source entry (best-effort). The scope's search cache is invalidated
//	afterwards. A failing scope is logged and skipped; the job continues.
//
// Outputs:
//   - []string: IDs of the summaries created.
//   - error: non-nil only when the scope enumeration itself fails.
func (r *Runner) SummarizeActiveScopes(ctx context.Context, tenantID string, maxEntriesPerScope int, mode string) ([]string, error) {
	scopes, err := r.Store.ActiveScopes(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("enumerate active scopes: %w", err)
	}

	var createdIDs []string
	for _, scopeID := range scopes {
		summaryID, err := r.summarizeScope(ctx, tenantID, scopeID, maxEntriesPerScope, mode)
		if err != nil {
			r.Logger.Error("Failed to summarize scope",
				slog.String("tenant_id", tenantID),
				slog.String("scope_id", scopeID),
				slog.String("error", err.Error()))
			continue
		}
		if summaryID != "" {
			createdIDs = append(createdIDs, summaryID)
		}
	}

	r.Logger.Info("Summarization job complete",
		slog.String("tenant_id", tenantID),
		slog.Int("scopes", len(scopes)),
		slog.Int("summaries", len(createdIDs)))
	return createdIDs, nil
}

// summarizeScope writes one summary for one scope. Returns "" when the scope
// has nothing to summarize.
func (r *Runner) summarizeScope(ctx context.Context, tenantID, scopeID string, maxEntries int, mode string) (string, error) {
	entries, err := r.Store.GetScopeEntries(ctx, tenantID, scopeID, maxEntries, []string{datatypes.KindSummary})
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	content := buildJobSummary(entries, mode)
	title := summaryTitle
	source := "system"

	vec, err := r.Embedder.Embed(ctx, title+" "+content)
	if err != nil {
		return "", fmt.Errorf("embed summary: %w", err)
	}

	summary, err := r.Store.WriteMemory(ctx, postgres.WriteParams{
		TenantID:    tenantID,
		ScopeID:     scopeID,
		Kind:        datatypes.KindSummary,
		Title:       &title,
		Content:     content,
		Tags:        []string{"auto_summary", "scheduled", mode},
		Source:      &source,
		ContentHash: identity.ContentHash(datatypes.KindSummary, title, content),
		Embedding:   vec,
	})
	if err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}

	for _, e := range entries {
		if _, err := r.Store.CreateLink(ctx, tenantID, summary.ID, e.ID, datatypes.RelationDerivedFrom); err != nil {
			r.Logger.Warn("Failed to link summary to source entry",
				slog.String("summary_id", summary.ID),
				slog.String("entry_id", e.ID),
				slog.String("error", err.Error()))
		}
	}

	if err := r.Cache.InvalidateScope(ctx, tenantID, scopeID); err != nil {
		r.Logger.Warn("Search cache invalidation failed",
			slog.String("scope_id", scopeID),
			slog.String("error", err.Error()))
	}

	r.Logger.Info("Created summary",
		slog.String("summary_id", summary.ID),
		slog.String("scope_id", scopeID))
	return summary.ID, nil
}

// buildJobSummary renders the scheduled summary text: brief keeps 20 entries
// with 200-rune previews, full keeps everything with "---" separators.
func buildJobSummary(entries []postgres.ScopeEntry, mode string) string {
	if mode == "brief" {
		shown := entries
		if len(shown) > 20 {
			shown = shown[:20]
		}
		lines := make([]string, 0, len(shown))
		for _, e := range shown {
			lines = append(lines, jobSummaryLine(e, 200))
		}
		return fmt.Sprintf("Weekly summary (%d entries):\n%s", len(entries), strings.Join(lines, "\n"))
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, jobSummaryLine(e, 0))
	}
	return fmt.Sprintf("Full summary (%d entries):\n%s", len(entries), strings.Join(lines, "\n---\n"))
}

func jobSummaryLine(e postgres.ScopeEntry, maxLen int) string {
	titlePart := ""
	if e.Title != nil && *e.Title != "" {
		titlePart = " " + *e.Title
	}
	content := e.Content
	if maxLen > 0 {
		if runes := []rune(content); len(runes) > maxLen {
			content = string(runes[:maxLen])
		}
	}
	return fmt.Sprintf("[%s]%s: %s", e.Kind, titlePart, content)
}
