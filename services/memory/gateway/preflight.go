// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianMemory/services/memory"
	"github.com/AleutianAI/AleutianMemory/services/memory/datatypes"
)

// preflightContentLimit caps entry content injected into agent prompts.
const preflightContentLimit = 500

// preflightKinds are the entry kinds worth surfacing before task execution;
// raw chat turns are noise at this point.
var preflightKinds = []string{
	datatypes.KindTaskOutcome,
	datatypes.KindDecision,
	datatypes.KindRunbook,
	datatypes.KindSummary,
}

// PreflightResult is the prior context assembled for a node before it
// executes a task.
type PreflightResult struct {
	Memories      []memory.MemoryOut
	WorkingSetIDs []string
	KnownContext  string
	ScopeID       string
}

// Preflight assembles prior context for task execution.
//
// Description:
//
//	Runs an uncached hybrid search over the scope's outcomes, decisions,
//	runbooks, and summaries, fetches the advisory working set, and formats
//	a "Known Context" markdown block for prompt injection. The search cache
//	is bypassed on purpose: a node starting a task right after a write must
//	see that write.
//
// Thread Safety: Preflight is safe for concurrent use.
type Preflight struct {
	svc    MemoryService
	logger *slog.Logger
}

// NewPreflight builds the assembler.
func NewPreflight(svc MemoryService, logger *slog.Logger) *Preflight {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preflight{svc: svc, logger: logger}
}

// GetContext retrieves relevant prior context for a task.
func (p *Preflight) GetContext(
	ctx context.Context,
	tenantID string,
	scope datatypes.Scope,
	taskTitle string,
	taskDescription string,
	topK int,
	includeWorkingSet bool,
) (PreflightResult, error) {
	query := taskTitle
	if taskDescription != "" {
		query = taskTitle + " " + taskDescription
	}

	memories, scopeID, err := p.svc.PreflightSearch(ctx, tenantID, scope, query, topK, preflightKinds)
	if err != nil {
		return PreflightResult{}, err
	}

	var workingSetIDs []string
	if includeWorkingSet {
		workingSetIDs, err = p.svc.WorkingSet(ctx, tenantID, scope)
		if err != nil {
			// Advisory only: a cache failure must not block task startup.
			p.logger.Warn("Working set fetch failed",
				slog.String("tenant_id", tenantID),
				slog.String("error", err.Error()))
			workingSetIDs = nil
		}
	}

	result := PreflightResult{
		Memories:      memories,
		WorkingSetIDs: workingSetIDs,
		KnownContext:  formatKnownContext(memories),
		ScopeID:       scopeID,
	}

	p.logger.Info("Preflight context assembled",
		slog.String("tenant_id", tenantID),
		slog.String("scope_id", scopeID),
		slog.String("task", taskTitle),
		slog.Int("memories", len(memories)),
		slog.Int("working_set", len(workingSetIDs)))
	return result, nil
}

// formatKnownContext renders retrieved memories as a markdown block for
// agent prompt injection. Empty input renders as "".
func formatKnownContext(memories []memory.MemoryOut) string {
	if len(memories) == 0 {
		return ""
	}

	lines := []string{"## Known Context (from prior tasks)\n"}
	for i, mem := range memories {
		title := "untitled"
		if mem.Title != nil && *mem.Title != "" {
			title = *mem.Title
		}

		content := mem.Content
		if runes := []rune(content); len(runes) > preflightContentLimit {
			content = string(runes[:preflightContentLimit]) + "..."
		}

		scorePart := ""
		if mem.Score != nil {
			scorePart = fmt.Sprintf(" (relevance: %.2f)", *mem.Score)
		}
		tagPart := ""
		if len(mem.Tags) > 0 {
			tagPart = " [" + strings.Join(mem.Tags, ", ") + "]"
		}

		lines = append(lines, fmt.Sprintf("### %d. [%s] %s%s%s\n%s\n",
			i+1, mem.Kind, title, scorePart, tagPart, content))
	}
	return strings.Join(lines, "\n")
}
