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
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/storage/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(kind, title, content string) postgres.ScopeEntry {
	e := postgres.ScopeEntry{Kind: kind, Content: content, CreatedAt: time.Now()}
	if title != "" {
		e.Title = &title
	}
	return e
}

func TestBuildJobSummaryBrief(t *testing.T) {
	entries := []postgres.ScopeEntry{
		entry("task_outcome", "task result 0", "Completed task 0 with findings."),
		entry("chat_turn", "", "Please rerun the deploy."),
	}

	got := buildJobSummary(entries, "brief")
	assert.True(t, strings.HasPrefix(got, "Weekly summary (2 entries):\n"), got)
	assert.Contains(t, got, "[task_outcome] task result 0: Completed task 0 with findings.")
	assert.Contains(t, got, "[chat_turn]: Please rerun the deploy.")
	assert.NotContains(t, got, "---")
}

func TestBuildJobSummaryBriefCapsAtTwenty(t *testing.T) {
	long := strings.Repeat("z", 300)
	entries := make([]postgres.ScopeEntry, 0, 30)
	for i := 0; i < 30; i++ {
		entries = append(entries, entry("decision", "", long))
	}

	got := buildJobSummary(entries, "brief")
	assert.True(t, strings.HasPrefix(got, "Weekly summary (30 entries):\n"), got)

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 21)
	for _, line := range lines[1:] {
		assert.LessOrEqual(t, len(line), len("[decision]: ")+200, "brief previews cap at 200")
	}
}

func TestBuildJobSummaryFull(t *testing.T) {
	long := strings.Repeat("w", 400)
	entries := []postgres.ScopeEntry{
		entry("runbook", "deploy", long),
		entry("doc_chunk", "", "Chapter one."),
	}

	got := buildJobSummary(entries, "full")
	assert.True(t, strings.HasPrefix(got, "Full summary (2 entries):\n"), got)
	assert.Contains(t, got, long)
	assert.Contains(t, got, "\n---\n")
}

func TestBuildJobSummaryDeterministic(t *testing.T) {
	// Identical scope state must render identical bytes so the dedupe path
	// collapses re-runs of the job into one summary entry.
	entries := []postgres.ScopeEntry{
		entry("task_outcome", "a", "one"),
		entry("decision", "b", "two"),
	}
	assert.Equal(t, buildJobSummary(entries, "brief"), buildJobSummary(entries, "brief"))
	assert.Equal(t, buildJobSummary(entries, "full"), buildJobSummary(entries, "full"))
}
