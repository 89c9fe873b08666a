// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import (
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/datatypes"
	"github.com/AleutianAI/AleutianMemory/services/memory/storage/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() datatypes.MemoryEntry {
	return datatypes.MemoryEntry{
		ID:        "mem_abc",
		Kind:      datatypes.KindDecision,
		Content:   "Keep pgvector.",
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("PST", -8*3600)),
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("PST", -8*3600)),
	}
}

func scopeEntry(kind, title, content string) postgres.ScopeEntry {
	e := postgres.ScopeEntry{Kind: kind, Content: content, CreatedAt: time.Now()}
	if title != "" {
		e.Title = &title
	}
	return e
}

func TestBuildScopeSummaryBrief(t *testing.T) {
	entries := []postgres.ScopeEntry{
		scopeEntry("task_outcome", "task result 0", "Completed task 0."),
		scopeEntry("chat_turn", "", "Can you check the build?"),
	}

	got := buildScopeSummary(entries, "brief")
	assert.True(t, strings.HasPrefix(got, "Scope summary (2 entries, showing top 2):\n"), got)
	assert.Contains(t, got, "[task_outcome] task result 0: Completed task 0.")
	assert.Contains(t, got, "[chat_turn]: Can you check the build?")
}

func TestBuildScopeSummaryBriefTruncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	entries := make([]postgres.ScopeEntry, 0, 25)
	for i := 0; i < 25; i++ {
		entries = append(entries, scopeEntry("decision", "", long))
	}

	got := buildScopeSummary(entries, "brief")
	assert.True(t, strings.HasPrefix(got, "Scope summary (25 entries, showing top 20):\n"), got)

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 21, "header plus 20 entry lines")
	for _, line := range lines[1:] {
		assert.LessOrEqual(t, len(line), len("[decision]: ")+200)
	}
}

func TestBuildScopeSummaryFull(t *testing.T) {
	long := strings.Repeat("y", 500)
	entries := []postgres.ScopeEntry{
		scopeEntry("runbook", "deploy", long),
		scopeEntry("decision", "", "Keep pgvector."),
	}

	got := buildScopeSummary(entries, "full")
	assert.True(t, strings.HasPrefix(got, "Full scope summary (2 entries):\n"), got)
	assert.Contains(t, got, long, "full mode keeps whole content")
	assert.Contains(t, got, "\n---\n", "full mode separates entries")
}

func TestEntryToOutNilTags(t *testing.T) {
	out := entryToOut(testEntry(), nil)
	assert.NotNil(t, out.Tags, "tags render as [] not null")
	assert.Nil(t, out.Score)
	require.NotNil(t, out.UpdatedAt)
	assert.Equal(t, time.UTC, out.CreatedAt.Location())
}
