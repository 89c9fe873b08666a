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
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianMemory/services/memory"
	"github.com/AleutianAI/AleutianMemory/services/memory/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v float64) *float64 { return &v }

func TestGetContext(t *testing.T) {
	fake := &fakeService{
		searchResults: []memory.MemoryOut{
			{ID: "mem_1", Kind: "task_outcome", Title: str("docker push fix"),
				Content: "Resolved push stall.", Tags: []string{"docker", "infra"}, Score: score(0.87)},
			{ID: "mem_2", Kind: "runbook", Content: "Step 1: build. Step 2: push.", Tags: []string{}},
		},
		workingSet: []string{"mem_1", "mem_9"},
	}
	pf := NewPreflight(fake, slog.Default())

	result, err := pf.GetContext(context.Background(), "t1",
		datatypes.Scope{ChannelID: str("c1")}, "fix docker push", "stalls on layer upload", 5, true)
	require.NoError(t, err)

	assert.Equal(t, "sc_test", result.ScopeID)
	assert.Equal(t, []string{"mem_1", "mem_9"}, result.WorkingSetIDs)
	assert.Len(t, result.Memories, 2)

	ctxBlock := result.KnownContext
	assert.True(t, strings.HasPrefix(ctxBlock, "## Known Context (from prior tasks)\n"), ctxBlock)
	assert.Contains(t, ctxBlock, "### 1. [task_outcome] docker push fix (relevance: 0.87) [docker, infra]")
	assert.Contains(t, ctxBlock, "### 2. [runbook] untitled")
}

func TestGetContextEmpty(t *testing.T) {
	pf := NewPreflight(&fakeService{}, slog.Default())

	result, err := pf.GetContext(context.Background(), "t1", datatypes.Scope{}, "anything", "", 5, false)
	require.NoError(t, err)
	assert.Empty(t, result.KnownContext)
	assert.Empty(t, result.WorkingSetIDs)
}

func TestGetContextWorkingSetFailureIsAdvisory(t *testing.T) {
	fake := &fakeService{workingSetErr: errors.New("redis down")}
	pf := NewPreflight(fake, slog.Default())

	result, err := pf.GetContext(context.Background(), "t1", datatypes.Scope{}, "task", "", 5, true)
	require.NoError(t, err, "a cache failure must not block task startup")
	assert.Empty(t, result.WorkingSetIDs)
}

func TestFormatKnownContextTruncates(t *testing.T) {
	long := strings.Repeat("a", 800)
	got := formatKnownContext([]memory.MemoryOut{
		{ID: "mem_1", Kind: "decision", Content: long},
	})
	assert.Contains(t, got, strings.Repeat("a", 500)+"...")
	assert.NotContains(t, got, strings.Repeat("a", 501))
}
