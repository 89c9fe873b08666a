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
	"testing"

	"github.com/AleutianAI/AleutianMemory/services/memory"
	"github.com/AleutianAI/AleutianMemory/services/memory/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records calls and can be told to fail or panic.
type fakeService struct {
	writes     []memory.MemoryWriteIn
	links      []memory.MemoryLinkIn
	writeErr   error
	linkErr    error
	panicWrite bool

	searchResults []memory.MemoryOut
	workingSet    []string
	workingSetErr error
}

func (f *fakeService) WriteMemory(_ context.Context, in memory.MemoryWriteIn) (memory.MemoryOut, error) {
	if f.panicWrite {
		panic("backend exploded")
	}
	f.writes = append(f.writes, in)
	if f.writeErr != nil {
		return memory.MemoryOut{}, f.writeErr
	}
	return memory.MemoryOut{ID: "mem_" + in.Kind, Kind: in.Kind, Content: in.Content, Tags: in.Tags}, nil
}

func (f *fakeService) CreateLink(_ context.Context, in memory.MemoryLinkIn) (memory.LinkOut, error) {
	f.links = append(f.links, in)
	if f.linkErr != nil {
		return memory.LinkOut{}, f.linkErr
	}
	return memory.LinkOut{ID: int64(len(f.links)), FromMemoryID: in.FromMemoryID, ToMemoryID: in.ToMemoryID, Relation: in.Relation}, nil
}

func (f *fakeService) PreflightSearch(_ context.Context, _ string, _ datatypes.Scope, _ string, _ int, _ []string) ([]memory.MemoryOut, string, error) {
	return f.searchResults, "sc_test", nil
}

func (f *fakeService) WorkingSet(_ context.Context, _ string, _ datatypes.Scope) ([]string, error) {
	return f.workingSet, f.workingSetErr
}

func str(s string) *string { return &s }

func TestOnMessageReceived(t *testing.T) {
	fake := &fakeService{}
	hooks := NewHooks(fake, slog.Default())

	id := hooks.OnMessageReceived(context.Background(), "t1",
		datatypes.Scope{ChannelID: str("c1")}, "Can you fix the Docker build?", str("user-1"), nil)

	assert.Equal(t, "mem_chat_turn", id)
	require.Len(t, fake.writes, 1)
	w := fake.writes[0]
	assert.Equal(t, datatypes.KindChatTurn, w.Kind)
	require.NotNil(t, w.Source)
	assert.Equal(t, "gateway", *w.Source)
}

func TestOnMessageReceivedEmptyContent(t *testing.T) {
	fake := &fakeService{}
	hooks := NewHooks(fake, slog.Default())

	assert.Empty(t, hooks.OnMessageReceived(context.Background(), "t1", datatypes.Scope{}, "", nil, nil))
	assert.Empty(t, hooks.OnMessageReceived(context.Background(), "t1", datatypes.Scope{}, "  \n\t ", nil, nil))
	assert.Empty(t, fake.writes, "whitespace-only messages are skipped")
}

func TestOnMessageReceivedSwallowsErrors(t *testing.T) {
	fake := &fakeService{writeErr: errors.New("db down")}
	hooks := NewHooks(fake, slog.Default())

	id := hooks.OnMessageReceived(context.Background(), "t1", datatypes.Scope{}, "hello", nil, nil)
	assert.Empty(t, id, "hook failures return empty, never propagate")
}

func TestOnMessageReceivedSwallowsPanics(t *testing.T) {
	fake := &fakeService{panicWrite: true}
	hooks := NewHooks(fake, slog.Default())

	assert.NotPanics(t, func() {
		id := hooks.OnMessageReceived(context.Background(), "t1", datatypes.Scope{}, "hello", nil, nil)
		assert.Empty(t, id)
	})
}

func TestOnTaskCompletedAppendsToolTag(t *testing.T) {
	fake := &fakeService{}
	hooks := NewHooks(fake, slog.Default())

	id := hooks.OnTaskCompleted(context.Background(), "t1", datatypes.Scope{},
		"docker push fix", "Resolved push stall.", []string{"docker"}, nil, str("browser_use"), nil)

	assert.Equal(t, "mem_task_outcome", id)
	require.Len(t, fake.writes, 1)
	assert.Equal(t, []string{"docker", "browser_use"}, fake.writes[0].Tags)

	// A tool already present in tags is not duplicated.
	fake.writes = nil
	hooks.OnTaskCompleted(context.Background(), "t1", datatypes.Scope{},
		"again", "Another result.", []string{"browser_use"}, nil, str("browser_use"), nil)
	require.Len(t, fake.writes, 1)
	assert.Equal(t, []string{"browser_use"}, fake.writes[0].Tags)
}

func TestOnTaskCompletedLinksArtifacts(t *testing.T) {
	fake := &fakeService{}
	hooks := NewHooks(fake, slog.Default())

	hooks.OnTaskCompleted(context.Background(), "t1", datatypes.Scope{},
		"result", "Task finished.", nil, nil, nil, []string{"mem_a", "mem_b"})

	require.Len(t, fake.links, 2)
	for _, l := range fake.links {
		assert.Equal(t, datatypes.RelationRelated, l.Relation)
		assert.Equal(t, "mem_task_outcome", l.FromMemoryID)
	}
}

func TestOnTaskCompletedLinkFailureDoesNotFailHook(t *testing.T) {
	fake := &fakeService{linkErr: errors.New("constraint violation")}
	hooks := NewHooks(fake, slog.Default())

	id := hooks.OnTaskCompleted(context.Background(), "t1", datatypes.Scope{},
		"result", "Task finished.", nil, nil, nil, []string{"mem_a"})
	assert.Equal(t, "mem_task_outcome", id, "partial results are acceptable")
}

func TestOnToolCompleted(t *testing.T) {
	fake := &fakeService{}
	hooks := NewHooks(fake, slog.Default())

	id := hooks.OnToolCompleted(context.Background(), "t1", datatypes.Scope{},
		"browser_use", "Scraped the dashboard.", nil, nil)

	assert.Equal(t, "mem_task_outcome", id)
	require.Len(t, fake.writes, 1)
	require.NotNil(t, fake.writes[0].Title)
	assert.Equal(t, "Tool result: browser_use", *fake.writes[0].Title)
	assert.Contains(t, fake.writes[0].Tags, "browser_use")
}
