// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway holds the fire-and-report hooks the event pipeline calls
// at message/task/tool boundaries, plus the preflight context assembler
// nodes use before executing a task.
//
// Hooks never fail closed: every error — network, provider, database,
// cancellation — is logged and swallowed so the event pipeline is never
// blocked on a memory write.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianMemory/services/memory"
	"github.com/AleutianAI/AleutianMemory/services/memory/datatypes"
)

// MemoryService is the slice of the memory service the gateway integration
// needs. *memory.Service implements it; tests substitute a fake.
type MemoryService interface {
	WriteMemory(ctx context.Context, in memory.MemoryWriteIn) (memory.MemoryOut, error)
	CreateLink(ctx context.Context, in memory.MemoryLinkIn) (memory.LinkOut, error)
	PreflightSearch(ctx context.Context, tenantID string, scope datatypes.Scope, query string, topK int, kinds []string) ([]memory.MemoryOut, string, error)
	WorkingSet(ctx context.Context, tenantID string, scope datatypes.Scope) ([]string, error)
}

// Hooks are the write entry points of the event pipeline.
//
// Thread Safety: Hooks is stateless apart from its service handle and safe
// for concurrent use.
type Hooks struct {
	svc    MemoryService
	logger *slog.Logger
}

// NewHooks builds the hook set.
func NewHooks(svc MemoryService, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{svc: svc, logger: logger}
}

const hookSource = "gateway"

// OnMessageReceived writes an incoming message as a chat_turn entry.
//
// Outputs:
//   - string: the memory ID, or "" when the message was empty or the write
//     failed. Failures never propagate.
func (h *Hooks) OnMessageReceived(
	ctx context.Context,
	tenantID string,
	scope datatypes.Scope,
	content string,
	authorAgentID *string,
	tags []string,
) (memoryID string) {
	defer h.recoverHook("OnMessageReceived")

	if !hasContent(content) {
		return ""
	}

	source := hookSource
	out, err := h.svc.WriteMemory(ctx, memory.MemoryWriteIn{
		TenantID:      tenantID,
		Scope:         scope,
		Kind:          datatypes.KindChatTurn,
		Content:       content,
		Tags:          tags,
		Source:        &source,
		AuthorAgentID: authorAgentID,
	})
	if err != nil {
		// Graceful degradation: log and keep the message pipeline moving.
		h.logger.Error("OnMessageReceived failed (non-blocking)",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()))
		return ""
	}

	h.logger.Info("OnMessageReceived wrote chat_turn",
		slog.String("memory_id", out.ID),
		slog.String("tenant_id", tenantID))
	return out.ID
}

// OnTaskCompleted writes a task result as a task_outcome entry.
//
// Description:
//
//	When toolName is set and absent from tags it is appended, so tool
//	provenance is searchable by tag overlap. Each artifact ID gets a
//	best-effort related link; a failed link never fails the hook.
//
// Outputs:
//   - string: the memory ID, or "" when content was empty or the write
//     failed.
func (h *Hooks) OnTaskCompleted(
	ctx context.Context,
	tenantID string,
	scope datatypes.Scope,
	title string,
	content string,
	tags []string,
	authorAgentID *string,
	toolName *string,
	artifactMemoryIDs []string,
) (memoryID string) {
	defer h.recoverHook("OnTaskCompleted")

	if !hasContent(content) {
		return ""
	}

	allTags := append([]string(nil), tags...)
	if toolName != nil && *toolName != "" && !containsString(allTags, *toolName) {
		allTags = append(allTags, *toolName)
	}

	source := hookSource
	out, err := h.svc.WriteMemory(ctx, memory.MemoryWriteIn{
		TenantID:      tenantID,
		Scope:         scope,
		Kind:          datatypes.KindTaskOutcome,
		Title:         &title,
		Content:       content,
		Tags:          allTags,
		Source:        &source,
		AuthorAgentID: authorAgentID,
		ToolName:      toolName,
	})
	if err != nil {
		h.logger.Error("OnTaskCompleted failed (non-blocking)",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()))
		return ""
	}

	for _, artifactID := range artifactMemoryIDs {
		if _, err := h.svc.CreateLink(ctx, memory.MemoryLinkIn{
			TenantID:     tenantID,
			FromMemoryID: out.ID,
			ToMemoryID:   artifactID,
			Relation:     datatypes.RelationRelated,
		}); err != nil {
			h.logger.Warn("Failed to link task_outcome to artifact",
				slog.String("memory_id", out.ID),
				slog.String("artifact_id", artifactID),
				slog.String("error", err.Error()))
		}
	}

	h.logger.Info("OnTaskCompleted wrote task_outcome",
		slog.String("memory_id", out.ID),
		slog.String("title", title),
		slog.String("tenant_id", tenantID))
	return out.ID
}

// OnToolCompleted records a tool completion as a task_outcome titled
// "Tool result: {tool}".
func (h *Hooks) OnToolCompleted(
	ctx context.Context,
	tenantID string,
	scope datatypes.Scope,
	toolName string,
	resultSummary string,
	authorAgentID *string,
	tags []string,
) string {
	return h.OnTaskCompleted(ctx, tenantID, scope,
		fmt.Sprintf("Tool result: %s", toolName), resultSummary,
		tags, authorAgentID, &toolName, nil)
}

// recoverHook converts a panic inside a hook into a log line. Hooks are
// fire-and-report; nothing may escape to the event pipeline.
func (h *Hooks) recoverHook(name string) {
	if rec := recover(); rec != nil {
		h.logger.Error("Hook panicked (non-blocking)",
			slog.String("hook", name),
			slog.Any("panic", rec))
	}
}

func hasContent(content string) bool {
	return strings.TrimSpace(content) != ""
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
