// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/datatypes"
)

// ScopeEntry is the slim projection the lifecycle jobs work with.
type ScopeEntry struct {
	ID        string
	Kind      string
	Title     *string
	Content   string
	Tags      []string
	CreatedAt time.Time
}

// PromotionCandidate is a task_outcome entry with its inbound reference
// count.
type PromotionCandidate struct {
	ID        string
	Kind      string
	Title     *string
	Tags      []string
	CreatedAt time.Time
	RefCount  int64
}

// GetScopeEntries returns the most recent entries of a scope, newest first,
// optionally excluding a set of kinds. Used by summarization.
func (s *Store) GetScopeEntries(ctx context.Context, tenantID, scopeID string, maxEntries int, excludeKinds []string) ([]ScopeEntry, error) {
	exclude := excludeKinds
	if exclude == nil {
		exclude = []string{}
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, title, content, tags, created_at
		FROM memory_entries
		WHERE tenant_id = $1 AND scope_id = $2
		  AND ($3::text[] = '{}' OR kind != ALL($3::text[]))
		ORDER BY created_at DESC
		LIMIT $4`,
		tenantID, scopeID, exclude, maxEntries)
	if err != nil {
		return nil, fmt.Errorf("query scope entries: %w", err)
	}
	defer rows.Close()

	var entries []ScopeEntry
	for rows.Next() {
		var e ScopeEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Title, &e.Content, &e.Tags, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scope entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListScopes returns every scope ID of the tenant.
func (s *Store) ListScopes(ctx context.Context, tenantID string) ([]string, error) {
	return s.queryScopeIDs(ctx,
		`SELECT id FROM scopes WHERE tenant_id = $1`, tenantID)
}

// ActiveScopes returns the scopes with at least one non-summary entry in the
// last seven days. Used by the summarize job to pick its targets.
func (s *Store) ActiveScopes(ctx context.Context, tenantID string) ([]string, error) {
	return s.queryScopeIDs(ctx, `
		SELECT DISTINCT s.id
		FROM scopes s
		JOIN memory_entries me ON me.scope_id = s.id
		WHERE s.tenant_id = $1
		  AND me.created_at >= now() - interval '7 days'
		  AND me.kind != 'summary'`,
		tenantID)
}

// PromotionCandidates finds task_outcome entries created within the lookback
// window, not yet promoted, and referenced by at least minReferences links.
func (s *Store) PromotionCandidates(ctx context.Context, tenantID string, minReferences, lookbackDays int) ([]PromotionCandidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT me.id, me.kind, me.title, me.tags, me.created_at,
		       COUNT(ml.id) AS ref_count
		FROM memory_entries me
		JOIN memory_links ml ON ml.to_memory_id = me.id
		WHERE me.tenant_id = $1
		  AND me.kind = 'task_outcome'
		  AND me.created_at >= now() - make_interval(days => $3)
		  AND NOT ($4 = ANY(me.tags))
		GROUP BY me.id
		HAVING COUNT(ml.id) >= $2`,
		tenantID, minReferences, lookbackDays, datatypes.TagPromoted)
	if err != nil {
		return nil, fmt.Errorf("query promotion candidates: %w", err)
	}
	defer rows.Close()

	var candidates []PromotionCandidate
	for rows.Next() {
		var c PromotionCandidate
		if err := rows.Scan(&c.ID, &c.Kind, &c.Title, &c.Tags, &c.CreatedAt, &c.RefCount); err != nil {
			return nil, fmt.Errorf("scan promotion candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// AddTag appends a tag to an entry if absent, touching updated_at. A no-op
// when the tag is already present.
func (s *Store) AddTag(ctx context.Context, tenantID, memoryID, tag string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE memory_entries
		SET tags = array_append(tags, $3), updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND NOT ($3 = ANY(tags))`,
		memoryID, tenantID, tag)
	if err != nil {
		return fmt.Errorf("add tag: %w", err)
	}
	return nil
}

// DeleteOldChatTurns removes non-promoted chat_turn entries of a scope older
// than the threshold and returns the number deleted.
func (s *Store) DeleteOldChatTurns(ctx context.Context, tenantID, scopeID string, olderThanDays int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM memory_entries
		WHERE tenant_id = $1
		  AND scope_id = $2
		  AND kind = $4
		  AND created_at < now() - make_interval(days => $3)
		  AND NOT ($5 = ANY(tags))`,
		tenantID, scopeID, olderThanDays, datatypes.KindChatTurn, datatypes.TagPromoted)
	if err != nil {
		return 0, fmt.Errorf("delete old chat turns: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) queryScopeIDs(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query scopes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan scope id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
