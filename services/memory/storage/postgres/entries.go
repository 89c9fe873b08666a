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
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/datatypes"
	"github.com/AleutianAI/AleutianMemory/services/memory/identity"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// ErrNotFound is returned when a requested row does not exist under the
// caller's tenant.
var ErrNotFound = errors.New("not found")

// entryColumns is the canonical column list returned for an entry.
const entryColumns = `id, tenant_id, scope_id, kind, title, content, tags,
	source, author_agent_id, tool_name, content_hash, created_at, updated_at`

// WriteParams carries one entry write. ContentHash must be computed from the
// same kind/title/content via the identity package; Content is normalized by
// the store before persistence so the stored bytes match the hashed bytes.
type WriteParams struct {
	TenantID      string
	ScopeID       string
	Kind          string
	Title         *string
	Content       string
	Tags          []string
	Source        *string
	AuthorAgentID *string
	ToolName      *string
	ContentHash   string
	Embedding     []float32
}

// SearchFilters restricts a hybrid search. Nil/empty members are ignored.
type SearchFilters struct {
	Kinds          []string
	Tags           []string
	TimeRangeStart *time.Time
	TimeRangeEnd   *time.Time
}

// SearchResult is an entry plus its fused relevance score.
type SearchResult struct {
	datatypes.MemoryEntry
	Score float64
}

// EnsureTenant upserts the tenant row. Tenants are created on first
// reference and never deleted here.
func (s *Store) EnsureTenant(ctx context.Context, tenantID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		tenantID, tenantID)
	if err != nil {
		return fmt.Errorf("ensure tenant: %w", err)
	}
	return nil
}

// GetOrCreateScope upserts the scope row for (tenant, scope) and returns the
// derived scope ID. Scopes are never mutated after creation.
func (s *Store) GetOrCreateScope(ctx context.Context, tenantID string, scope datatypes.Scope) (string, error) {
	scopeID := identity.ScopeID(tenantID, scope)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scopes (id, tenant_id, channel_id, conversation_id, project_id, task_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		scopeID, tenantID, scope.ChannelID, scope.ConversationID, scope.ProjectID, scope.TaskID)
	if err != nil {
		return "", fmt.Errorf("upsert scope: %w", err)
	}
	return scopeID, nil
}

// WriteMemory upserts an entry and its embedding in one transaction and
// returns the canonical row.
//
// Description:
//
//	The entry upsert conflicts on (tenant_id, scope_id, kind, content_hash);
//	a duplicate write only touches updated_at. The embedding upsert
//	overwrites the vector so entry and embedding stay in lockstep. Callers
//	can detect a dedupe by comparing CreatedAt and UpdatedAt on the result.
func (s *Store) WriteMemory(ctx context.Context, p WriteParams) (datatypes.MemoryEntry, error) {
	memID := identity.MemoryID(p.ContentHash)
	normalized := identity.NormalizeContent(p.Content)
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	var entry datatypes.MemoryEntry
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO memory_entries
				(id, tenant_id, scope_id, kind, title, content, tags,
				 source, author_agent_id, tool_name, content_hash)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (tenant_id, scope_id, kind, content_hash)
			DO UPDATE SET updated_at = now()`,
			memID, p.TenantID, p.ScopeID, p.Kind, p.Title, normalized, tags,
			p.Source, p.AuthorAgentID, p.ToolName, p.ContentHash); err != nil {
			return fmt.Errorf("upsert entry: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO memory_embeddings (memory_id, embedding)
			VALUES ($1, $2)
			ON CONFLICT (memory_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
			memID, pgvector.NewVector(p.Embedding)); err != nil {
			return fmt.Errorf("upsert embedding: %w", err)
		}

		row := tx.QueryRow(ctx,
			`SELECT `+entryColumns+` FROM memory_entries WHERE id = $1 AND tenant_id = $2`,
			memID, p.TenantID)
		var err error
		entry, err = scanEntry(row)
		return err
	})
	if err != nil {
		return datatypes.MemoryEntry{}, err
	}
	return entry, nil
}

// SearchMemory runs the hybrid retrieval query in a single round-trip.
//
// Description:
//
//	Two candidate sets materialize in one statement: the top 50 entries by
//	cosine distance to the query vector, and the top 50 by trigram
//	similarity of content/title to the query text, both under identical
//	tenant/scope/filter predicates. The final score fuses them as
//	0.75*vec + 0.25*kw; entries missing from the keyword set contribute 0.
//	Ties break toward the newer entry.
func (s *Store) SearchMemory(
	ctx context.Context,
	tenantID, scopeID string,
	queryEmbedding []float32,
	queryText string,
	topK int,
	filters SearchFilters,
) ([]SearchResult, error) {
	var kinds, tags []string
	if len(filters.Kinds) > 0 {
		kinds = filters.Kinds
	}
	if len(filters.Tags) > 0 {
		tags = filters.Tags
	}

	rows, err := s.pool.Query(ctx, `
		WITH candidates AS (
			SELECT me.id, me.tenant_id, me.scope_id, me.kind, me.title, me.content, me.tags,
			       me.source, me.author_agent_id, me.tool_name, me.content_hash,
			       me.created_at, me.updated_at,
			       1 - (mb.embedding <=> $1) AS vec_score
			FROM memory_entries me
			JOIN memory_embeddings mb ON mb.memory_id = me.id
			WHERE me.tenant_id = $2
			  AND me.scope_id = $3
			  AND ($4::text[] IS NULL OR me.kind = ANY($4::text[]))
			  AND ($5::text[] IS NULL OR me.tags && $5::text[])
			  AND ($7::timestamptz IS NULL OR me.created_at >= $7)
			  AND ($8::timestamptz IS NULL OR me.created_at <= $8)
			ORDER BY mb.embedding <=> $1
			LIMIT 50
		),
		keyword AS (
			SELECT me.id,
			       GREATEST(
			           similarity(me.content, $6),
			           similarity(COALESCE(me.title, ''), $6)
			       ) AS kw_score
			FROM memory_entries me
			WHERE me.tenant_id = $2
			  AND me.scope_id = $3
			  AND ($4::text[] IS NULL OR me.kind = ANY($4::text[]))
			  AND ($5::text[] IS NULL OR me.tags && $5::text[])
			  AND ($7::timestamptz IS NULL OR me.created_at >= $7)
			  AND ($8::timestamptz IS NULL OR me.created_at <= $8)
			ORDER BY kw_score DESC
			LIMIT 50
		)
		SELECT c.id, c.tenant_id, c.scope_id, c.kind, c.title, c.content, c.tags,
		       c.source, c.author_agent_id, c.tool_name, c.content_hash,
		       c.created_at, c.updated_at,
		       (c.vec_score * 0.75 + COALESCE(k.kw_score, 0) * 0.25) AS score
		FROM candidates c
		LEFT JOIN keyword k ON k.id = c.id
		ORDER BY score DESC, c.created_at DESC
		LIMIT $9`,
		pgvector.NewVector(queryEmbedding), tenantID, scopeID,
		kinds, tags, queryText,
		filters.TimeRangeStart, filters.TimeRangeEnd, topK)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.ID, &r.TenantID, &r.ScopeID, &r.Kind, &r.Title, &r.Content, &r.Tags,
			&r.Source, &r.AuthorAgentID, &r.ToolName, &r.ContentHash,
			&r.CreatedAt, &r.UpdatedAt, &r.Score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hybrid search rows: %w", err)
	}
	return results, nil
}

// GetMemory fetches one entry by ID under the tenant. Returns ErrNotFound
// when absent.
func (s *Store) GetMemory(ctx context.Context, tenantID, memoryID string) (datatypes.MemoryEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM memory_entries WHERE id = $1 AND tenant_id = $2`,
		memoryID, tenantID)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return datatypes.MemoryEntry{}, ErrNotFound
	}
	if err != nil {
		return datatypes.MemoryEntry{}, fmt.Errorf("get memory: %w", err)
	}
	return entry, nil
}

func scanEntry(row pgx.Row) (datatypes.MemoryEntry, error) {
	var e datatypes.MemoryEntry
	err := row.Scan(
		&e.ID, &e.TenantID, &e.ScopeID, &e.Kind, &e.Title, &e.Content, &e.Tags,
		&e.Source, &e.AuthorAgentID, &e.ToolName, &e.ContentHash,
		&e.CreatedAt, &e.UpdatedAt)
	return e, err
}
