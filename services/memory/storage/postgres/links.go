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

	"github.com/AleutianAI/AleutianMemory/services/memory/datatypes"
	"github.com/jackc/pgx/v5"
)

const linkColumns = `id, from_memory_id, to_memory_id, relation, created_at`

// CreateLink inserts a directed typed edge between two entries.
//
// Description:
//
//	Insert-on-conflict-do-nothing on (from, to, relation); on collision the
//	existing row is fetched and returned, so creating a link twice yields
//	the same row. Endpoint existence under the tenant is the caller's
//	responsibility; the foreign keys reject dangling IDs.
func (s *Store) CreateLink(ctx context.Context, tenantID, fromID, toID, relation string) (datatypes.Link, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO memory_links (tenant_id, from_memory_id, to_memory_id, relation)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (from_memory_id, to_memory_id, relation) DO NOTHING
		RETURNING `+linkColumns,
		tenantID, fromID, toID, relation)

	link, err := scanLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Link already existed, fetch it.
		row = s.pool.QueryRow(ctx, `
			SELECT `+linkColumns+`
			FROM memory_links
			WHERE tenant_id = $1 AND from_memory_id = $2 AND to_memory_id = $3 AND relation = $4`,
			tenantID, fromID, toID, relation)
		link, err = scanLink(row)
	}
	if err != nil {
		return datatypes.Link{}, fmt.Errorf("create link: %w", err)
	}
	return link, nil
}

// GetLinksFrom returns the links whose source is memoryID.
func (s *Store) GetLinksFrom(ctx context.Context, tenantID, memoryID string) ([]datatypes.Link, error) {
	return s.queryLinks(ctx, `
		SELECT `+linkColumns+`
		FROM memory_links
		WHERE tenant_id = $1 AND from_memory_id = $2
		ORDER BY id`, tenantID, memoryID)
}

// GetLinksTo returns the links whose target is memoryID.
func (s *Store) GetLinksTo(ctx context.Context, tenantID, memoryID string) ([]datatypes.Link, error) {
	return s.queryLinks(ctx, `
		SELECT `+linkColumns+`
		FROM memory_links
		WHERE tenant_id = $1 AND to_memory_id = $2
		ORDER BY id`, tenantID, memoryID)
}

func (s *Store) queryLinks(ctx context.Context, sql string, args ...any) ([]datatypes.Link, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := make([]datatypes.Link, 0)
	for rows.Next() {
		var l datatypes.Link
		if err := rows.Scan(&l.ID, &l.FromMemoryID, &l.ToMemoryID, &l.Relation, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func scanLink(row pgx.Row) (datatypes.Link, error) {
	var l datatypes.Link
	err := row.Scan(&l.ID, &l.FromMemoryID, &l.ToMemoryID, &l.Relation, &l.CreatedAt)
	return l, err
}
