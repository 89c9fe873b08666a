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

const attachmentColumns = `id, memory_id, blob_key, filename, mime_type, bytes, sha256, created_at`

// WriteAttachment inserts an attachment record. Attachment IDs derive from
// the blob bytes, so re-attaching identical bytes is idempotent: on conflict
// the existing row is returned.
func (s *Store) WriteAttachment(ctx context.Context, tenantID string, a datatypes.Attachment) (datatypes.Attachment, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO memory_attachments
			(id, tenant_id, memory_id, blob_key, filename, mime_type, bytes, sha256)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
		RETURNING `+attachmentColumns,
		a.ID, tenantID, a.MemoryID, a.BlobKey, a.Filename, a.MimeType, a.Bytes, a.SHA256)

	stored, err := scanAttachment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		row = s.pool.QueryRow(ctx,
			`SELECT `+attachmentColumns+` FROM memory_attachments WHERE id = $1 AND tenant_id = $2`,
			a.ID, tenantID)
		stored, err = scanAttachment(row)
	}
	if err != nil {
		return datatypes.Attachment{}, fmt.Errorf("write attachment: %w", err)
	}
	return stored, nil
}

// GetAttachment fetches one attachment by ID under the tenant. Returns
// ErrNotFound when absent.
func (s *Store) GetAttachment(ctx context.Context, tenantID, attachmentID string) (datatypes.Attachment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+attachmentColumns+` FROM memory_attachments WHERE id = $1 AND tenant_id = $2`,
		attachmentID, tenantID)
	a, err := scanAttachment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return datatypes.Attachment{}, ErrNotFound
	}
	if err != nil {
		return datatypes.Attachment{}, fmt.Errorf("get attachment: %w", err)
	}
	return a, nil
}

// GetAttachments lists the attachments of a memory entry.
func (s *Store) GetAttachments(ctx context.Context, tenantID, memoryID string) ([]datatypes.Attachment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+attachmentColumns+` FROM memory_attachments WHERE memory_id = $1 AND tenant_id = $2 ORDER BY created_at`,
		memoryID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	attachments := make([]datatypes.Attachment, 0)
	for rows.Next() {
		var a datatypes.Attachment
		if err := rows.Scan(&a.ID, &a.MemoryID, &a.BlobKey, &a.Filename, &a.MimeType, &a.Bytes, &a.SHA256, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

func scanAttachment(row pgx.Row) (datatypes.Attachment, error) {
	var a datatypes.Attachment
	err := row.Scan(&a.ID, &a.MemoryID, &a.BlobKey, &a.Filename, &a.MimeType, &a.Bytes, &a.SHA256, &a.CreatedAt)
	return a, err
}
