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
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/datatypes"
)

// =============================================================================
// Tool Request Types
// =============================================================================

// MemoryWriteIn is the request body of /tools/memory.write.
type MemoryWriteIn struct {
	TenantID      string          `json:"tenant_id" binding:"required"`
	Scope         datatypes.Scope `json:"scope"`
	Kind          string          `json:"kind" binding:"required"`
	Title         *string         `json:"title"`
	Content       string          `json:"content" binding:"required"`
	Tags          []string        `json:"tags"`
	Source        *string         `json:"source"`
	AuthorAgentID *string         `json:"author_agent_id"`
	ToolName      *string         `json:"tool_name"`
}

// MemorySearchIn is the request body of /tools/memory.search.
type MemorySearchIn struct {
	TenantID       string          `json:"tenant_id" binding:"required"`
	ScopeFilter    datatypes.Scope `json:"scope_filter"`
	Query          string          `json:"query" binding:"required"`
	TopK           int             `json:"top_k" binding:"omitempty,min=1,max=100"`
	Tags           []string        `json:"tags"`
	Kinds          []string        `json:"kinds"`
	TimeRangeStart *time.Time      `json:"time_range_start"`
	TimeRangeEnd   *time.Time      `json:"time_range_end"`
}

// MemoryGetIn is the request body of /tools/memory.get.
type MemoryGetIn struct {
	TenantID string `json:"tenant_id" binding:"required"`
	MemoryID string `json:"memory_id" binding:"required"`
}

// MemoryLinkIn is the request body of /tools/memory.link.
type MemoryLinkIn struct {
	TenantID     string `json:"tenant_id" binding:"required"`
	FromMemoryID string `json:"from_memory_id" binding:"required"`
	ToMemoryID   string `json:"to_memory_id" binding:"required"`
	Relation     string `json:"relation" binding:"required"`
}

// SummarizeScopeIn is the request body of /tools/memory.summarize_scope.
type SummarizeScopeIn struct {
	TenantID   string          `json:"tenant_id" binding:"required"`
	Scope      datatypes.Scope `json:"scope"`
	Mode       string          `json:"mode" binding:"omitempty,oneof=brief full"`
	MaxEntries int             `json:"max_entries" binding:"omitempty,min=1,max=500"`
}

// AttachBlobIn is the request body of /tools/memory.attach_blob.
type AttachBlobIn struct {
	TenantID   string `json:"tenant_id" binding:"required"`
	MemoryID   string `json:"memory_id" binding:"required"`
	Filename   string `json:"filename" binding:"required"`
	MimeType   string `json:"mime_type" binding:"required"`
	DataBase64 string `json:"data_base64" binding:"required"`
}

// FetchBlobIn is the request body of /tools/memory.fetch_blob.
type FetchBlobIn struct {
	TenantID     string `json:"tenant_id" binding:"required"`
	AttachmentID string `json:"attachment_id" binding:"required"`
}

// =============================================================================
// Tool Response Types
// =============================================================================

// MemoryOut is the standard entry representation. Timestamps are ISO-8601
// UTC; Score is present only on search results.
type MemoryOut struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	Title         *string    `json:"title"`
	Content       string     `json:"content"`
	Tags          []string   `json:"tags"`
	Source        *string    `json:"source,omitempty"`
	AuthorAgentID *string    `json:"author_agent_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	Score         *float64   `json:"score,omitempty"`
}

// LinkOut is a relationship between two entries.
type LinkOut struct {
	ID           int64     `json:"id"`
	FromMemoryID string    `json:"from_memory_id"`
	ToMemoryID   string    `json:"to_memory_id"`
	Relation     string    `json:"relation"`
	CreatedAt    time.Time `json:"created_at"`
}

// AttachmentOut is attachment metadata, optionally with a presigned download
// URL.
type AttachmentOut struct {
	ID          string    `json:"id"`
	MemoryID    string    `json:"memory_id"`
	BlobKey     string    `json:"blob_key"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mime_type"`
	Bytes       int64     `json:"bytes"`
	SHA256      string    `json:"sha256"`
	CreatedAt   time.Time `json:"created_at"`
	DownloadURL *string   `json:"download_url,omitempty"`
}

// MemoryGetOut is the full entry view with attachments and both link
// directions.
type MemoryGetOut struct {
	Entry       MemoryOut       `json:"entry"`
	Attachments []AttachmentOut `json:"attachments"`
	LinkedFrom  []LinkOut       `json:"linked_from"`
	LinkedTo    []LinkOut       `json:"linked_to"`
}

// FetchBlobOut carries attachment metadata plus inline bytes when no
// presigned URL is available.
type FetchBlobOut struct {
	Attachment AttachmentOut `json:"attachment"`
	DataBase64 *string       `json:"data_base64"`
}

// HealthOut reports backend connectivity.
type HealthOut struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres,omitempty"`
	Redis    string `json:"redis,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ErrorResponse is the JSON error envelope of every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// =============================================================================
// Conversions
// =============================================================================

func entryToOut(e datatypes.MemoryEntry, score *float64) MemoryOut {
	updated := e.UpdatedAt.UTC()
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return MemoryOut{
		ID:            e.ID,
		Kind:          e.Kind,
		Title:         e.Title,
		Content:       e.Content,
		Tags:          tags,
		Source:        e.Source,
		AuthorAgentID: e.AuthorAgentID,
		CreatedAt:     e.CreatedAt.UTC(),
		UpdatedAt:     &updated,
		Score:         score,
	}
}

func linkToOut(l datatypes.Link) LinkOut {
	return LinkOut{
		ID:           l.ID,
		FromMemoryID: l.FromMemoryID,
		ToMemoryID:   l.ToMemoryID,
		Relation:     l.Relation,
		CreatedAt:    l.CreatedAt.UTC(),
	}
}

func linksToOut(links []datatypes.Link) []LinkOut {
	out := make([]LinkOut, 0, len(links))
	for _, l := range links {
		out = append(out, linkToOut(l))
	}
	return out
}

func attachmentToOut(a datatypes.Attachment, downloadURL *string) AttachmentOut {
	return AttachmentOut{
		ID:          a.ID,
		MemoryID:    a.MemoryID,
		BlobKey:     a.BlobKey,
		Filename:    a.Filename,
		MimeType:    a.MimeType,
		Bytes:       a.Bytes,
		SHA256:      a.SHA256,
		CreatedAt:   a.CreatedAt.UTC(),
		DownloadURL: downloadURL,
	}
}

func attachmentsToOut(attachments []datatypes.Attachment) []AttachmentOut {
	out := make([]AttachmentOut, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, attachmentToOut(a, nil))
	}
	return out
}
