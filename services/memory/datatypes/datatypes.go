// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the shared domain types of the memory service:
// scopes, memory entries, links, and attachments. It has no dependencies on
// storage or transport so every layer can import it.
package datatypes

import "time"

// Entry kinds. A memory entry is exactly one of these.
const (
	KindChatTurn    = "chat_turn"
	KindTaskOutcome = "task_outcome"
	KindDecision    = "decision"
	KindRunbook     = "runbook"
	KindDocChunk    = "doc_chunk"
	KindSummary     = "summary"
)

// Link relations between two entries of the same tenant.
const (
	RelationSupports    = "supports"
	RelationDerivedFrom = "derived_from"
	RelationDuplicates  = "duplicates"
	RelationSupersedes  = "supersedes"
	RelationRelated     = "related"
)

// TagPromoted marks an entry as protected from pruning and biased in
// retrieval. Appended by the promotion job, never removed.
const TagPromoted = "promoted"

// Scope is the hierarchical context that isolates memory between agent
// sessions. All four dimensions are optional; a nil dimension contributes the
// literal string "None" to the derived scope ID, so (nil, nil, nil, nil) is a
// valid scope of its own.
type Scope struct {
	ChannelID      *string `json:"channel_id"`
	ConversationID *string `json:"conversation_id"`
	ProjectID      *string `json:"project_id"`
	TaskID         *string `json:"task_id"`
}

// MemoryEntry is the atomic unit of stored knowledge.
//
// Description:
//
//	The ID is derived from the content hash, so identical (kind, title,
//	content) tuples written into the same (tenant, scope) dedupe to one row.
//	Content is stored whitespace-normalized; the same normalized bytes feed
//	the content hash.
type MemoryEntry struct {
	ID            string
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
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Link is a directed typed edge between two entries of the same tenant.
// Unique on (from, to, relation); creation is idempotent.
type Link struct {
	ID           int64
	FromMemoryID string
	ToMemoryID   string
	Relation     string
	CreatedAt    time.Time
}

// Attachment is the metadata row for a blob belonging to an entry. The bytes
// themselves live in the blob store under BlobKey.
type Attachment struct {
	ID        string
	MemoryID  string
	BlobKey   string
	Filename  string
	MimeType  string
	Bytes     int64
	SHA256    string
	CreatedAt time.Time
}

// validKinds is the closed set of entry kinds.
var validKinds = map[string]bool{
	KindChatTurn:    true,
	KindTaskOutcome: true,
	KindDecision:    true,
	KindRunbook:     true,
	KindDocChunk:    true,
	KindSummary:     true,
}

// validRelations is the closed set of link relations.
var validRelations = map[string]bool{
	RelationSupports:    true,
	RelationDerivedFrom: true,
	RelationDuplicates:  true,
	RelationSupersedes:  true,
	RelationRelated:     true,
}

// ValidKind reports whether kind is one of the known entry kinds.
func ValidKind(kind string) bool {
	return validKinds[kind]
}

// ValidRelation reports whether relation is one of the known link relations.
func ValidRelation(relation string) bool {
	return validRelations[relation]
}
