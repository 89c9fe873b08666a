// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package identity derives the deterministic IDs of the memory service.
//
// Every ID is a short prefix plus the first 24 hex characters of a SHA-256
// digest, which makes deduplication a plain uniqueness constraint in the
// durable store:
//
//	mem_<24 hex>  memory entries, from the content hash
//	sc_<24 hex>   scopes, from (tenant, four scope dimensions)
//	att_<24 hex>  attachments, from the raw blob bytes
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/AleutianAI/AleutianMemory/services/memory/datatypes"
)

// idHexLen is the number of hex characters of the source digest carried by
// each derived ID.
const idHexLen = 24

// NormalizeContent trims outer whitespace and collapses any run of
// whitespace to a single space.
//
// Description:
//
//	The same normalized bytes feed both the content hash and the stored
//	content column. Storing raw content while hashing normalized content
//	(or vice versa) would break deduplication, so callers must use this one
//	function for both.
func NormalizeContent(content string) string {
	return strings.Join(strings.Fields(content), " ")
}

// ContentHash computes the dedupe hash of an entry as lowercase hex:
// sha256(kind | title-or-empty | normalized content).
func ContentHash(kind, title, content string) string {
	sum := sha256.Sum256([]byte(kind + "|" + title + "|" + NormalizeContent(content)))
	return hex.EncodeToString(sum[:])
}

// MemoryID derives the entry ID from its content hash.
func MemoryID(contentHash string) string {
	return "mem_" + contentHash[:idHexLen]
}

// ScopeID derives the scope ID for a tenant and scope tuple.
//
// Description:
//
//	The hash input is "tenant|ch|conv|proj|task" where a nil dimension
//	contributes the literal string "None". Same inputs always produce the
//	same ID, and distinct tenants produce distinct IDs almost surely.
func ScopeID(tenantID string, scope datatypes.Scope) string {
	key := tenantID + "|" +
		scopeDim(scope.ChannelID) + "|" +
		scopeDim(scope.ConversationID) + "|" +
		scopeDim(scope.ProjectID) + "|" +
		scopeDim(scope.TaskID)
	sum := sha256.Sum256([]byte(key))
	return "sc_" + hex.EncodeToString(sum[:])[:idHexLen]
}

// AttachmentID derives the attachment ID from the raw blob bytes.
func AttachmentID(data []byte) string {
	return "att_" + SHA256Hex(data)[:idHexLen]
}

// SHA256Hex returns the lowercase hex SHA-256 of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func scopeDim(dim *string) string {
	if dim == nil {
		return "None"
	}
	return *dim
}
