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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all memory service routes with the router.
//
// Description:
//
//	The tool paths are a wire contract with gateway and node clients; they
//	are mounted at the root, unversioned.
//
// Tool Endpoints:
//
//	POST /tools/memory.write - Persist an entry with its embedding (dedupes)
//	POST /tools/memory.search - Hybrid semantic+lexical retrieval
//	POST /tools/memory.get - Full entry with attachments and links
//	POST /tools/memory.link - Create a typed edge between entries
//	POST /tools/memory.summarize_scope - Condense a scope into a summary entry
//	POST /tools/memory.attach_blob - Upload and record an attachment
//	POST /tools/memory.fetch_blob - Retrieve an attachment (presign or inline)
//
// Operational Endpoints:
//
//	GET /health - Backend connectivity check
//	GET /stats/:tenant - Per-tenant observability counters
func RegisterRoutes(r *gin.Engine, handlers *Handlers) {
	tools := r.Group("/tools")
	{
		tools.POST("/memory.write", handlers.HandleWrite)
		tools.POST("/memory.search", handlers.HandleSearch)
		tools.POST("/memory.get", handlers.HandleGet)
		tools.POST("/memory.link", handlers.HandleLink)
		tools.POST("/memory.summarize_scope", handlers.HandleSummarizeScope)
		tools.POST("/memory.attach_blob", handlers.HandleAttachBlob)
		tools.POST("/memory.fetch_blob", handlers.HandleFetchBlob)
	}

	r.GET("/health", handlers.HandleHealth)
	r.GET("/stats/:tenant", handlers.HandleStats)
}
