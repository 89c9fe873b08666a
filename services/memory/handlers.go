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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ToolAPI is the surface the HTTP handlers need from the service. *Service
// implements it; tests substitute a fake.
type ToolAPI interface {
	WriteMemory(ctx context.Context, in MemoryWriteIn) (MemoryOut, error)
	SearchMemory(ctx context.Context, in MemorySearchIn) ([]MemoryOut, error)
	GetMemory(ctx context.Context, in MemoryGetIn) (MemoryGetOut, error)
	CreateLink(ctx context.Context, in MemoryLinkIn) (LinkOut, error)
	SummarizeScope(ctx context.Context, in SummarizeScopeIn) (MemoryOut, error)
	AttachBlob(ctx context.Context, in AttachBlobIn) (AttachmentOut, error)
	FetchBlob(ctx context.Context, in FetchBlobIn) (FetchBlobOut, error)
	Stats(ctx context.Context, tenantID string) (map[string]int64, error)
	Health(ctx context.Context) (HealthOut, error)
}

// Handlers binds the tool endpoints to a ToolAPI.
type Handlers struct {
	api ToolAPI
}

// NewHandlers creates the handler set.
func NewHandlers(api ToolAPI) *Handlers {
	return &Handlers{api: api}
}

// writeError maps a service error kind to an HTTP response.
//
// Description:
//
//	BadRequest, NotFound, and StorageError surface with their short
//	message. Internal kinds (embedding, cache, blob) collapse to a generic
//	500 so no backend detail or stack ever reaches a client.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "BAD_REQUEST"})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, ErrStorage):
		logger.Error("Storage error", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "storage error", Code: "STORAGE_ERROR"})
	default:
		logger.Error("Internal error", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL_ERROR"})
	}
}

// HandleWrite handles POST /tools/memory.write.
func (h *Handlers) HandleWrite(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleWrite")

	var in MemoryWriteIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}

	out, err := h.api.WriteMemory(c.Request.Context(), in)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("memory write",
		slog.String("tenant_id", in.TenantID),
		slog.String("memory_id", out.ID),
		slog.String("kind", out.Kind))
	c.JSON(http.StatusOK, out)
}

// HandleSearch handles POST /tools/memory.search.
func (h *Handlers) HandleSearch(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleSearch")

	var in MemorySearchIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}

	results, err := h.api.SearchMemory(c.Request.Context(), in)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	if results == nil {
		results = []MemoryOut{}
	}

	logger.Info("memory search",
		slog.String("tenant_id", in.TenantID),
		slog.Int("results", len(results)))
	c.JSON(http.StatusOK, results)
}

// HandleGet handles POST /tools/memory.get.
func (h *Handlers) HandleGet(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleGet")

	var in MemoryGetIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}

	out, err := h.api.GetMemory(c.Request.Context(), in)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// HandleLink handles POST /tools/memory.link.
func (h *Handlers) HandleLink(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleLink")

	var in MemoryLinkIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}

	out, err := h.api.CreateLink(c.Request.Context(), in)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// HandleSummarizeScope handles POST /tools/memory.summarize_scope.
func (h *Handlers) HandleSummarizeScope(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleSummarizeScope")

	var in SummarizeScopeIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}

	out, err := h.api.SummarizeScope(c.Request.Context(), in)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("scope summarized",
		slog.String("tenant_id", in.TenantID),
		slog.String("summary_id", out.ID))
	c.JSON(http.StatusOK, out)
}

// HandleAttachBlob handles POST /tools/memory.attach_blob.
func (h *Handlers) HandleAttachBlob(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleAttachBlob")

	var in AttachBlobIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}

	out, err := h.api.AttachBlob(c.Request.Context(), in)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// HandleFetchBlob handles POST /tools/memory.fetch_blob.
func (h *Handlers) HandleFetchBlob(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleFetchBlob")

	var in FetchBlobIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}

	out, err := h.api.FetchBlob(c.Request.Context(), in)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	out, err := h.api.Health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, out)
		return
	}
	c.JSON(http.StatusOK, out)
}

// HandleStats handles GET /stats/:tenant.
func (h *Handlers) HandleStats(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleStats")

	stats, err := h.api.Stats(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
