// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memory is the long-term memory service for autonomous agents.
//
// Clients persist typed knowledge entries scoped to hierarchical contexts and
// retrieve them via hybrid semantic+lexical search. The Service type
// orchestrates the write path (normalize, hash, embed, store, cache update)
// and the search path (cache probe, embed, hybrid query, cache fill) over the
// durable store, the Redis cache, the blob store, and the embedding provider.
package memory

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/config"
	"github.com/AleutianAI/AleutianMemory/services/memory/datatypes"
	"github.com/AleutianAI/AleutianMemory/services/memory/embedding"
	"github.com/AleutianAI/AleutianMemory/services/memory/identity"
	"github.com/AleutianAI/AleutianMemory/services/memory/storage/blob"
	"github.com/AleutianAI/AleutianMemory/services/memory/storage/postgres"
	"github.com/AleutianAI/AleutianMemory/services/memory/storage/rediscache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const tracerName = "aleutian.memory"

// defaultTopK is the search result limit when the request omits top_k.
const defaultTopK = 10

// presignExpiry bounds presigned download URLs.
const presignExpiry = time.Hour

// Service wires the storage backends and the embedding provider into the
// tool operations.
//
// Thread Safety: Service is safe for concurrent use; the only shared state
// is the pool and client handles it holds.
type Service struct {
	store    *postgres.Store
	cache    *rediscache.Cache
	blobs    *blob.Store
	embedder embedding.Provider
	settings config.Settings
	logger   *slog.Logger
}

// NewService builds a Service from its collaborators.
func NewService(
	store *postgres.Store,
	cache *rediscache.Cache,
	blobs *blob.Store,
	embedder embedding.Provider,
	settings config.Settings,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		cache:    cache,
		blobs:    blobs,
		embedder: embedder,
		settings: settings,
		logger:   logger,
	}
}

// embed calls the provider with timing metrics and wraps failures as
// ErrEmbedding.
func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := s.embedder.Embed(ctx, text)
	embedLatencySeconds.WithLabelValues(s.settings.EmbedProvider).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	return vec, nil
}

// persistEntry runs steps 1-5 of the write contract: ensure tenant, resolve
// scope, hash, embed, transactional write. Cache side effects are the
// caller's concern because they differ between the write endpoint, the
// summarize endpoint, and the jobs.
func (s *Service) persistEntry(
	ctx context.Context,
	tenantID string,
	scope datatypes.Scope,
	kind string,
	title *string,
	content string,
	tags []string,
	source, authorAgentID, toolName *string,
) (datatypes.MemoryEntry, string, error) {
	if err := s.store.EnsureTenant(ctx, tenantID); err != nil {
		return datatypes.MemoryEntry{}, "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	scopeID, err := s.store.GetOrCreateScope(ctx, tenantID, scope)
	if err != nil {
		return datatypes.MemoryEntry{}, "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	titleStr := ""
	if title != nil {
		titleStr = *title
	}
	contentHash := identity.ContentHash(kind, titleStr, content)

	vec, err := s.embed(ctx, titleStr+" "+content)
	if err != nil {
		return datatypes.MemoryEntry{}, "", err
	}

	entry, err := s.store.WriteMemory(ctx, postgres.WriteParams{
		TenantID:      tenantID,
		ScopeID:       scopeID,
		Kind:          kind,
		Title:         title,
		Content:       content,
		Tags:          tags,
		Source:        source,
		AuthorAgentID: authorAgentID,
		ToolName:      toolName,
		ContentHash:   contentHash,
		Embedding:     vec,
	})
	if err != nil {
		return datatypes.MemoryEntry{}, "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return entry, scopeID, nil
}

// WriteMemory persists one entry with its embedding. Idempotent via the
// content-hash dedupe: re-writing identical content returns the same ID and
// only touches updated_at.
func (s *Service) WriteMemory(ctx context.Context, in MemoryWriteIn) (MemoryOut, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "memory.write")
	defer span.End()
	span.SetAttributes(attribute.String("tenant_id", in.TenantID), attribute.String("kind", in.Kind))

	if !datatypes.ValidKind(in.Kind) {
		return MemoryOut{}, fmt.Errorf("%w: unknown kind %q", ErrBadRequest, in.Kind)
	}

	entry, scopeID, err := s.persistEntry(ctx, in.TenantID, in.Scope, in.Kind,
		in.Title, in.Content, in.Tags, in.Source, in.AuthorAgentID, in.ToolName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return MemoryOut{}, err
	}

	// Cache updates are best-effort: a cache outage must not fail a durable
	// write that already committed.
	if err := s.cache.PushWorkingSet(ctx, in.TenantID, scopeID, entry.ID); err != nil {
		s.logger.Warn("Working set push failed", slog.String("error", err.Error()))
	}
	if err := s.cache.InvalidateScope(ctx, in.TenantID, scopeID); err != nil {
		s.logger.Warn("Search cache invalidation failed", slog.String("error", err.Error()))
	}
	s.cache.RecordWrite(ctx, in.TenantID)
	if entry.UpdatedAt.After(entry.CreatedAt) {
		s.cache.RecordDedupeHit(ctx, in.TenantID)
	}

	return entryToOut(entry, nil), nil
}

// SearchMemory runs the hybrid retrieval path with the search-result cache
// in front.
//
// Description:
//
//	The tenant and scope rows are upserted before the cache probe; a cache
//	hit then skips the embedding provider and the hybrid query. There
//	is no read-your-writes guarantee while the cache is warm: stale hits up
//	to one SearchCacheTTL window are possible. Callers that need
//	read-your-writes use PreflightSearch instead.
func (s *Service) SearchMemory(ctx context.Context, in MemorySearchIn) ([]MemoryOut, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "memory.search")
	defer span.End()
	span.SetAttributes(attribute.String("tenant_id", in.TenantID))

	if in.TopK <= 0 {
		in.TopK = defaultTopK
	}

	if err := s.store.EnsureTenant(ctx, in.TenantID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	scopeID, err := s.store.GetOrCreateScope(ctx, in.TenantID, in.ScopeFilter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	fingerprint := rediscache.Fingerprint(in.Query, in.Tags, in.Kinds, in.TopK)
	if payload, hit, err := s.cache.GetSearch(ctx, in.TenantID, scopeID, fingerprint); err != nil {
		s.logger.Warn("Search cache probe failed", slog.String("error", err.Error()))
	} else if hit {
		var cached []MemoryOut
		if uerr := json.Unmarshal(payload, &cached); uerr == nil {
			searchCacheTotal.WithLabelValues("hit").Inc()
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return cached, nil
		} else {
			s.logger.Warn("Search cache payload corrupt, falling through", slog.String("error", uerr.Error()))
		}
	}
	searchCacheTotal.WithLabelValues("miss").Inc()

	qvec, err := s.embed(ctx, in.Query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rows, err := s.store.SearchMemory(ctx, in.TenantID, scopeID, qvec, in.Query, in.TopK, postgres.SearchFilters{
		Kinds:          in.Kinds,
		Tags:           in.Tags,
		TimeRangeStart: in.TimeRangeStart,
		TimeRangeEnd:   in.TimeRangeEnd,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	results := make([]MemoryOut, 0, len(rows))
	for _, r := range rows {
		score := r.Score
		results = append(results, entryToOut(r.MemoryEntry, &score))
	}

	if payload, err := json.Marshal(results); err == nil {
		if err := s.cache.SetSearch(ctx, in.TenantID, scopeID, fingerprint, payload); err != nil {
			s.logger.Warn("Search cache fill failed", slog.String("error", err.Error()))
		}
	}
	s.cache.RecordSearch(ctx, in.TenantID)

	return results, nil
}

// GetMemory fetches the full entry view: row, attachments, links in both
// directions.
func (s *Service) GetMemory(ctx context.Context, in MemoryGetIn) (MemoryGetOut, error) {
	entry, err := s.store.GetMemory(ctx, in.TenantID, in.MemoryID)
	if errors.Is(err, postgres.ErrNotFound) {
		return MemoryGetOut{}, fmt.Errorf("%w: memory entry not found", ErrNotFound)
	}
	if err != nil {
		return MemoryGetOut{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	attachments, err := s.store.GetAttachments(ctx, in.TenantID, in.MemoryID)
	if err != nil {
		return MemoryGetOut{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	linksFrom, err := s.store.GetLinksFrom(ctx, in.TenantID, in.MemoryID)
	if err != nil {
		return MemoryGetOut{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	linksTo, err := s.store.GetLinksTo(ctx, in.TenantID, in.MemoryID)
	if err != nil {
		return MemoryGetOut{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	return MemoryGetOut{
		Entry:       entryToOut(entry, nil),
		Attachments: attachmentsToOut(attachments),
		LinkedFrom:  linksToOut(linksFrom),
		LinkedTo:    linksToOut(linksTo),
	}, nil
}

// CreateLink creates a typed edge between two entries of the tenant. Both
// endpoints must exist under the tenant; re-creating a link returns the
// existing row.
func (s *Service) CreateLink(ctx context.Context, in MemoryLinkIn) (LinkOut, error) {
	if !datatypes.ValidRelation(in.Relation) {
		return LinkOut{}, fmt.Errorf("%w: unknown relation %q", ErrBadRequest, in.Relation)
	}

	if _, err := s.store.GetMemory(ctx, in.TenantID, in.FromMemoryID); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return LinkOut{}, fmt.Errorf("%w: source memory entry not found: %s", ErrNotFound, in.FromMemoryID)
		}
		return LinkOut{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if _, err := s.store.GetMemory(ctx, in.TenantID, in.ToMemoryID); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return LinkOut{}, fmt.Errorf("%w: target memory entry not found: %s", ErrNotFound, in.ToMemoryID)
		}
		return LinkOut{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	link, err := s.store.CreateLink(ctx, in.TenantID, in.FromMemoryID, in.ToMemoryID, in.Relation)
	if err != nil {
		return LinkOut{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return linkToOut(link), nil
}

// SummarizeScope condenses the recent non-summary entries of a scope into a
// new summary entry linked derived_from to each source.
//
// Description:
//
//	Link creation is best-effort and non-atomic with the summary row: a
//	summary without full link coverage is legal, and re-running would not
//	duplicate links thanks to the unique constraint.
func (s *Service) SummarizeScope(ctx context.Context, in SummarizeScopeIn) (MemoryOut, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "memory.summarize_scope")
	defer span.End()

	if in.Mode == "" {
		in.Mode = "brief"
	}
	if in.MaxEntries <= 0 {
		in.MaxEntries = 50
	}

	if err := s.store.EnsureTenant(ctx, in.TenantID); err != nil {
		return MemoryOut{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	scopeID, err := s.store.GetOrCreateScope(ctx, in.TenantID, in.Scope)
	if err != nil {
		return MemoryOut{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// Exclude existing summaries so summaries never summarize themselves.
	entries, err := s.store.GetScopeEntries(ctx, in.TenantID, scopeID, in.MaxEntries, []string{datatypes.KindSummary})
	if err != nil {
		return MemoryOut{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(entries) == 0 {
		return MemoryOut{}, fmt.Errorf("%w: no entries to summarize", ErrNotFound)
	}

	summaryContent := buildScopeSummary(entries, in.Mode)
	title := "scope_summary"
	source := "system"
	summary, _, err := s.persistEntry(ctx, in.TenantID, in.Scope, datatypes.KindSummary,
		&title, summaryContent, []string{"auto_summary", in.Mode}, &source, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return MemoryOut{}, err
	}

	for _, e := range entries {
		if _, err := s.store.CreateLink(ctx, in.TenantID, summary.ID, e.ID, datatypes.RelationDerivedFrom); err != nil {
			// Non-critical: the summary stands without full link coverage.
			s.logger.Warn("Failed to link summary to source entry",
				slog.String("summary_id", summary.ID),
				slog.String("entry_id", e.ID),
				slog.String("error", err.Error()))
		}
	}

	if err := s.cache.InvalidateScope(ctx, in.TenantID, scopeID); err != nil {
		s.logger.Warn("Search cache invalidation failed", slog.String("error", err.Error()))
	}

	return entryToOut(summary, nil), nil
}

// buildScopeSummary renders the endpoint summary text. Brief mode keeps the
// top 20 entries with content previews; full mode keeps everything with
// "---" separators.
func buildScopeSummary(entries []postgres.ScopeEntry, mode string) string {
	if mode == "brief" {
		shown := entries
		if len(shown) > 20 {
			shown = shown[:20]
		}
		lines := make([]string, 0, len(shown))
		for _, e := range shown {
			lines = append(lines, summaryLine(e, 200))
		}
		return fmt.Sprintf("Scope summary (%d entries, showing top %d):\n%s",
			len(entries), len(shown), strings.Join(lines, "\n"))
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, summaryLine(e, 0))
	}
	return fmt.Sprintf("Full scope summary (%d entries):\n%s",
		len(entries), strings.Join(lines, "\n---\n"))
}

// summaryLine renders "[kind] title: content", truncating content to maxLen
// runes when maxLen > 0.
func summaryLine(e postgres.ScopeEntry, maxLen int) string {
	titlePart := ""
	if e.Title != nil && *e.Title != "" {
		titlePart = " " + *e.Title
	}
	content := e.Content
	if maxLen > 0 {
		if runes := []rune(content); len(runes) > maxLen {
			content = string(runes[:maxLen])
		}
	}
	return fmt.Sprintf("[%s]%s: %s", e.Kind, titlePart, content)
}

// AttachBlob uploads a base64 payload to the blob store and records the
// attachment under the entry.
func (s *Service) AttachBlob(ctx context.Context, in AttachBlobIn) (AttachmentOut, error) {
	data, err := base64.StdEncoding.DecodeString(in.DataBase64)
	if err != nil {
		return AttachmentOut{}, fmt.Errorf("%w: invalid base64 data", ErrBadRequest)
	}

	if _, err := s.store.GetMemory(ctx, in.TenantID, in.MemoryID); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return AttachmentOut{}, fmt.Errorf("%w: memory entry not found", ErrNotFound)
		}
		return AttachmentOut{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	key := blob.MakeKey(in.TenantID, in.MemoryID, in.Filename)
	if _, err := s.blobs.Put(ctx, key, data, in.MimeType); err != nil {
		return AttachmentOut{}, fmt.Errorf("%w: %v", ErrBlob, err)
	}

	stored, err := s.store.WriteAttachment(ctx, in.TenantID, datatypes.Attachment{
		ID:       identity.AttachmentID(data),
		MemoryID: in.MemoryID,
		BlobKey:  key,
		Filename: in.Filename,
		MimeType: in.MimeType,
		Bytes:    int64(len(data)),
		SHA256:   identity.SHA256Hex(data),
	})
	if err != nil {
		return AttachmentOut{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return attachmentToOut(stored, nil), nil
}

// FetchBlob returns attachment metadata plus either a presigned download URL
// (S3 mode) or the bytes inline as base64 (local mode).
func (s *Service) FetchBlob(ctx context.Context, in FetchBlobIn) (FetchBlobOut, error) {
	attachment, err := s.store.GetAttachment(ctx, in.TenantID, in.AttachmentID)
	if errors.Is(err, postgres.ErrNotFound) {
		return FetchBlobOut{}, fmt.Errorf("%w: attachment not found", ErrNotFound)
	}
	if err != nil {
		return FetchBlobOut{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	url, err := s.blobs.Presign(ctx, attachment.BlobKey, presignExpiry)
	if err != nil {
		s.logger.Warn("Presign failed, falling back to inline bytes", slog.String("error", err.Error()))
	}
	if url != "" {
		return FetchBlobOut{Attachment: attachmentToOut(attachment, &url)}, nil
	}

	data, err := s.blobs.Get(ctx, attachment.BlobKey)
	if err != nil {
		return FetchBlobOut{}, fmt.Errorf("%w: %v", ErrBlob, err)
	}
	var encoded *string
	if data != nil {
		b64 := base64.StdEncoding.EncodeToString(data)
		encoded = &b64
	}
	return FetchBlobOut{Attachment: attachmentToOut(attachment, nil), DataBase64: encoded}, nil
}

// Stats returns the tenant's observability counters.
func (s *Service) Stats(ctx context.Context, tenantID string) (map[string]int64, error) {
	stats, err := s.cache.Stats(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCache, err)
	}
	return stats, nil
}

// Health pings both backends concurrently and reports per-backend status.
func (s *Service) Health(ctx context.Context) (HealthOut, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.store.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.cache.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return HealthOut{Status: "degraded", Error: err.Error()}, err
	}
	return HealthOut{Status: "ok", Postgres: "ok", Redis: "ok"}, nil
}

// PreflightSearch is the uncached retrieval path used by the gateway's
// preflight context assembly. It embeds the query and hits the durable store
// directly so callers that need read-your-writes skip the search cache.
func (s *Service) PreflightSearch(
	ctx context.Context,
	tenantID string,
	scope datatypes.Scope,
	query string,
	topK int,
	kinds []string,
) ([]MemoryOut, string, error) {
	if err := s.store.EnsureTenant(ctx, tenantID); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	scopeID, err := s.store.GetOrCreateScope(ctx, tenantID, scope)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	qvec, err := s.embed(ctx, query)
	if err != nil {
		return nil, "", err
	}

	rows, err := s.store.SearchMemory(ctx, tenantID, scopeID, qvec, query, topK, postgres.SearchFilters{Kinds: kinds})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	results := make([]MemoryOut, 0, len(rows))
	for _, r := range rows {
		score := r.Score
		results = append(results, entryToOut(r.MemoryEntry, &score))
	}
	s.cache.RecordSearch(ctx, tenantID)
	return results, scopeID, nil
}

// WorkingSet exposes the scope's advisory working-set IDs to the gateway.
func (s *Service) WorkingSet(ctx context.Context, tenantID string, scope datatypes.Scope) ([]string, error) {
	scopeID := identity.ScopeID(tenantID, scope)
	return s.cache.WorkingSet(ctx, tenantID, scopeID)
}
