// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rediscache is the working-set and search-result cache of the
// memory service.
//
// Everything here is advisory: the durable store stays authoritative, and a
// missing or stale cache entry never changes the correctness of a write or
// search. Keys are prefixed for scannability:
//
//	mem:ws:{tenant}:{scope}              working-set list
//	mem:sc:{tenant}:{scope}:{fingerprint} search-result cache
//	mem:stats:*                          counters (24h TTL)
package rediscache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/config"
	"github.com/redis/go-redis/v9"
)

// counterTTL bounds every stats counter.
const counterTTL = 24 * time.Hour

// invalidateScanCount is the SCAN batch size used during invalidation; small
// enough to never block the single-threaded server for long.
const invalidateScanCount = 100

// Cache wraps a shared go-redis client.
//
// Thread Safety: Cache is safe for concurrent use. Multi-step operations use
// a single-connection pipeline so they are atomic with respect to each other.
type Cache struct {
	rdb            *redis.Client
	workingSetTTL  time.Duration
	workingSetMax  int
	searchCacheTTL time.Duration
	logger         *slog.Logger
}

// New parses REDIS_URL and returns a connected cache client. Connectivity is
// verified with a ping so a misconfigured URL fails at startup, not on the
// first request.
func New(ctx context.Context, settings config.Settings, logger *slog.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(settings.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		rdb:            rdb,
		workingSetTTL:  settings.WorkingSetTTL,
		workingSetMax:  settings.WorkingSetMax,
		searchCacheTTL: settings.SearchCacheTTL,
		logger:         logger,
	}, nil
}

// Close releases the client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Ping verifies connectivity. Used by the health endpoint.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// =============================================================================
// Working Set
// =============================================================================

func workingSetKey(tenantID, scopeID string) string {
	return "mem:ws:" + tenantID + ":" + scopeID
}

// PushWorkingSet moves a memory ID to the head of the scope's working set.
//
// Description:
//
//	Remove-existing, prepend, trim to WorkingSetMax, refresh TTL — all four
//	steps run in one pipeline so concurrent pushes to the same key never
//	interleave. Pushing an ID already at the head is a no-op apart from the
//	TTL refresh.
func (c *Cache) PushWorkingSet(ctx context.Context, tenantID, scopeID, memoryID string) error {
	key := workingSetKey(tenantID, scopeID)
	pipe := c.rdb.TxPipeline()
	pipe.LRem(ctx, key, 0, memoryID)
	pipe.LPush(ctx, key, memoryID)
	pipe.LTrim(ctx, key, 0, int64(c.workingSetMax-1))
	pipe.Expire(ctx, key, c.workingSetTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// WorkingSet returns the scope's working-set IDs, most recent first. An
// absent key yields an empty list.
func (c *Cache) WorkingSet(ctx context.Context, tenantID, scopeID string) ([]string, error) {
	return c.rdb.LRange(ctx, workingSetKey(tenantID, scopeID), 0, -1).Result()
}

// =============================================================================
// Search Cache
// =============================================================================

func searchCacheKey(tenantID, scopeID, fingerprint string) string {
	return "mem:sc:" + tenantID + ":" + scopeID + ":" + fingerprint
}

// Fingerprint derives the cache key suffix for a search. Tag and kind order
// is irrelevant: both are sorted before hashing.
func Fingerprint(query string, tags, kinds []string, topK int) string {
	sortedTags := append([]string(nil), tags...)
	sort.Strings(sortedTags)
	sortedKinds := append([]string(nil), kinds...)
	sort.Strings(sortedKinds)

	raw := query + "|" + strings.Join(sortedTags, "|") + "|" + strings.Join(sortedKinds, "|") + "|" + strconv.Itoa(topK)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

// GetSearch returns the cached serialized results for a fingerprint, or
// (nil, false) on a miss. The global hit/miss counters are incremented here
// so every probe is counted exactly once.
func (c *Cache) GetSearch(ctx context.Context, tenantID, scopeID, fingerprint string) ([]byte, bool, error) {
	key := searchCacheKey(tenantID, scopeID, fingerprint)
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.incrCounter(ctx, "mem:stats:search_cache_misses")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	c.logger.Debug("Search cache hit", slog.String("key", key))
	c.incrCounter(ctx, "mem:stats:search_cache_hits")
	return val, true, nil
}

// SetSearch stores serialized results under the fingerprint with the search
// cache TTL.
func (c *Cache) SetSearch(ctx context.Context, tenantID, scopeID, fingerprint string, payload []byte) error {
	return c.rdb.Set(ctx, searchCacheKey(tenantID, scopeID, fingerprint), payload, c.searchCacheTTL).Err()
}

// InvalidateScope deletes every cached search of a scope.
//
// Description:
//
//	Uses incremental SCAN rather than KEYS so invalidation never blocks the
//	cache for long. Invalidation is best-effort and unordered with respect
//	to writes from other servers; stale hits within one TTL are permitted.
func (c *Cache) InvalidateScope(ctx context.Context, tenantID, scopeID string) error {
	pattern := searchCacheKey(tenantID, scopeID, "*")
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, invalidateScanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// =============================================================================
// Observability Counters
// =============================================================================

func (c *Cache) incrCounter(ctx context.Context, key string) {
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Counter increment failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// RecordWrite increments the tenant's write counter.
func (c *Cache) RecordWrite(ctx context.Context, tenantID string) {
	c.incrCounter(ctx, "mem:stats:writes:"+tenantID)
}

// RecordSearch increments the tenant's search counter.
func (c *Cache) RecordSearch(ctx context.Context, tenantID string) {
	c.incrCounter(ctx, "mem:stats:searches:"+tenantID)
}

// RecordDedupeHit increments the tenant's dedupe counter.
func (c *Cache) RecordDedupeHit(ctx context.Context, tenantID string) {
	c.incrCounter(ctx, "mem:stats:dedupes:"+tenantID)
}

// Stats returns the tenant's counters plus the global search-cache
// hit/miss totals. Missing counters read as zero.
func (c *Cache) Stats(ctx context.Context, tenantID string) (map[string]int64, error) {
	keys := []string{
		"mem:stats:writes:" + tenantID,
		"mem:stats:searches:" + tenantID,
		"mem:stats:dedupes:" + tenantID,
		"mem:stats:search_cache_hits",
		"mem:stats:search_cache_misses",
	}
	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	names := []string{"writes", "searches", "dedupes", "search_cache_hits", "search_cache_misses"}
	stats := make(map[string]int64, len(names))
	for i, name := range names {
		stats[name] = parseCounter(values[i])
	}
	return stats, nil
}

func parseCounter(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
