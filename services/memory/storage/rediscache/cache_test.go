// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rediscache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("playwright headless", []string{"a", "b"}, []string{"task_outcome"}, 5)
	b := Fingerprint("playwright headless", []string{"b", "a"}, []string{"task_outcome"}, 5)
	assert.Equal(t, a, b, "tag order must not change the fingerprint")
	assert.Len(t, a, 16)

	// Pinned so cache keys stay compatible across releases.
	assert.Equal(t, "e7b3c597562352bc", a)
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Fingerprint("q", []string{"a"}, nil, 10)
	assert.NotEqual(t, base, Fingerprint("q2", []string{"a"}, nil, 10))
	assert.NotEqual(t, base, Fingerprint("q", []string{"b"}, nil, 10))
	assert.NotEqual(t, base, Fingerprint("q", []string{"a"}, []string{"summary"}, 10))
	assert.NotEqual(t, base, Fingerprint("q", []string{"a"}, nil, 20))
}

func TestFingerprintDoesNotMutateInputs(t *testing.T) {
	tags := []string{"z", "a"}
	Fingerprint("q", tags, nil, 10)
	assert.Equal(t, []string{"z", "a"}, tags)
}

// newTestCache connects to MEMORY_TEST_REDIS_URL or skips.
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	url := os.Getenv("MEMORY_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MEMORY_TEST_REDIS_URL not set; skipping redis integration test")
	}

	settings := config.Load()
	settings.RedisURL = url
	settings.WorkingSetMax = 3
	settings.SearchCacheTTL = time.Minute

	cache, err := New(context.Background(), settings, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestWorkingSetPushIdempotent(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	tenant := fmt.Sprintf("t-ws-%d", time.Now().UnixNano())

	for i := 0; i < 3; i++ {
		require.NoError(t, cache.PushWorkingSet(ctx, tenant, "sc_x", "mem_a"))
	}
	ids, err := cache.WorkingSet(ctx, tenant, "sc_x")
	require.NoError(t, err)
	assert.Equal(t, []string{"mem_a"}, ids, "repeated pushes keep one occurrence at the head")
}

func TestWorkingSetOrderAndTrim(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	tenant := fmt.Sprintf("t-ws-%d", time.Now().UnixNano())

	for _, id := range []string{"mem_a", "mem_b", "mem_c", "mem_d"} {
		require.NoError(t, cache.PushWorkingSet(ctx, tenant, "sc_x", id))
	}
	ids, err := cache.WorkingSet(ctx, tenant, "sc_x")
	require.NoError(t, err)
	assert.Equal(t, []string{"mem_d", "mem_c", "mem_b"}, ids, "trimmed to WorkingSetMax, newest first")

	// Re-pushing an old member moves it to the head.
	require.NoError(t, cache.PushWorkingSet(ctx, tenant, "sc_x", "mem_b"))
	ids, err = cache.WorkingSet(ctx, tenant, "sc_x")
	require.NoError(t, err)
	assert.Equal(t, "mem_b", ids[0])
}

func TestSearchCacheRoundTripAndInvalidate(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	tenant := fmt.Sprintf("t-sc-%d", time.Now().UnixNano())
	fp := Fingerprint("query", nil, nil, 10)

	_, hit, err := cache.GetSearch(ctx, tenant, "sc_x", fp)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.SetSearch(ctx, tenant, "sc_x", fp, []byte(`[{"id":"mem_a"}]`)))

	payload, hit, err := cache.GetSearch(ctx, tenant, "sc_x", fp)
	require.NoError(t, err)
	require.True(t, hit)
	assert.JSONEq(t, `[{"id":"mem_a"}]`, string(payload))

	// Invalidation clears every fingerprint of the scope but not others.
	other := Fingerprint("another query", nil, nil, 10)
	require.NoError(t, cache.SetSearch(ctx, tenant, "sc_x", other, []byte(`[]`)))
	require.NoError(t, cache.SetSearch(ctx, tenant, "sc_y", fp, []byte(`[]`)))

	require.NoError(t, cache.InvalidateScope(ctx, tenant, "sc_x"))

	_, hit, err = cache.GetSearch(ctx, tenant, "sc_x", fp)
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = cache.GetSearch(ctx, tenant, "sc_x", other)
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = cache.GetSearch(ctx, tenant, "sc_y", fp)
	require.NoError(t, err)
	assert.True(t, hit, "sibling scope survives invalidation")
}

func TestCounters(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	tenant := fmt.Sprintf("t-stats-%d", time.Now().UnixNano())

	cache.RecordWrite(ctx, tenant)
	cache.RecordWrite(ctx, tenant)
	cache.RecordSearch(ctx, tenant)
	cache.RecordDedupeHit(ctx, tenant)

	stats, err := cache.Stats(ctx, tenant)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats["writes"])
	assert.EqualValues(t, 1, stats["searches"])
	assert.EqualValues(t, 1, stats["dedupes"])
}
