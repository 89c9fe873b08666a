// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package blob

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalStore(t *testing.T) *Store {
	t.Helper()
	settings := config.Load()
	settings.BlobEndpointURL = ""
	settings.BlobLocalDir = t.TempDir()
	store, err := New(settings, slog.Default())
	require.NoError(t, err)
	return store
}

func TestMakeKey(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"plain", "deploy.log", "t1/mem_abc/deploy.log"},
		{"forward slash", "a/b.log", "t1/mem_abc/a_b.log"},
		{"backslash", `a\b.log`, "t1/mem_abc/a_b.log"},
		{"mixed", `a/b\c.log`, "t1/mem_abc/a_b_c.log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MakeKey("t1", "mem_abc", tt.filename))
		})
	}
}

func TestLocalPutGetRoundTrip(t *testing.T) {
	store := newLocalStore(t)
	ctx := context.Background()

	payload := []byte("This is a test log.")
	key := MakeKey("t1", "mem_abc", "deploy.log")

	returned, err := store.Put(ctx, key, payload, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, key, returned)

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestLocalGetMissingIsNil(t *testing.T) {
	store := newLocalStore(t)
	got, err := store.Get(context.Background(), "t1/mem_missing/none.bin")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLocalPresignUnsupported(t *testing.T) {
	store := newLocalStore(t)
	url, err := store.Presign(context.Background(), "t1/mem_abc/deploy.log", time.Hour)
	require.NoError(t, err)
	assert.Empty(t, url, "local mode has no presigning; callers fall back to inline bytes")
}

func TestSplitEndpoint(t *testing.T) {
	host, secure, err := splitEndpoint("https://s3.example.com:9000")
	require.NoError(t, err)
	assert.Equal(t, "s3.example.com:9000", host)
	assert.True(t, secure)

	host, secure, err = splitEndpoint("http://localhost:9000")
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)

	_, _, err = splitEndpoint("not a url")
	assert.Error(t, err)
}
