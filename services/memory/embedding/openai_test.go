// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/AleutianAI/AleutianMemory/services/memory/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedServer returns a fixed 4-dim vector and optionally fails the first
// failFirst requests with HTTP 500 to exercise the retry path.
func mockEmbedServer(t *testing.T, failFirst int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if int(n) <= failFirst {
			http.Error(w, "transient", http.StatusInternalServerError)
			return
		}

		var req openaiEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		resp := map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.5, 0.5, 0.5, 0.5}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	return srv, &calls
}

func newTestProvider(t *testing.T, baseURL string) *OpenAIProvider {
	t.Helper()
	settings := config.Load()
	settings.OpenAIAPIKey = "test-key"
	settings.EmbedDim = 4
	p, err := NewOpenAIProvider(settings)
	require.NoError(t, err)
	p.baseURL = baseURL
	return p
}

func TestOpenAIEmbed(t *testing.T) {
	srv, _ := mockEmbedServer(t, 0)
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	vec, err := p.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, vec)
}

func TestOpenAIEmbedRetriesTransientFailures(t *testing.T) {
	srv, calls := mockEmbedServer(t, 2)
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load())
}

func TestOpenAIEmbedClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"bad input"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.Embed(context.Background(), "hello world")
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load(), "4xx must not be retried")
}

func TestOpenAIEmbedTruncatesLongInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, []rune(req.Input), openaiEmbedMaxInput)
		resp := map[string]any{"data": []map[string]any{{"embedding": []float32{1, 0, 0, 0}}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.Embed(context.Background(), strings.Repeat("x", openaiEmbedMaxInput+500))
	require.NoError(t, err)
}

func TestNewOpenAIProviderRequiresKey(t *testing.T) {
	settings := config.Load()
	settings.OpenAIAPIKey = ""
	_, err := NewOpenAIProvider(settings)
	require.Error(t, err)
}

func TestNewProviderFactory(t *testing.T) {
	settings := config.Load()
	settings.EmbedProvider = config.EmbedProviderStub
	settings.EmbedDim = 16

	p, err := NewProvider(settings)
	require.NoError(t, err)
	assert.Equal(t, 16, p.Dim())

	settings.EmbedProvider = "mystery"
	_, err = NewProvider(settings)
	require.Error(t, err)
}
