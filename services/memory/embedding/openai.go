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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/config"
	"github.com/cenkalti/backoff/v4"
)

// =============================================================================
// OpenAI Wire Types
// =============================================================================

const defaultOpenAIEmbedURL = "https://api.openai.com/v1/embeddings"

// openaiEmbedMaxInput is the input character safeguard for the embeddings
// endpoint. Longer inputs are truncated, not rejected.
const openaiEmbedMaxInput = 8191

// openaiEmbedTimeout bounds a single embeddings call.
const openaiEmbedTimeout = 30 * time.Second

// openaiEmbedMaxRetries caps retries of transient failures.
const openaiEmbedMaxRetries = 3

type openaiEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *openaiEmbedError `json:"error,omitempty"`
}

type openaiEmbedError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OpenAIProvider calls the OpenAI embeddings REST API directly without a
// third-party SDK.
//
// Description:
//
//	Transient failures (network errors, HTTP 5xx, 429) are retried with
//	exponential backoff up to openaiEmbedMaxRetries times. Client errors
//	(other 4xx) fail immediately.
//
// Thread Safety: OpenAIProvider is safe for concurrent use.
type OpenAIProvider struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	dim        int
}

// NewOpenAIProvider creates a provider from settings.
//
// Outputs:
//   - *OpenAIProvider: the configured provider.
//   - error: non-nil if the API key is missing.
func NewOpenAIProvider(settings config.Settings) (*OpenAIProvider, error) {
	if settings.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider")
	}
	return &OpenAIProvider{
		httpClient: &http.Client{Timeout: openaiEmbedTimeout},
		apiKey:     settings.OpenAIAPIKey,
		model:      settings.OpenAIEmbedModel,
		baseURL:    defaultOpenAIEmbedURL,
		dim:        settings.EmbedDim,
	}, nil
}

// Dim returns the configured vector dimension.
func (p *OpenAIProvider) Dim() int {
	return p.dim
}

// Embed implements Provider against the OpenAI embeddings endpoint.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if runes := []rune(text); len(runes) > openaiEmbedMaxInput {
		text = string(runes[:openaiEmbedMaxInput])
	}

	body, err := json.Marshal(openaiEmbedRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	var vec []float32
	operation := func() error {
		v, err := p.embedOnce(ctx, body)
		if err != nil {
			return err
		}
		vec = v
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), openaiEmbedMaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return vec, nil
}

func (p *OpenAIProvider) embedOnce(ctx context.Context, body []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build embed request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embeddings response: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("embeddings API status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("embeddings API status %d: %s", resp.StatusCode, truncateForLog(respBody)))
	}

	var parsed openaiEmbedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode embeddings response: %w", err))
	}
	if parsed.Error != nil {
		return nil, backoff.Permanent(fmt.Errorf("embeddings API error: %s", parsed.Error.Message))
	}
	if len(parsed.Data) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("embeddings API returned no data"))
	}
	return parsed.Data[0].Embedding, nil
}

func truncateForLog(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
