// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package embedding turns text into fixed-dimension unit-norm vectors.
//
// Two providers are supported:
//
//   - "stub": deterministic hash expansion, for dev and tests. Same text
//     always produces the byte-identical vector.
//   - "openai": the OpenAI embeddings REST API via raw net/http, with
//     exponential-backoff retries on transient failures.
package embedding

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianMemory/services/memory/config"
)

// Provider generates an embedding vector for a piece of text.
//
// Description:
//
//	Embed is blocking I/O from the caller's point of view and must honor
//	context cancellation. The returned vector has exactly Dim() elements.
//
// Thread Safety: implementations are safe for concurrent use.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// NewProvider builds the provider selected by settings.
//
// Outputs:
//   - Provider: the configured provider.
//   - error: non-nil when the provider name is unknown, or when the openai
//     provider is selected without an API key.
func NewProvider(settings config.Settings) (Provider, error) {
	switch settings.EmbedProvider {
	case config.EmbedProviderOpenAI:
		return NewOpenAIProvider(settings)
	case config.EmbedProviderStub:
		return NewStubProvider(settings.EmbedDim), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", settings.EmbedProvider)
	}
}
