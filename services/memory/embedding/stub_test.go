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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubDeterministic(t *testing.T) {
	p := NewStubProvider(1536)

	a, err := p.Embed(context.Background(), "playwright headless Chrome dependencies")
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "playwright headless Chrome dependencies")
	require.NoError(t, err)

	require.Len(t, a, 1536)
	assert.Equal(t, a, b)
}

func TestStubUnitNorm(t *testing.T) {
	p := NewStubProvider(1536)

	texts := []string{
		"hello",
		"Fixed Playwright headless Chrome by installing missing system dependencies.",
		"docker push fix Resolved push stall by increasing client timeout.",
		"The quick brown fox",
	}
	for _, text := range texts {
		vec, err := p.Embed(context.Background(), text)
		require.NoError(t, err)

		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6, text)
	}
}

func TestStubDistinctTexts(t *testing.T) {
	p := NewStubProvider(64)

	a, err := p.Embed(context.Background(), "first")
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "second")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestStubSmallDimension(t *testing.T) {
	// Dimensions needing fewer than 64 bytes (dim < 16) use a prefix of the
	// digest; larger ones repeat it. Both must still fill exactly dim floats.
	for _, dim := range []int{8, 16, 32, 384} {
		p := NewStubProvider(dim)
		vec, err := p.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Len(t, vec, dim)
	}
}
