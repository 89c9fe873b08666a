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
	"crypto/sha512"
	"encoding/binary"
	"math"
)

// StubProvider produces deterministic hash-based vectors.
//
// Description:
//
//	The input text is hashed with SHA-512; the digest bytes are repeated to
//	fill dim*4 bytes, reinterpreted as dim little-endian float32 values, and
//	normalized to unit length. Same text always yields the byte-identical
//	vector, which makes retrieval tests reproducible without an external
//	API. NOT suitable for production retrieval quality.
//
// Thread Safety: StubProvider is stateless and safe for concurrent use.
type StubProvider struct {
	dim int
}

// NewStubProvider creates a stub provider of the given dimension.
func NewStubProvider(dim int) *StubProvider {
	return &StubProvider{dim: dim}
}

// Dim returns the vector dimension.
func (p *StubProvider) Dim() int {
	return p.dim
}

// Embed implements Provider. It never fails and ignores ctx beyond the
// signature contract.
func (p *StubProvider) Embed(_ context.Context, text string) ([]float32, error) {
	digest := sha512.Sum512([]byte(text))

	need := p.dim * 4
	expanded := make([]byte, 0, need+len(digest))
	for len(expanded) < need {
		expanded = append(expanded, digest[:]...)
	}

	vec := make([]float32, p.dim)
	var sumSquares float64
	for i := range vec {
		bits := binary.LittleEndian.Uint32(expanded[i*4 : i*4+4])
		f := math.Float32frombits(bits)
		vec[i] = f
		sumSquares += float64(f) * float64(f)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / magnitude)
	}
	return vec, nil
}
