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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for the Memory Service
// =============================================================================

var (
	// toolCallsTotal counts tool endpoint calls.
	// Labels: tool (memory.write, memory.search, ...), status (HTTP code)
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memory",
		Subsystem: "tools",
		Name:      "calls_total",
		Help:      "Total tool endpoint calls by tool and HTTP status",
	}, []string{"tool", "status"})

	// toolLatencySeconds measures end-to-end tool call latency.
	// Labels: tool
	toolLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "memory",
		Subsystem: "tools",
		Name:      "latency_seconds",
		Help:      "End-to-end tool call latency",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"tool"})

	// searchCacheTotal counts search cache probes.
	// Labels: result (hit, miss)
	searchCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memory",
		Subsystem: "search",
		Name:      "cache_total",
		Help:      "Search cache probes by result",
	}, []string{"result"})

	// embedLatencySeconds measures embedding provider latency.
	// Labels: provider (stub, openai)
	embedLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "memory",
		Subsystem: "embed",
		Name:      "latency_seconds",
		Help:      "Embedding provider call latency",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"provider"})
)
