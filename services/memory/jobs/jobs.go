// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package jobs holds the scheduled lifecycle jobs of the memory service:
// summarize, promote, and prune.
//
// Every job is idempotent under the store's uniqueness constraints and may
// run concurrently only for distinct tenants. Individual item failures are
// logged and skipped; each job emits one summary log line with totals.
package jobs

import (
	"log/slog"

	"github.com/AleutianAI/AleutianMemory/services/memory/embedding"
	"github.com/AleutianAI/AleutianMemory/services/memory/storage/postgres"
	"github.com/AleutianAI/AleutianMemory/services/memory/storage/rediscache"
)

// Default job parameters.
const (
	DefaultMinReferences = 3
	DefaultLookbackDays  = 30
	DefaultPruneDays     = 30
	DefaultMaxEntries    = 50
)

// Runner carries the dependencies of the lifecycle jobs.
type Runner struct {
	Store    *postgres.Store
	Cache    *rediscache.Cache
	Embedder embedding.Provider
	Logger   *slog.Logger
}

// NewRunner builds a Runner.
func NewRunner(store *postgres.Store, cache *rediscache.Cache, embedder embedding.Provider, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Store: store, Cache: cache, Embedder: embedder, Logger: logger}
}
