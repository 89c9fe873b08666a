// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package postgres is the durable store of the memory service.
//
// It owns all transactional persistence (entries, embeddings, links,
// attachments, scopes, tenants) and the hybrid vector+trigram search query.
// Vectors live in a pgvector column; lexical similarity uses pg_trgm. Every
// query carries a tenant predicate so one tenant can never read another's
// rows.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// connectTimeout bounds the initial pool construction and ping.
const connectTimeout = 10 * time.Second

// Store wraps a pgx connection pool with the memory service queries.
//
// Thread Safety: Store is safe for concurrent use; the pool hands one
// connection to each request for the duration of its transaction.
type Store struct {
	pool   *pgxpool.Pool
	dim    int
	logger *slog.Logger
}

// New connects to PostgreSQL, registers the pgvector codec on every
// connection, and verifies connectivity.
//
// Inputs:
//   - settings: pool sizing, DSN, and embedding dimension.
//
// Outputs:
//   - *Store: the connected store.
//   - error: non-nil on DSN parse or connection failure.
func New(ctx context.Context, settings config.Settings, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(settings.PgDSN)
	if err != nil {
		return nil, fmt.Errorf("parse PG_DSN: %w", err)
	}
	cfg.MinConns = settings.PgMinPool
	cfg.MaxConns = settings.PgMaxPool
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, dim: settings.EmbedDim, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies connectivity. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// =============================================================================
// Schema
// =============================================================================

// schemaSQL is the idempotent base schema. The single %[1]d placeholder is
// the embedding dimension; keep any future percent signs out of this string.
const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS tenants (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scopes (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL REFERENCES tenants(id),
	channel_id      TEXT,
	conversation_id TEXT,
	project_id      TEXT,
	task_id         TEXT
);

CREATE TABLE IF NOT EXISTS memory_entries (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL REFERENCES tenants(id),
	scope_id        TEXT NOT NULL REFERENCES scopes(id),
	kind            TEXT NOT NULL,
	title           TEXT,
	content         TEXT NOT NULL,
	tags            TEXT[] NOT NULL DEFAULT '{}',
	source          TEXT,
	author_agent_id TEXT,
	tool_name       TEXT,
	content_hash    TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, scope_id, kind, content_hash)
);

CREATE TABLE IF NOT EXISTS memory_embeddings (
	memory_id TEXT PRIMARY KEY REFERENCES memory_entries(id) ON DELETE CASCADE,
	embedding vector(%[1]d) NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_links (
	id             BIGSERIAL PRIMARY KEY,
	tenant_id      TEXT NOT NULL REFERENCES tenants(id),
	from_memory_id TEXT NOT NULL REFERENCES memory_entries(id) ON DELETE CASCADE,
	to_memory_id   TEXT NOT NULL REFERENCES memory_entries(id) ON DELETE CASCADE,
	relation       TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (from_memory_id, to_memory_id, relation)
);

CREATE TABLE IF NOT EXISTS memory_attachments (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL REFERENCES tenants(id),
	memory_id  TEXT NOT NULL REFERENCES memory_entries(id) ON DELETE CASCADE,
	blob_key   TEXT NOT NULL,
	filename   TEXT NOT NULL,
	mime_type  TEXT NOT NULL,
	bytes      BIGINT NOT NULL,
	sha256     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS memory_entries_scope_created_idx
	ON memory_entries (tenant_id, scope_id, created_at);

CREATE INDEX IF NOT EXISTS memory_entries_tags_idx
	ON memory_entries USING gin (tags);

CREATE INDEX IF NOT EXISTS memory_entries_content_trgm_idx
	ON memory_entries USING gin (content gin_trgm_ops);

CREATE INDEX IF NOT EXISTS memory_entries_title_trgm_idx
	ON memory_entries USING gin (title gin_trgm_ops);

CREATE INDEX IF NOT EXISTS memory_links_to_idx
	ON memory_links (to_memory_id);

CREATE INDEX IF NOT EXISTS memory_attachments_memory_idx
	ON memory_attachments (memory_id);

DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1
		FROM pg_indexes
		WHERE schemaname = current_schema()
			AND indexname = 'memory_embeddings_embedding_idx'
	) THEN
		EXECUTE 'CREATE INDEX memory_embeddings_embedding_idx ON memory_embeddings USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)';
	END IF;
END
$$;
`

// EnsureSchema applies the base schema and then any SQL files in
// migrationsDir in filename order.
//
// Description:
//
//	The base schema is idempotent, so applying it on every startup is safe.
//	The ivfflat index can fail on an empty table with some pgvector builds;
//	that failure is tolerated because the planner falls back to a
//	sequential scan until the index exists.
func (s *Store) EnsureSchema(ctx context.Context, migrationsDir string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(schemaSQL, s.dim)); err != nil {
		if strings.Contains(err.Error(), "ivfflat") {
			s.logger.Warn("Vector index creation deferred", slog.String("error", err.Error()))
		} else {
			return fmt.Errorf("apply base schema: %w", err)
		}
	}
	if migrationsDir == "" {
		return nil
	}
	return s.runMigrations(ctx, migrationsDir)
}

// runMigrations executes every *.sql file in dir in filename order. A missing
// directory is logged and skipped so dev environments need no mount.
func (s *Store) runMigrations(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("Migrations directory not found", slog.String("dir", dir))
		return nil
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		sql, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		s.logger.Info("Running migration", slog.String("file", name))
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	s.logger.Info("Migrations complete", slog.Int("count", len(files)))
	return nil
}
