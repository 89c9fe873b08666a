// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command memory starts the Aleutian Memory API server.
//
// Aleutian Memory is the long-term memory service for autonomous agents:
//   - Typed knowledge entries scoped to hierarchical contexts
//   - Content-addressed deduplication with co-persisted embeddings
//   - Hybrid vector+trigram retrieval with a Redis result cache
//   - Blob attachments with presigned downloads
//
// Usage:
//
//	go run ./cmd/memory
//	PORT=9090 go run ./cmd/memory
//
// With real embeddings:
//
//	EMBED_PROVIDER=openai OPENAI_API_KEY=sk-... go run ./cmd/memory
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8000/health
//
//	# Write a memory entry
//	curl -X POST http://localhost:8000/tools/memory.write \
//	  -H "Content-Type: application/json" \
//	  -d '{"tenant_id": "t1", "scope": {"channel_id": "c1"}, "kind": "task_outcome", "title": "docker push fix", "content": "Resolved push stall by increasing client timeout.", "tags": ["docker", "infra"]}'
//
//	# Search it back
//	curl -X POST http://localhost:8000/tools/memory.search \
//	  -H "Content-Type: application/json" \
//	  -d '{"tenant_id": "t1", "scope_filter": {"channel_id": "c1"}, "query": "docker push stall", "top_k": 5}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory"
	"github.com/AleutianAI/AleutianMemory/services/memory/config"
	"github.com/AleutianAI/AleutianMemory/services/memory/embedding"
	"github.com/AleutianAI/AleutianMemory/services/memory/storage/blob"
	"github.com/AleutianAI/AleutianMemory/services/memory/storage/postgres"
	"github.com/AleutianAI/AleutianMemory/services/memory/storage/rediscache"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds graceful drain on SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

func main() {
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	settings := config.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: settings.LogLevel,
	})))

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so gateway trace IDs flow through the
	// tool handlers.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting Aleutian Memory server")

	store, err := postgres.New(ctx, settings, slog.Default())
	if err != nil {
		slog.Error("Failed to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx, settings.MigrationsDir); err != nil {
		slog.Error("Failed to apply schema", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cache, err := rediscache.New(ctx, settings, slog.Default())
	if err != nil {
		slog.Error("Failed to connect to redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cache.Close()

	blobs, err := blob.New(settings, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize blob store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	embedder, err := embedding.NewProvider(settings)
	if err != nil {
		slog.Error("Failed to initialize embedding provider", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("Embedding provider ready",
		slog.String("provider", settings.EmbedProvider),
		slog.Int("dim", embedder.Dim()))

	svc := memory.NewService(store, cache, blobs, embedder, settings, slog.Default())
	handlers := memory.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-memory"))
	router.Use(memory.AuditMiddleware())
	if *debug {
		router.Use(gin.Logger())
	}
	memory.RegisterRoutes(router, handlers)

	servers := []*http.Server{{
		Addr:    fmt.Sprintf("%s:%d", settings.Host, settings.Port),
		Handler: router,
	}}

	if settings.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, &http.Server{
			Addr:    fmt.Sprintf("%s:%d", settings.Host, settings.MetricsPort),
			Handler: mux,
		})
	} else {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			slog.Info("Listening", slog.String("address", srv.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down Aleutian Memory server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("Server shutdown failed", slog.String("error", err.Error()))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("Aleutian Memory server stopped")
}
