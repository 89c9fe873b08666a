// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command memoryjobs runs the memory lifecycle jobs on demand.
//
// Intended to be invoked from cron or a scheduler, once per tenant:
//
//	memoryjobs summarize --tenant t1 --mode brief
//	memoryjobs promote --tenant t1 --min-references 3
//	memoryjobs prune --tenant t1 --older-than-days 30
//
// Jobs for distinct tenants may run concurrently; never run two instances
// for the same tenant at once.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/AleutianMemory/services/memory/config"
	"github.com/AleutianAI/AleutianMemory/services/memory/embedding"
	"github.com/AleutianAI/AleutianMemory/services/memory/jobs"
	"github.com/AleutianAI/AleutianMemory/services/memory/storage/postgres"
	"github.com/AleutianAI/AleutianMemory/services/memory/storage/rediscache"
	"github.com/spf13/cobra"
)

var (
	flagTenant        string
	flagMode          string
	flagMaxEntries    int
	flagMinReferences int
	flagLookbackDays  int
	flagOlderThanDays int
)

// newRunner builds the shared job dependencies from the environment.
func newRunner(ctx context.Context) (*jobs.Runner, func(), error) {
	settings := config.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: settings.LogLevel,
	})))

	store, err := postgres.New(ctx, settings, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	cache, err := rediscache.New(ctx, settings, slog.Default())
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	embedder, err := embedding.NewProvider(settings)
	if err != nil {
		store.Close()
		_ = cache.Close()
		return nil, nil, err
	}

	cleanup := func() {
		store.Close()
		_ = cache.Close()
	}
	return jobs.NewRunner(store, cache, embedder, slog.Default()), cleanup, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "memoryjobs",
		Short:         "Run memory service lifecycle jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagTenant, "tenant", "", "Tenant to run the job for (required)")
	_ = root.MarkPersistentFlagRequired("tenant")

	summarize := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize active scopes into durable summary entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, cleanup, err := newRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ids, err := runner.SummarizeActiveScopes(cmd.Context(), flagTenant, flagMaxEntries, flagMode)
			if err != nil {
				return err
			}
			fmt.Printf("created %d summaries\n", len(ids))
			return nil
		},
	}
	summarize.Flags().StringVar(&flagMode, "mode", "brief", "Summary mode: brief or full")
	summarize.Flags().IntVar(&flagMaxEntries, "max-entries", jobs.DefaultMaxEntries, "Max entries per scope")

	promote := &cobra.Command{
		Use:   "promote",
		Short: "Tag frequently referenced task outcomes as promoted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, cleanup, err := newRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ids, err := runner.PromoteHighValueMemories(cmd.Context(), flagTenant, flagMinReferences, flagLookbackDays)
			if err != nil {
				return err
			}
			fmt.Printf("promoted %d entries\n", len(ids))
			return nil
		},
	}
	promote.Flags().IntVar(&flagMinReferences, "min-references", jobs.DefaultMinReferences, "Minimum inbound links")
	promote.Flags().IntVar(&flagLookbackDays, "lookback-days", jobs.DefaultLookbackDays, "Candidate window in days")

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete old non-promoted chat turns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, cleanup, err := newRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			results, err := runner.PruneOldChatTurns(cmd.Context(), flagTenant, flagOlderThanDays)
			if err != nil {
				return err
			}
			var total int64
			for _, n := range results {
				total += n
			}
			fmt.Printf("deleted %d chat turns across %d scopes\n", total, len(results))
			return nil
		},
	}
	prune.Flags().IntVar(&flagOlderThanDays, "older-than-days", jobs.DefaultPruneDays, "Age threshold in days")

	root.AddCommand(summarize, promote, prune)

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("Job failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
