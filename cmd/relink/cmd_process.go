// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/relink/backup"
	"github.com/AleutianAI/relink/batch"
	"github.com/AleutianAI/relink/lookup"
	"github.com/AleutianAI/relink/rules"
	"github.com/AleutianAI/relink/session"
	"github.com/AleutianAI/relink/validate"
)

func runProcess(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	shutdownTrace, err := initTelemetry(cfg.TraceExporter)
	if err != nil {
		return err
	}
	defer shutdownTrace()

	mgr, err := backup.NewManager(expandHome(cfg.Batch.BackupDir), logger)
	if err != nil {
		return err
	}

	cacheOpts := []lookup.CacheOption{lookup.WithTTL(cfg.CacheTTL())}
	if cfg.Lookup.CacheDir != "" {
		store, err := lookup.OpenPersistentStore(expandHome(cfg.Lookup.CacheDir), logger)
		if err != nil {
			return fmt.Errorf("opening persistent cache: %w", err)
		}
		defer store.Close()
		cacheOpts = append(cacheOpts, lookup.WithPersistentStore(store))
	}
	cache := lookup.NewCache(logger, cacheOpts...)

	client, err := lookup.NewClient(lookup.ClientConfig{
		BaseURL:           cfg.Lookup.BaseURL,
		RequestTimeout:    cfg.RequestTimeout(),
		RequestsPerSecond: cfg.Lookup.RequestsPerSecond,
	}, cache, logger)
	if err != nil {
		return err
	}

	var engineOpts []rules.EngineOption
	if cfg.Batch.TargetURLTemplate != "" {
		engineOpts = append(engineOpts, rules.WithTargetURLTemplate(cfg.Batch.TargetURLTemplate))
	}
	engine := rules.NewEngine(client, logger, engineOpts...)

	processor := batch.NewProcessor(mgr, client, engine, validate.New(logger), logger)

	var ruleset []rules.Rule
	if cfg.Rules.Path != "" {
		ruleset, err = rules.Load(cfg.Rules.Path, logger)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Rules.Path != "" && cfg.Rules.Watch {
		watcher, err := rules.NewWatcher(cfg.Rules.Path, processor.SetRules, nil, logger)
		if err != nil {
			return err
		}
		defer watcher.Stop()
		if err := watcher.Start(ctx); err != nil {
			return err
		}
	}

	// Drain progress events at debug level for the duration of the run.
	go func() {
		for snap := range processor.Events() {
			logger.Debug("progress",
				"path", snap.Path,
				"stage", string(snap.Stage),
				"updated", snap.Counts.Updated,
				"errors", snap.Counts.Errors)
		}
	}()

	report, err := processor.Run(ctx, batch.Request{
		Paths:       args,
		Concurrency: cfg.Batch.Concurrency,
		Rules:       ruleset,
		ReportOnly:  reportOnly,
	})
	if err != nil && report.Completed+report.Recovered+report.Failed == 0 {
		return err
	}

	printReport(cmd, report)

	if report.Failed > 0 || report.Recovered > 0 {
		return fmt.Errorf("%d of %d documents did not complete",
			report.Failed+report.Recovered, len(report.Results))
	}
	return nil
}

func printReport(cmd *cobra.Command, report batch.Report) {
	out := cmd.OutOrStdout()

	for _, r := range report.Results {
		fmt.Fprintf(out, "%-9s %s\n", r.Status, r.Path)
		for _, e := range r.Changelog {
			switch e.Category {
			case session.CategoryUpdated, session.CategoryTitleChanged:
				fmt.Fprintf(out, "  %-12s %s: %s -> %s\n", e.Category, e.Identifier, e.Before, e.After)
			case session.CategoryError:
				fmt.Fprintf(out, "  %-12s %s: %s\n", e.Category, e.Identifier, e.Detail)
			default:
				fmt.Fprintf(out, "  %-12s %s: %s\n", e.Category, e.Identifier, e.Before)
			}
		}
		if r.Err != nil {
			fmt.Fprintf(out, "  error: %v\n", r.Err)
		}
	}

	fmt.Fprintf(out, "\n%d completed, %d recovered, %d failed\n",
		report.Completed, report.Recovered, report.Failed)
	fmt.Fprintf(out, "hyperlinks: %d found, %d resolved, %d updated, %d errors\n",
		report.Counts.Found, report.Counts.Resolved, report.Counts.Updated, report.Counts.Errors)
	fmt.Fprintf(out, "backup session: %s (revert with: relink revert --session %s)\n",
		report.BackupSession, report.BackupSession)
}
