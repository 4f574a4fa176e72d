// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package batch runs document sessions under bounded concurrency.
//
// Each document gets its own single-threaded session; the processor
// bounds how many run at once and aggregates results as sessions
// complete, not in submission order. The lookup cache, rule engine, and
// validator are shared across sessions; the backup manager serializes
// its own bookkeeping.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/relink/backup"
	"github.com/AleutianAI/relink/rules"
	"github.com/AleutianAI/relink/session"
	"github.com/AleutianAI/relink/validate"
)

// DefaultConcurrency bounds in-flight documents when the request does
// not say otherwise.
const DefaultConcurrency = 5

// MaxConcurrency caps the worker limit; a slow lookup boundary makes
// wider batches counterproductive.
const MaxConcurrency = 20

// ErrNoDocuments is returned for a request with an empty path list.
var ErrNoDocuments = errors.New("batch request lists no documents")

// Request describes one batch.
type Request struct {
	// Paths are the documents to process, in submission order.
	Paths []string

	// Concurrency bounds in-flight documents. Zero means
	// DefaultConcurrency; values above MaxConcurrency are clamped.
	Concurrency int

	// Rules is the loaded replacement rule set, applied per document.
	Rules []rules.Rule

	// ReportOnly records findings without mutating any document.
	ReportOnly bool
}

func (r *Request) workers() int64 {
	n := r.Concurrency
	if n <= 0 {
		n = DefaultConcurrency
	}
	if n > MaxConcurrency {
		n = MaxConcurrency
	}
	return int64(n)
}

// Report is the batch outcome.
type Report struct {
	// BackupSession is the batch's revertible backup generation id.
	BackupSession string

	// Results holds one entry per document, in completion order.
	Results []session.Result

	// Completed, Recovered, and Failed count terminal statuses.
	Completed int
	Recovered int
	Failed    int

	// Counts aggregates the per-document tallies.
	Counts session.Counts

	// Elapsed is the batch wall time.
	Elapsed time.Duration
}

// Snapshot is a point-in-time view of a running batch.
type Snapshot struct {
	Total     int
	Done      int
	Completed int
	Recovered int
	Failed    int
	Counts    session.Counts
	Elapsed   time.Duration

	// EstimatedRemaining extrapolates from the completion rate so far.
	// Zero until the first document finishes.
	EstimatedRemaining time.Duration
}

// Processor runs batches. One Processor may run batches sequentially;
// a single batch's documents run concurrently inside Run.
type Processor struct {
	backup    *backup.Manager
	resolver  rules.Resolver
	engine    *rules.Engine
	validator *validate.Pipeline
	logger    *slog.Logger

	events chan session.Snapshot

	mu      sync.Mutex
	started time.Time
	total   int
	report  Report

	rulesMu sync.RWMutex
	rules   []rules.Rule
}

// NewProcessor wires the shared collaborators for all sessions.
func NewProcessor(mgr *backup.Manager, resolver rules.Resolver, engine *rules.Engine, validator *validate.Pipeline, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		backup:    mgr,
		resolver:  resolver,
		engine:    engine,
		validator: validator,
		logger:    logger.With("component", "batch.Processor"),
		events:    make(chan session.Snapshot, 256),
	}
}

// SetRules swaps the rule set. Sessions pick up the new rules when they
// start; in-flight sessions keep the set they started with.
func (p *Processor) SetRules(ruleset []rules.Rule) {
	p.rulesMu.Lock()
	p.rules = ruleset
	p.rulesMu.Unlock()
}

func (p *Processor) currentRules() []rules.Rule {
	p.rulesMu.RLock()
	defer p.rulesMu.RUnlock()
	return p.rules
}

// Events exposes per-session progress snapshots as they happen. Events
// are dropped, never blocked on, when the consumer falls behind.
func (p *Processor) Events() <-chan session.Snapshot {
	return p.events
}

// Snapshot reports current batch progress.
func (p *Processor) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		Total:     p.total,
		Done:      len(p.report.Results),
		Completed: p.report.Completed,
		Recovered: p.report.Recovered,
		Failed:    p.report.Failed,
		Counts:    p.report.Counts,
	}
	if !p.started.IsZero() {
		snap.Elapsed = time.Since(p.started)
		if snap.Done > 0 && snap.Done < snap.Total {
			perDoc := snap.Elapsed / time.Duration(snap.Done)
			snap.EstimatedRemaining = perDoc * time.Duration(snap.Total-snap.Done)
		}
	}
	return snap
}

// Run processes every document of the request and returns the batch
// report. Cancellation stops sessions at their next stage boundary;
// recovery and restore paths intentionally run to completion. The only
// errors Run itself returns are an empty request and cancellation;
// per-document failures live in the report.
func (p *Processor) Run(ctx context.Context, req Request) (Report, error) {
	if len(req.Paths) == 0 {
		return Report{}, ErrNoDocuments
	}

	batchID, err := p.backup.BeginBatch()
	if err != nil {
		return Report{}, fmt.Errorf("starting backup generation: %w", err)
	}

	p.mu.Lock()
	p.started = time.Now()
	p.total = len(req.Paths)
	p.report = Report{BackupSession: batchID}
	p.mu.Unlock()
	p.SetRules(req.Rules)

	p.logger.Info("batch started",
		"documents", len(req.Paths),
		"concurrency", req.workers(),
		"report_only", req.ReportOnly,
		"backup_session", batchID)

	sem := semaphore.NewWeighted(req.workers())
	g, gctx := errgroup.WithContext(ctx)

	for _, path := range req.Paths {
		path := path
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				// Canceled while queued: the document was never touched.
				p.record(session.Result{
					Path:   path,
					Status: session.StatusFailed,
					Err:    fmt.Errorf("%w: %v", session.ErrCanceled, err),
				})
				return nil
			}
			defer sem.Release(1)

			p.record(p.runSession(gctx, path, batchID, req))
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	p.report.Elapsed = time.Since(p.started)
	report := p.report
	p.mu.Unlock()

	p.logger.Info("batch finished",
		"completed", report.Completed,
		"recovered", report.Recovered,
		"failed", report.Failed,
		"updated", report.Counts.Updated,
		"elapsed", report.Elapsed)
	return report, ctx.Err()
}

func (p *Processor) runSession(ctx context.Context, path, batchID string, req Request) session.Result {
	s, err := session.New(path, session.Config{
		Backup:        p.backup,
		BackupSession: batchID,
		Resolver:      p.resolver,
		Engine:        p.engine,
		Rules:         p.currentRules(),
		Validator:     p.validator,
		ReportOnly:    req.ReportOnly,
		Progress:      p.forward,
		Logger:        p.logger,
	})
	if err != nil {
		return session.Result{Path: path, Status: session.StatusFailed, Err: err}
	}
	return s.Run(ctx)
}

// forward pushes a session snapshot to the events channel without ever
// blocking a worker.
func (p *Processor) forward(snap session.Snapshot) {
	select {
	case p.events <- snap:
	default:
	}
}

// record folds one finished session into the running report.
func (p *Processor) record(result session.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.report.Results = append(p.report.Results, result)
	switch result.Status {
	case session.StatusCompleted:
		p.report.Completed++
	case session.StatusRecovered:
		p.report.Recovered++
	case session.StatusFailed:
		p.report.Failed++
	}
	p.report.Counts.Found += result.Counts.Found
	p.report.Counts.Resolved += result.Counts.Resolved
	p.report.Counts.Updated += result.Counts.Updated
	p.report.Counts.Errors += result.Counts.Errors

	documentsTotal.WithLabelValues(string(result.Status)).Inc()
	hyperlinksUpdated.Add(float64(result.Counts.Updated))
}
