// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session runs the per-document processing state machine.
//
// A session owns exactly one document from pre-processing validation to
// a terminal status. Stages execute strictly forward; the only backward
// edge is recovery, which restores the file from its batch backup and
// terminates as Recovered. A session is single-threaded internally: the
// package handle is never shared across goroutines, and batch-level
// cancellation is checked between stages, never mid-stage.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/relink/backup"
	"github.com/AleutianAI/relink/docpkg"
	"github.com/AleutianAI/relink/extract"
	"github.com/AleutianAI/relink/lookup"
	"github.com/AleutianAI/relink/retry"
	"github.com/AleutianAI/relink/rules"
	"github.com/AleutianAI/relink/validate"
)

// Stage names one step of the state machine.
type Stage string

const (
	StageInit          Stage = "init"
	StageValidating    Stage = "validating"
	StageBackingUp     Stage = "backing_up"
	StageLoaded        Stage = "loaded"
	StageExtracting    Stage = "extracting"
	StageResolving     Stage = "resolving"
	StageMutating      Stage = "mutating"
	StageReplacingText Stage = "replacing_text"
	StageSaving        Stage = "saving"
	StageValidated     Stage = "validated"
)

// Status is a session's terminal outcome.
type Status string

const (
	// StatusCompleted means the document saved and post-save validation
	// passed.
	StatusCompleted Status = "Completed"

	// StatusRecovered means a checkpoint or save failed and the file was
	// restored from its backup. Distinct from Failed so an operator
	// knows a rollback occurred.
	StatusRecovered Status = "Recovered"

	// StatusFailed means the document could not be processed and no
	// restore happened (none was needed, none was available, or the
	// restore itself failed).
	StatusFailed Status = "Failed"
)

// ErrCanceled marks a session aborted by batch-wide cancellation
// between stages.
var ErrCanceled = errors.New("session canceled")

var tracer = otel.Tracer("relink.session")

// Config wires a session's collaborators. Resolver, rule engine, and
// validator are shared across all concurrent sessions of a batch; the
// backup manager serializes its own bookkeeping.
type Config struct {
	// Backup manages the batch's revertible snapshots. Required.
	Backup *backup.Manager

	// BackupSession is the batch session id from Manager.BeginBatch.
	BackupSession string

	// Resolver answers identifier lookups. Required unless ReportOnly
	// documents carry no identifiers.
	Resolver rules.Resolver

	// Engine applies replacement rules and builds canonical target
	// URLs. Required.
	Engine *rules.Engine

	// Rules is the loaded rule set applied in the replacing-text stage.
	Rules []rules.Rule

	// Validator runs the checkpoint pipeline. Required.
	Validator *validate.Pipeline

	// ReportOnly records findings in the changelog without mutating or
	// saving the document.
	ReportOnly bool

	// Progress receives stage-boundary snapshots. Optional.
	Progress ProgressFunc

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.Backup == nil {
		return errors.New("session config: backup manager is required")
	}
	if c.Engine == nil {
		return errors.New("session config: rule engine is required")
	}
	if c.Validator == nil {
		return errors.New("session config: validator is required")
	}
	return nil
}

// Result is a finished session's report.
type Result struct {
	// Path is the processed document.
	Path string

	// Status is the terminal outcome.
	Status Status

	// Counts is the final per-document tally.
	Counts Counts

	// Changelog lists every finding and mutation in document order.
	Changelog []Entry

	// Stages lists the stages the session completed, in order.
	Stages []Stage

	// TouchedRelationships lists the relationship ids created by swaps.
	TouchedRelationships []string

	// Err is the terminal error for Failed and Recovered sessions.
	Err error
}

// Session processes one document. Create with New, run once with Run.
type Session struct {
	path   string
	cfg    Config
	logger *slog.Logger

	started  time.Time
	stage    Stage
	stages   []Stage
	touched  []string
	counts   Counts
	entries  []Entry
	resolved map[string]lookup.Resolution
}

// New prepares a session for the document at path.
func New(path string, cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		path:     path,
		cfg:      cfg,
		logger:   logger.With("component", "session.Session", "path", path),
		stage:    StageInit,
		resolved: make(map[string]lookup.Resolution),
	}, nil
}

// Run drives the state machine to a terminal status. It never returns a
// free-floating error: every failure is folded into the Result, and the
// package handle is released on every path.
func (s *Session) Run(ctx context.Context) Result {
	s.started = time.Now()

	ctx, span := tracer.Start(ctx, "session.Run",
		trace.WithAttributes(attribute.String("document.path", s.path)))
	defer span.End()

	result := s.run(ctx, span)

	sessionsTotal.WithLabelValues(string(result.Status)).Inc()
	sessionDuration.Observe(time.Since(s.started).Seconds())
	span.SetAttributes(attribute.String("session.status", string(result.Status)))

	s.logger.Info("session finished",
		"status", string(result.Status),
		"found", result.Counts.Found,
		"resolved", result.Counts.Resolved,
		"updated", result.Counts.Updated,
		"errors", result.Counts.Errors,
		"elapsed", time.Since(s.started))
	return result
}

func (s *Session) run(ctx context.Context, span trace.Span) Result {
	// Pre-processing runs before any backup exists, so its failures are
	// Failed, not Recovered: nothing has been touched yet.
	if err := s.enter(ctx, span, StageValidating); err != nil {
		return s.failed(err)
	}
	report, err := s.cfg.Validator.File(s.path, validate.PreProcessing)
	if err != nil {
		return s.failed(fmt.Errorf("pre-processing validation: %w", err))
	}
	if !report.OK() {
		return s.failed(&validate.CheckpointError{Report: report})
	}

	if err := s.enter(ctx, span, StageBackingUp); err != nil {
		return s.failed(err)
	}
	if _, err := s.cfg.Backup.Backup(s.path, s.cfg.BackupSession); err != nil {
		return s.failed(fmt.Errorf("backing up: %w", err))
	}

	if err := s.enter(ctx, span, StageLoaded); err != nil {
		return s.failed(err)
	}
	pkg, err := docpkg.Open(s.path)
	if err != nil {
		return s.failed(fmt.Errorf("opening package: %w", err))
	}
	defer pkg.Close()

	if err := s.checkpoint(pkg, validate.PostOpen); err != nil {
		return s.recover(err)
	}

	if err := s.enter(ctx, span, StageExtracting); err != nil {
		return s.failed(err)
	}
	links := s.extractIdentifiers(pkg)

	if err := s.checkpoint(pkg, validate.PostCleanup); err != nil {
		return s.recover(err)
	}

	if err := s.enter(ctx, span, StageResolving); err != nil {
		return s.failed(err)
	}
	s.resolveIdentifiers(ctx, links)

	if err := s.enter(ctx, span, StageMutating); err != nil {
		return s.failed(err)
	}
	if err := s.mutateHyperlinks(ctx, pkg, links); err != nil {
		if ctx.Err() != nil {
			// Nothing has been saved yet; canceled work needs no restore.
			return s.failed(fmt.Errorf("%w during stage %s", ErrCanceled, s.stage))
		}
		return s.recover(err)
	}
	if err := s.checkpoint(pkg, validate.PostHyperlinkUpdate); err != nil {
		return s.recover(err)
	}

	if err := s.enter(ctx, span, StageReplacingText); err != nil {
		return s.failed(err)
	}
	if err := s.applyRules(ctx, pkg); err != nil {
		if ctx.Err() != nil {
			return s.failed(fmt.Errorf("%w during stage %s", ErrCanceled, s.stage))
		}
		return s.recover(err)
	}

	if s.cfg.ReportOnly {
		s.logger.Info("report-only run, skipping save")
		return s.completed()
	}

	if err := s.enter(ctx, span, StageSaving); err != nil {
		return s.failed(err)
	}
	if _, err := pkg.RemoveOrphanRelationships(); err != nil {
		return s.recover(fmt.Errorf("orphan sweep: %w", err))
	}
	if err := s.checkpoint(pkg, validate.PreSave); err != nil {
		return s.recover(err)
	}
	if err := pkg.Save(); err != nil {
		return s.recover(fmt.Errorf("saving package: %w", err))
	}

	if err := s.enter(ctx, span, StageValidated); err != nil {
		// The file is already saved; late cancellation must not strand
		// an unvalidated save, so post-save validation runs regardless.
		s.logger.Warn("cancellation after save, validating anyway")
	}
	report, err = s.cfg.Validator.File(s.path, validate.PostSave)
	if err != nil {
		return s.recover(fmt.Errorf("post-save validation: %w", err))
	}
	if !report.OK() {
		return s.recover(&validate.CheckpointError{Report: report})
	}

	return s.completed()
}

// enter advances to the next stage, checking cooperative cancellation at
// the boundary.
func (s *Session) enter(ctx context.Context, span trace.Span, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w before stage %s: %v", ErrCanceled, stage, err)
	}
	s.stage = stage
	s.stages = append(s.stages, stage)
	span.AddEvent("stage", trace.WithAttributes(attribute.String("name", string(stage))))
	s.logger.Debug("entering stage", "stage", string(stage))
	s.emit()
	return nil
}

func (s *Session) emit() {
	if s.cfg.Progress == nil {
		return
	}
	s.cfg.Progress(Snapshot{
		Path:    s.path,
		Stage:   s.stage,
		Counts:  s.counts,
		Elapsed: time.Since(s.started),
	})
}

// checkpoint validates the in-memory package and converts violations to
// a CheckpointError for the recovery path.
func (s *Session) checkpoint(pkg *docpkg.Package, cp validate.Checkpoint) error {
	report := s.cfg.Validator.Package(pkg, cp)
	if report.OK() {
		return nil
	}
	return &validate.CheckpointError{Report: report}
}

// linkWork carries one hyperlink through resolution and mutation.
type linkWork struct {
	link     *docpkg.Hyperlink
	lookupID string
}

// extractIdentifiers scans hyperlink targets for lookup identifiers.
func (s *Session) extractIdentifiers(pkg *docpkg.Package) []linkWork {
	var work []linkWork
	for _, h := range pkg.Hyperlinks() {
		id, ok := extract.LookupID(h.OriginalURL)
		if !ok {
			continue
		}
		h.LookupID = id
		work = append(work, linkWork{link: h, lookupID: id})
	}
	s.counts.Found = len(work)
	s.logger.Debug("extracted identifiers", "count", len(work))
	return work
}

// resolveIdentifiers resolves each distinct identifier once. Resolution
// failures are recorded against the owning hyperlink, never propagated.
func (s *Session) resolveIdentifiers(ctx context.Context, work []linkWork) {
	if s.cfg.Resolver == nil {
		return
	}
	for _, w := range work {
		if _, done := s.resolved[w.lookupID]; done {
			continue
		}
		res, err := s.cfg.Resolver.Resolve(ctx, w.lookupID)
		if err != nil {
			s.counts.Errors++
			s.entries = append(s.entries, Entry{
				Category:   CategoryError,
				Identifier: w.lookupID,
				Before:     w.link.OriginalURL,
				Detail:     err.Error(),
			})
			continue
		}
		s.counts.Resolved++
		s.resolved[w.lookupID] = res
	}
}

// mutateHyperlinks applies the resolutions: valid content is repointed
// and retitled, expired and unknown content is recorded. In report-only
// mode findings are logged without touching the package.
func (s *Session) mutateHyperlinks(ctx context.Context, pkg *docpkg.Package, work []linkWork) error {
	for _, w := range work {
		res, ok := s.resolved[w.lookupID]
		if !ok {
			continue // resolution already recorded as an error
		}

		switch res.Status {
		case lookup.StatusExpired:
			w.link.Status = docpkg.StatusExpired
			s.entries = append(s.entries, Entry{
				Category:   CategoryExpired,
				Identifier: w.lookupID,
				Before:     w.link.OriginalURL,
			})
		case lookup.StatusNotFound:
			w.link.Status = docpkg.StatusNotFound
			s.entries = append(s.entries, Entry{
				Category:   CategoryNotFound,
				Identifier: w.lookupID,
				Before:     w.link.OriginalURL,
			})
		case lookup.StatusValid:
			w.link.Status = docpkg.StatusValid
			if err := s.updateHyperlink(ctx, pkg, w, res); err != nil {
				return err
			}
		}
	}
	return nil
}

// updateHyperlink rewrites one valid hyperlink: display text first, then
// the relationship swap.
func (s *Session) updateHyperlink(ctx context.Context, pkg *docpkg.Package, w linkWork, res lookup.Resolution) error {
	newURL := s.cfg.Engine.TargetURL(res.ContentID)
	newText := fmt.Sprintf("%s (%s)", res.Title, res.ContentID)
	oldText := w.link.DisplayText
	titleChanged := !strings.EqualFold(
		strings.TrimSpace(extract.StripInlineContentID(oldText)),
		strings.TrimSpace(res.Title))

	w.link.ContentID = res.ContentID
	if w.link.OriginalURL == newURL && oldText == newText {
		return nil // already canonical
	}
	w.link.RequiresUpdate = true

	if s.cfg.ReportOnly {
		s.appendUpdateEntries(w, res, newURL, newText, oldText, titleChanged)
		return nil
	}

	if err := pkg.SetHyperlinkText(w.link.RelationshipID, newText); err != nil {
		return fmt.Errorf("updating display text for %s: %w", w.lookupID, err)
	}
	swapped, err := docpkg.Swap(ctx, pkg, w.link, newURL)
	if err != nil {
		return fmt.Errorf("repointing %s: %w", w.lookupID, err)
	}
	s.touched = append(s.touched, swapped.NewID)
	w.link.Status = docpkg.StatusUpdated
	s.appendUpdateEntries(w, res, newURL, newText, oldText, titleChanged)
	return nil
}

func (s *Session) appendUpdateEntries(w linkWork, res lookup.Resolution, newURL, newText, oldText string, titleChanged bool) {
	s.counts.Updated++
	s.entries = append(s.entries, Entry{
		Category:   CategoryUpdated,
		Identifier: w.lookupID,
		Before:     w.link.OriginalURL,
		After:      newURL,
	})
	if titleChanged {
		s.entries = append(s.entries, Entry{
			Category:   CategoryTitleChanged,
			Identifier: w.lookupID,
			Before:     oldText,
			After:      newText,
		})
	}
}

// applyRules runs the replacement rule engine. Rule-level failures are
// folded into the changelog; only package-level failures propagate.
// Report-only sessions preview the rules so the changelog carries the
// same findings a real pass would produce.
func (s *Session) applyRules(ctx context.Context, pkg *docpkg.Package) error {
	if len(s.cfg.Rules) == 0 {
		return nil
	}
	apply := s.cfg.Engine.Apply
	if s.cfg.ReportOnly {
		apply = s.cfg.Engine.Preview
	}
	outcome, err := apply(ctx, pkg, s.cfg.Rules)
	if err != nil {
		return err
	}
	s.counts.Updated += outcome.Changes()
	for _, up := range outcome.Updates {
		s.entries = append(s.entries, Entry{
			Category:   CategoryUpdated,
			Identifier: up.Rule,
			Before:     up.OldURL,
			After:      up.NewURL,
		})
		if up.OldText != up.NewText {
			s.entries = append(s.entries, Entry{
				Category:   CategoryTitleChanged,
				Identifier: up.Rule,
				Before:     up.OldText,
				After:      up.NewText,
			})
		}
	}
	for _, re := range outcome.Errors {
		s.counts.Errors++
		s.entries = append(s.entries, Entry{
			Category:   CategoryError,
			Identifier: re.Rule,
			Detail:     re.Err.Error(),
		})
	}
	return nil
}

func (s *Session) result(status Status, err error) Result {
	return Result{
		Path:                 s.path,
		Status:               status,
		Counts:               s.counts,
		Changelog:            s.entries,
		Stages:               s.stages,
		TouchedRelationships: s.touched,
		Err:                  err,
	}
}

func (s *Session) completed() Result {
	return s.result(StatusCompleted, nil)
}

func (s *Session) failed(err error) Result {
	s.logger.Error("session failed", "stage", string(s.stage), "error", err)
	return s.result(StatusFailed, err)
}

// recover restores the document from its batch backup. The restore runs
// under the recovery retry policy with a background context: a restore
// must not be abandoned mid-way because the caller's cancellation fired.
func (s *Session) recover(cause error) Result {
	s.logger.Warn("recovering from backup", "stage", string(s.stage), "cause", cause)
	recoveriesTotal.Inc()

	restore := func(_ context.Context, attempt int) error {
		if attempt > 1 {
			s.logger.Warn("retrying restore", "attempt", attempt)
		}
		return s.cfg.Backup.RestoreFile(s.path)
	}
	if err := retry.Execute(context.Background(), retry.RecoveryPolicy(), restore); err != nil {
		s.logger.Error("restore failed, document may be inconsistent", "error", err)
		return s.result(StatusFailed, errors.Join(cause, err))
	}

	return s.result(StatusRecovered, cause)
}
