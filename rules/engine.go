// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/relink/docpkg"
	"github.com/AleutianAI/relink/extract"
	"github.com/AleutianAI/relink/lookup"
)

// DefaultTargetURLTemplate builds the canonical URL a repointed
// hyperlink targets; %s receives the resolved content id.
const DefaultTargetURLTemplate = "https://cms.internal/content/%s"

// Resolver resolves a content identifier at the lookup boundary.
// *lookup.Client satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (lookup.Resolution, error)
}

// RuleError attributes one failure to the rule that produced it. A
// failing rule is reported, never silently skipped, and never aborts
// the remaining rules.
type RuleError struct {
	Rule string
	Err  error
}

func (e RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.Rule, e.Err)
}

func (e RuleError) Unwrap() error { return e.Err }

// HyperlinkUpdate records one repointed hyperlink for the changelog.
type HyperlinkUpdate struct {
	Rule      string
	ContentID string
	OldURL    string
	NewURL    string
	OldText   string
	NewText   string
}

// Outcome accumulates per-document results of one Apply pass.
type Outcome struct {
	// Updates records each repointed hyperlink.
	Updates []HyperlinkUpdate

	// TextChanges counts replaced text spans.
	TextChanges int

	// Errors holds one entry per rule failure.
	Errors []RuleError
}

// HyperlinkChanges counts repointed hyperlinks.
func (o Outcome) HyperlinkChanges() int { return len(o.Updates) }

// Changes returns the total mutation count.
func (o Outcome) Changes() int {
	return len(o.Updates) + o.TextChanges
}

// Engine applies a loaded rule set to open packages.
//
// # Thread Safety
//
// Safe for concurrent use across packages; each package must still be
// confined to a single goroutine, per the docpkg contract.
type Engine struct {
	resolver    Resolver
	urlTemplate string
	logger      *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithTargetURLTemplate overrides the canonical content URL template.
// The template must contain a single %s verb for the content id.
func WithTargetURLTemplate(template string) EngineOption {
	return func(e *Engine) { e.urlTemplate = template }
}

// NewEngine creates an Engine that resolves hyperlink rule targets
// through resolver.
func NewEngine(resolver Resolver, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		resolver:    resolver,
		urlTemplate: DefaultTargetURLTemplate,
		logger:      logger.With("component", "rules.Engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TargetURL builds the canonical URL for a content id.
func (e *Engine) TargetURL(contentID string) string {
	return fmt.Sprintf(e.urlTemplate, contentID)
}

// Apply runs every rule against the package in file order. Hyperlink
// rules run first so text rules see the rewritten display titles.
//
// # Outputs
//
//   - Outcome: Change counts plus the per-rule error list. Partial
//     results are meaningful even when Errors is non-empty.
//   - error: Only for package-level failures (closed or saved package);
//     rule-level failures land in Outcome.Errors instead.
func (e *Engine) Apply(ctx context.Context, pkg *docpkg.Package, ruleset []Rule) (Outcome, error) {
	return e.run(ctx, pkg, ruleset, false)
}

// Preview records what Apply would change without mutating the package.
// Rule targets are still resolved at the lookup boundary, so a preview
// reports the same findings, including resolution failures, as a real
// pass would.
func (e *Engine) Preview(ctx context.Context, pkg *docpkg.Package, ruleset []Rule) (Outcome, error) {
	return e.run(ctx, pkg, ruleset, true)
}

func (e *Engine) run(ctx context.Context, pkg *docpkg.Package, ruleset []Rule, dryRun bool) (Outcome, error) {
	var outcome Outcome

	for i, rule := range ruleset {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		label := rule.Label(i)
		var err error
		switch rule.Kind {
		case KindHyperlink:
			err = e.applyHyperlinkRule(ctx, pkg, rule, label, dryRun, &outcome)
		case KindText:
			err = e.applyTextRule(pkg, rule, dryRun, &outcome)
		}
		if err != nil {
			outcome.Errors = append(outcome.Errors, RuleError{Rule: label, Err: err})
			e.logger.Warn("rule failed",
				"rule", rule.Label(i),
				"kind", string(rule.Kind),
				"error", err)
		}
	}

	return outcome, nil
}

// applyHyperlinkRule repoints every hyperlink whose inline-id-stripped
// title matches the rule. The resolved title and content id replace the
// display text as "{title} ({content_id})".
func (e *Engine) applyHyperlinkRule(ctx context.Context, pkg *docpkg.Package, rule Rule, label string, dryRun bool, outcome *Outcome) error {
	want := strings.TrimSpace(rule.MatchTitle)

	var matched bool
	for _, h := range pkg.Hyperlinks() {
		title := strings.TrimSpace(extract.StripInlineContentID(h.DisplayText))
		if !strings.EqualFold(title, want) {
			continue
		}
		matched = true

		res, err := e.resolver.Resolve(ctx, rule.TargetContentID)
		if err != nil {
			return fmt.Errorf("resolving target %s: %w", rule.TargetContentID, err)
		}
		if res.Status != lookup.StatusValid {
			return fmt.Errorf("target %s resolved as %s", rule.TargetContentID, res.Status)
		}

		newText := fmt.Sprintf("%s (%s)", res.Title, res.ContentID)
		newURL := e.TargetURL(res.ContentID)
		if !dryRun {
			if err := pkg.SetHyperlinkText(h.RelationshipID, newText); err != nil {
				return fmt.Errorf("updating display text: %w", err)
			}
			if _, err := docpkg.Swap(ctx, pkg, h, newURL); err != nil {
				return fmt.Errorf("repointing hyperlink %s: %w", h.RelationshipID, err)
			}
		}

		outcome.Updates = append(outcome.Updates, HyperlinkUpdate{
			Rule:      label,
			ContentID: res.ContentID,
			OldURL:    h.OriginalURL,
			NewURL:    newURL,
			OldText:   h.DisplayText,
			NewText:   newText,
		})
		e.logger.Info("hyperlink repointed",
			"title", want,
			"content_id", res.ContentID,
			"dry_run", dryRun)
	}

	if !matched {
		e.logger.Debug("hyperlink rule matched nothing", "title", want)
	}
	return nil
}

// applyTextRule rewrites literal occurrences of the rule source in text
// runs, mirroring each matched span's casing onto the replacement.
func (e *Engine) applyTextRule(pkg *docpkg.Package, rule Rule, dryRun bool, outcome *Outcome) error {
	pattern := rule.sourcePattern()

	if dryRun {
		for _, text := range pkg.TextRuns() {
			outcome.TextChanges += len(pattern.FindAllStringIndex(text, -1))
		}
		return nil
	}

	replaced := 0
	_, err := pkg.TransformRuns(func(text string) (string, bool) {
		if !pattern.MatchString(text) {
			return text, false
		}
		out := pattern.ReplaceAllStringFunc(text, func(span string) string {
			replaced++
			return mirrorCase(span, rule.Replacement)
		})
		return out, true
	})
	if err != nil {
		return err
	}

	outcome.TextChanges += replaced
	return nil
}
