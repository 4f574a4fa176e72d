// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate runs structural checks on document packages at the
// defined checkpoints of a mutation session.
//
// Validation never raises an error for "document has issues": issues
// come back as typed violations in a Report. Errors are reserved for
// I/O-level failure to even open or read the package.
package validate

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"regexp"

	"github.com/AleutianAI/relink/docpkg"
)

// Checkpoint names the session points where validation runs.
type Checkpoint string

const (
	// PreProcessing validates the on-disk file before any open.
	PreProcessing Checkpoint = "pre_processing"
	// PostOpen validates the opened package before any mutation.
	PostOpen Checkpoint = "post_open"
	// PostCleanup validates after orphaned-element removal.
	PostCleanup Checkpoint = "post_cleanup"
	// PostHyperlinkUpdate validates after all relationship swaps.
	PostHyperlinkUpdate Checkpoint = "post_hyperlink_update"
	// PreSave is the final in-memory check before the single save.
	PreSave Checkpoint = "pre_save"
	// PostSave re-opens the persisted bytes read-only and re-validates.
	PostSave Checkpoint = "post_save"
)

// Code classifies one violation.
type Code string

const (
	CodeMissingPart        Code = "missing_part"
	CodeMalformedXML       Code = "malformed_xml"
	CodeDanglingReference  Code = "dangling_reference"
	CodeDuplicateRelID     Code = "duplicate_relationship_id"
	CodeEmptyTarget        Code = "empty_relationship_target"
	CodeUnreadableArchive  Code = "unreadable_archive"
	CodeOrphanRelationship Code = "orphan_relationship"
)

// Violation is one structural problem found at a checkpoint.
type Violation struct {
	Code    Code
	Part    string
	Element string
	Detail  string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s %s: %s", v.Code, v.Part, v.Element, v.Detail)
}

// Report is the outcome of one checkpoint run.
type Report struct {
	Checkpoint Checkpoint
	Violations []Violation
}

// OK reports whether the checkpoint passed.
func (r Report) OK() bool { return len(r.Violations) == 0 }

// Pipeline validates packages on disk and in memory. Safe for concurrent
// use; it holds no per-document state.
type Pipeline struct {
	logger *slog.Logger

	// strictOrphans escalates unreferenced hyperlink relationships to
	// violations. Off by default: orphans are a compaction concern, not
	// a corruption risk.
	strictOrphans bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStrictOrphans makes unreferenced hyperlink relationships fail
// validation instead of being reported as debug noise.
func WithStrictOrphans() Option {
	return func(p *Pipeline) { p.strictOrphans = true }
}

// New creates a Pipeline.
func New(logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{logger: logger.With("component", "validate.Pipeline")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// File validates the on-disk package at path. Used for the
// PreProcessing and PostSave checkpoints.
//
// Outputs:
//   - Report: Violations found; empty means the checkpoint passed.
//   - error: Only when the file cannot be opened or read at all.
func (p *Pipeline) File(path string, checkpoint Checkpoint) (Report, error) {
	report := Report{Checkpoint: checkpoint}

	pkg, err := docpkg.Open(path)
	if err != nil {
		// Structural absence of required parts is a violation, not an
		// error; anything else is an I/O failure the caller must handle.
		switch {
		case isMissingPart(err):
			report.Violations = append(report.Violations, Violation{
				Code: CodeMissingPart, Part: path, Detail: err.Error(),
			})
			return report, nil
		case isZipFormat(err):
			report.Violations = append(report.Violations, Violation{
				Code: CodeUnreadableArchive, Part: path, Detail: err.Error(),
			})
			return report, nil
		default:
			return report, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	defer pkg.Close()

	report.Violations = p.checkPackage(pkg)
	p.logCheckpoint(path, report)
	return report, nil
}

// Package validates an open in-memory package. Used for the PostOpen,
// PostCleanup, PostHyperlinkUpdate and PreSave checkpoints.
func (p *Pipeline) Package(pkg *docpkg.Package, checkpoint Checkpoint) Report {
	report := Report{
		Checkpoint: checkpoint,
		Violations: p.checkPackage(pkg),
	}
	p.logCheckpoint(pkg.Path(), report)
	return report
}

func (p *Pipeline) logCheckpoint(path string, report Report) {
	if report.OK() {
		p.logger.Debug("checkpoint passed",
			"checkpoint", report.Checkpoint,
			"path", path)
		return
	}
	p.logger.Warn("checkpoint failed",
		"checkpoint", report.Checkpoint,
		"path", path,
		"violations", len(report.Violations),
		"first", report.Violations[0].String())
}

var ridRefPattern = regexp.MustCompile(`\br:id="([^"]*)"`)

// checkPackage runs the structural checks shared by every checkpoint.
func (p *Pipeline) checkPackage(pkg *docpkg.Package) []Violation {
	var violations []Violation

	// Every XML part must tokenize cleanly.
	for _, name := range pkg.PartNames() {
		if !isXMLPart(name) {
			continue
		}
		data, _ := pkg.Part(name)
		if name == docpkg.DocumentPart {
			data = pkg.Document()
		}
		if err := wellFormed(data); err != nil {
			violations = append(violations, Violation{
				Code: CodeMalformedXML, Part: name, Detail: err.Error(),
			})
		}
	}

	rels := pkg.Relationships()

	// Duplicate relationship ids: two relationships must never answer
	// for one id.
	for _, id := range rels.DuplicateIDs() {
		violations = append(violations, Violation{
			Code: CodeDuplicateRelID, Part: docpkg.RelationshipsPart, Element: id,
		})
	}

	// Every r:id referenced by the document must resolve to exactly one
	// live relationship.
	referenced := make(map[string]struct{})
	for _, m := range ridRefPattern.FindAllSubmatch(pkg.Document(), -1) {
		id := string(m[1])
		referenced[id] = struct{}{}
		if _, ok := rels.Lookup(id); !ok {
			violations = append(violations, Violation{
				Code: CodeDanglingReference, Part: docpkg.DocumentPart, Element: id,
				Detail: "element references a relationship that does not exist",
			})
		}
	}

	// Relationship hygiene.
	for _, rel := range rels.All() {
		if rel.Target == "" {
			violations = append(violations, Violation{
				Code: CodeEmptyTarget, Part: docpkg.RelationshipsPart, Element: rel.ID,
			})
		}
		if p.strictOrphans && rel.Type == docpkg.HyperlinkRelType {
			if _, ok := referenced[rel.ID]; !ok {
				violations = append(violations, Violation{
					Code: CodeOrphanRelationship, Part: docpkg.RelationshipsPart, Element: rel.ID,
				})
			}
		}
	}

	return violations
}

func isXMLPart(name string) bool {
	return bytes.HasSuffix([]byte(name), []byte(".xml")) ||
		bytes.HasSuffix([]byte(name), []byte(".rels"))
}

// wellFormed tokenizes data to completion.
func wellFormed(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		if _, err := dec.Token(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func isMissingPart(err error) bool {
	return err != nil && containsErr(err, docpkg.ErrMissingPart)
}
