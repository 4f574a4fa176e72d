// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package docpkg edits zip-packaged XML documents without corrupting them.
//
// A document package is a zip container of XML parts linked by an internal
// relationship graph. The main document part references external targets
// (hyperlinks) through relationship ids declared in a companion .rels part.
// Every mutation this package performs keeps those two parts consistent:
// a hyperlink element's r:id must always resolve to exactly one live
// relationship while the package is open.
//
// The relationships part is small and prefix-free, so it is parsed into
// structs and re-serialized. The main document part is deliberately kept
// as raw bytes and edited by targeted splicing: re-serializing arbitrary
// prefixed XML through encoding/xml does not round-trip byte-for-byte,
// and a document that underwent zero edits must save back identical
// content.
package docpkg

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
)

const (
	// DocumentPart is the main document part name.
	DocumentPart = "word/document.xml"

	// RelationshipsPart declares the document part's relationships.
	RelationshipsPart = "word/_rels/document.xml.rels"

	// ContentTypesPart is the package-level content type map.
	ContentTypesPart = "[Content_Types].xml"

	// HyperlinkRelType is the relationship type for external hyperlinks.
	HyperlinkRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
)

// Package is one open document package. It is loaded fully into memory
// on Open and written out once on SaveTo. A Package is not safe for
// concurrent use; each document session owns its package exclusively.
type Package struct {
	path string

	// partNames preserves the original part order for stable output.
	partNames []string
	parts     map[string][]byte

	document []byte
	rels     *Relationships

	orphans []string // relationship ids left behind by a failed delete
	saved   bool
	closed  bool

	logger *slog.Logger
}

// Open reads the package at path into memory and parses its relationship
// part. The underlying file handle is released before Open returns; all
// later edits happen on the in-memory model until SaveTo.
//
// Outputs:
//   - *Package: The open package.
//   - error: ErrMissingPart if the main document or relationships part is
//     absent, or the zip/XML failure that prevented reading.
func Open(path string) (*Package, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening package %s: %w", path, err)
	}
	defer zr.Close()

	p := &Package{
		path:   path,
		parts:  make(map[string][]byte, len(zr.File)),
		logger: slog.Default().With("component", "docpkg.Package"),
	}

	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening part %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading part %s: %w", f.Name, err)
		}
		p.partNames = append(p.partNames, f.Name)
		p.parts[f.Name] = data
	}

	doc, ok := p.parts[DocumentPart]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingPart, DocumentPart)
	}
	p.document = doc

	relsData, ok := p.parts[RelationshipsPart]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingPart, RelationshipsPart)
	}
	rels, err := parseRelationships(relsData)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", RelationshipsPart, err)
	}
	p.rels = rels

	return p, nil
}

// Path returns the file path the package was opened from.
func (p *Package) Path() string { return p.path }

// Relationships returns the parsed relationship set of the document part.
func (p *Package) Relationships() *Relationships { return p.rels }

// Document returns the raw main document part for read-only inspection.
func (p *Package) Document() []byte { return p.document }

// Part returns a named part's raw bytes.
func (p *Package) Part(name string) ([]byte, bool) {
	data, ok := p.parts[name]
	return data, ok
}

// PartNames returns part names in package order.
func (p *Package) PartNames() []string { return p.partNames }

// Saved reports whether SaveTo has already run.
func (p *Package) Saved() bool { return p.saved }

// Close releases the in-memory model. Further edits fail.
func (p *Package) Close() {
	p.closed = true
	p.parts = nil
	p.document = nil
}

// mutable guards every edit entry point: a package is edited only while
// open and before its single save.
func (p *Package) mutable() error {
	if p.closed {
		return ErrClosed
	}
	if p.saved {
		return ErrAlreadySaved
	}
	return nil
}

// RecordOrphan remembers a relationship id whose delete failed after the
// owning element was already rebound. Orphans do not corrupt the package;
// they are compacted by RemoveOrphanRelationships before save and their
// ids are never reused while the package is open.
func (p *Package) RecordOrphan(relID string) {
	p.orphans = append(p.orphans, relID)
	p.rels.reserve(relID)
	p.logger.Warn("recorded orphaned relationship",
		"rel_id", relID,
		"path", p.path)
}

// Orphans returns relationship ids recorded by RecordOrphan.
func (p *Package) Orphans() []string { return p.orphans }

// RemoveOrphanRelationships drops hyperlink relationships that no element
// references. Best-effort compaction: a failure to find references leaves
// the relationship in place, which is harmless.
//
// Outputs:
//   - int: Number of relationships removed.
func (p *Package) RemoveOrphanRelationships() (int, error) {
	if err := p.mutable(); err != nil {
		return 0, err
	}

	referenced := make(map[string]struct{})
	for _, h := range p.Hyperlinks() {
		referenced[h.RelationshipID] = struct{}{}
	}

	removed := 0
	for _, rel := range p.rels.All() {
		if rel.Type != HyperlinkRelType {
			continue
		}
		if _, ok := referenced[rel.ID]; ok {
			continue
		}
		if err := p.rels.Delete(rel.ID); err == nil {
			removed++
		}
	}
	if removed > 0 {
		p.logger.Debug("compacted orphaned relationships",
			"removed", removed,
			"path", p.path)
	}
	return removed, nil
}

// replaceDocument installs edited document bytes. Internal to splice
// operations in hyperlink.go and runs.go.
func (p *Package) replaceDocument(doc []byte) {
	p.document = doc
}

// hasBytes reports whether the document part contains the given sequence.
func (p *Package) hasBytes(b []byte) bool {
	return bytes.Contains(p.document, b)
}
