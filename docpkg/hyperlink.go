// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package docpkg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

// Status is the resolution state of one hyperlink occurrence.
type Status int

const (
	// StatusUnresolved means no resolution has been attempted yet.
	StatusUnresolved Status = iota
	// StatusValid means the identifier resolved to live content.
	StatusValid
	// StatusExpired means the boundary reported the content expired.
	StatusExpired
	// StatusNotFound means the boundary does not know the identifier.
	StatusNotFound
	// StatusUpdated means the hyperlink was rewritten this session.
	StatusUpdated
)

// String returns the status name used in logs and changelogs.
func (s Status) String() string {
	switch s {
	case StatusUnresolved:
		return "unresolved"
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	case StatusNotFound:
		return "not_found"
	case StatusUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Hyperlink is one hyperlink occurrence in the document part. The
// relationship id is owned by the package; the struct never duplicates
// the relationship itself. Resolution state accumulates on the struct as
// the session progresses.
type Hyperlink struct {
	// RelationshipID is the r:id the element currently references.
	RelationshipID string

	// OriginalURL is the relationship target at enumeration time.
	OriginalURL string

	// DisplayText is the concatenated text runs of the element.
	DisplayText string

	// LookupID is the extracted lookup identifier, empty when none.
	LookupID string

	// ContentID is the resolved 6-digit canonical id, empty until resolved.
	ContentID string

	// Status is the resolution state.
	Status Status

	// RequiresUpdate is set when resolution shows the display text or
	// target is out of date.
	RequiresUpdate bool
}

var (
	hyperlinkPattern = regexp.MustCompile(`(?s)<w:hyperlink\b[^>]*>.*?</w:hyperlink>`)
	ridAttrPattern   = regexp.MustCompile(`\br:id="([^"]*)"`)
	textRunPattern   = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
)

// Hyperlinks enumerates hyperlink elements in document order, with
// OriginalURL filled from the relationship set.
func (p *Package) Hyperlinks() []*Hyperlink {
	var out []*Hyperlink
	for _, elem := range hyperlinkPattern.FindAll(p.document, -1) {
		rid := ridAttrPattern.FindSubmatch(elem)
		if rid == nil {
			continue
		}
		h := &Hyperlink{
			RelationshipID: string(rid[1]),
			DisplayText:    elementText(elem),
			Status:         StatusUnresolved,
		}
		if rel, ok := p.rels.Lookup(h.RelationshipID); ok {
			h.OriginalURL = rel.Target
		}
		out = append(out, h)
	}
	return out
}

// elementText concatenates the unescaped w:t runs of one element.
func elementText(elem []byte) string {
	var b strings.Builder
	for _, m := range textRunPattern.FindAllSubmatch(elem, -1) {
		b.WriteString(unescapeText(string(m[1])))
	}
	return b.String()
}

// SetHyperlinkText replaces the display text of the hyperlink bound to
// relID. Multiple runs collapse into the first run; the remaining runs
// are emptied rather than removed so run properties survive.
func (p *Package) SetHyperlinkText(relID, text string) error {
	if err := p.mutable(); err != nil {
		return err
	}

	elem, start, end, err := p.findHyperlink(relID)
	if err != nil {
		return err
	}

	matches := textRunPattern.FindAllSubmatchIndex(elem, -1)
	if len(matches) == 0 {
		return fmt.Errorf("hyperlink %s: %w", relID, ErrHyperlinkNotFound)
	}

	escaped := escapeText(text)
	var edited bytes.Buffer
	prev := 0
	for i, m := range matches {
		// m[2]:m[3] is the run content group.
		edited.Write(elem[prev:m[2]])
		if i == 0 {
			edited.WriteString(escaped)
		}
		prev = m[3]
	}
	edited.Write(elem[prev:])

	p.splice(start, end, edited.Bytes())
	return nil
}

// RebindHyperlink repoints the hyperlink element from oldID to newID.
// Only the element's own r:id attribute changes; other occurrences of
// oldID elsewhere in the document are untouched.
func (p *Package) RebindHyperlink(oldID, newID string) error {
	if err := p.mutable(); err != nil {
		return err
	}

	elem, start, end, err := p.findHyperlink(oldID)
	if err != nil {
		return err
	}

	oldAttr := []byte(`r:id="` + oldID + `"`)
	newAttr := []byte(`r:id="` + newID + `"`)
	edited := bytes.Replace(elem, oldAttr, newAttr, 1)

	p.splice(start, end, edited)
	return nil
}

// findHyperlink locates the hyperlink element bound to relID and returns
// the element bytes plus its span in the document part.
func (p *Package) findHyperlink(relID string) (elem []byte, start, end int, err error) {
	attr := []byte(`r:id="` + relID + `"`)
	for _, span := range hyperlinkPattern.FindAllIndex(p.document, -1) {
		candidate := p.document[span[0]:span[1]]
		startTag := candidate[:bytes.IndexByte(candidate, '>')+1]
		if bytes.Contains(startTag, attr) {
			return candidate, span[0], span[1], nil
		}
	}
	return nil, 0, 0, fmt.Errorf("r:id %s: %w", relID, ErrHyperlinkNotFound)
}

// splice replaces document[start:end] with replacement.
func (p *Package) splice(start, end int, replacement []byte) {
	doc := make([]byte, 0, len(p.document)-(end-start)+len(replacement))
	doc = append(doc, p.document[:start]...)
	doc = append(doc, replacement...)
	doc = append(doc, p.document[end:]...)
	p.replaceDocument(doc)
}

// escapeText escapes text for insertion into a w:t element.
func escapeText(s string) string {
	var b bytes.Buffer
	// EscapeText only fails on a broken writer; bytes.Buffer never is.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

var textUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&#34;", `"`,
	"&#39;", "'",
	"&#xA;", "\n",
	"&#x9;", "\t",
	"&#xD;", "\r",
	"&amp;", "&",
)

func unescapeText(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	return textUnescaper.Replace(s)
}
