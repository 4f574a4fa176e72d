// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package testdoc builds minimal real document packages for tests.
package testdoc

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Link describes one hyperlink in a built document.
type Link struct {
	RelID   string
	URL     string
	Display string
}

// Doc describes a document to build.
type Doc struct {
	// Links become w:hyperlink elements with matching relationships.
	Links []Link

	// Paragraphs become plain text runs after the hyperlinks.
	Paragraphs []string
}

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

// Write builds the package at dir/name and returns its path.
func Write(t *testing.T, dir, name string, doc Doc) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", contentTypes},
		{"word/document.xml", documentXML(doc)},
		{"word/_rels/document.xml.rels", relsXML(doc)},
	}
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			t.Fatalf("creating part %s: %v", part.name, err)
		}
		if _, err := w.Write([]byte(part.data)); err != nil {
			t.Fatalf("writing part %s: %v", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("finalizing %s: %v", path, err)
	}
	return path
}

// Simple builds a document with one hyperlink, the common fixture shape.
func Simple(t *testing.T, dir, name, url, display string) string {
	t.Helper()
	return Write(t, dir, name, Doc{
		Links: []Link{{RelID: "rId1", URL: url, Display: display}},
	})
}

func documentXML(doc Doc) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString("\n")
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>`)
	for _, l := range doc.Links {
		fmt.Fprintf(&b,
			`<w:p><w:hyperlink r:id=%q><w:r><w:rPr><w:rStyle w:val="Hyperlink"/></w:rPr><w:t>%s</w:t></w:r></w:hyperlink></w:p>`,
			l.RelID, l.Display)
	}
	for _, para := range doc.Paragraphs {
		fmt.Fprintf(&b, `<w:p><w:r><w:t>%s</w:t></w:r></w:p>`, para)
	}
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

func relsXML(doc Doc) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString("\n")
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, l := range doc.Links {
		fmt.Fprintf(&b,
			`<Relationship Id=%q Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target=%q TargetMode="External"/>`,
			l.RelID, l.URL)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}
