// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package docpkg_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relink/docpkg"
	"github.com/AleutianAI/relink/docpkg/testdoc"
)

func TestOpen_EnumeratesHyperlinks(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Write(t, dir, "doc.docx", testdoc.Doc{
		Links: []testdoc.Link{
			{RelID: "rId1", URL: "https://example.com/a#CMS-ABC-123456", Display: "Policy A (123456)"},
			{RelID: "rId2", URL: "https://example.com/b", Display: "Plain link"},
		},
		Paragraphs: []string{"body text"},
	})

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	links := pkg.Hyperlinks()
	require.Len(t, links, 2)

	assert.Equal(t, "rId1", links[0].RelationshipID)
	assert.Equal(t, "https://example.com/a#CMS-ABC-123456", links[0].OriginalURL)
	assert.Equal(t, "Policy A (123456)", links[0].DisplayText)
	assert.Equal(t, docpkg.StatusUnresolved, links[0].Status)

	assert.Equal(t, "rId2", links[1].RelationshipID)
	assert.Equal(t, 2, pkg.Relationships().Len())
}

func TestOpen_MissingDocumentPart(t *testing.T) {
	dir := t.TempDir()
	// A zip that is not a document package.
	path := filepath.Join(dir, "empty.docx")
	writeEmptyZip(t, path)

	_, err := docpkg.Open(path)
	require.ErrorIs(t, err, docpkg.ErrMissingPart)
}

func TestSetHyperlinkText(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Old Title")

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	require.NoError(t, pkg.SetHyperlinkText("rId1", "New Title (654321)"))

	links := pkg.Hyperlinks()
	require.Len(t, links, 1)
	assert.Equal(t, "New Title (654321)", links[0].DisplayText)
}

func TestSetHyperlinkText_EscapesMarkup(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Old")

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	require.NoError(t, pkg.SetHyperlinkText("rId1", `Fish & Chips <Ltd>`))

	links := pkg.Hyperlinks()
	require.Len(t, links, 1)
	assert.Equal(t, `Fish & Chips <Ltd>`, links[0].DisplayText)
}

func TestRebindHyperlink(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Title")

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	newID := pkg.Relationships().Add(docpkg.HyperlinkRelType, "https://example.com/new", true)
	require.NoError(t, pkg.RebindHyperlink("rId1", newID))

	links := pkg.Hyperlinks()
	require.Len(t, links, 1)
	assert.Equal(t, newID, links[0].RelationshipID)
	assert.Equal(t, "https://example.com/new", links[0].OriginalURL)
}

func TestSaveRoundTrip_NoEdits(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Write(t, dir, "doc.docx", testdoc.Doc{
		Links:      []testdoc.Link{{RelID: "rId1", URL: "https://example.com", Display: "Title"}},
		Paragraphs: []string{"unchanged content"},
	})

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	original := append([]byte(nil), pkg.Document()...)

	out := filepath.Join(dir, "out.docx")
	require.NoError(t, pkg.SaveTo(out))
	pkg.Close()

	reopened, err := docpkg.Open(out)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, original, reopened.Document(),
		"a package with zero edits must save identical document content")
	assert.Equal(t, 1, reopened.Relationships().Len())
}

func TestSaveTwice_Rejected(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Title")

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	require.NoError(t, pkg.Save())
	require.ErrorIs(t, pkg.Save(), docpkg.ErrAlreadySaved)
	require.ErrorIs(t, pkg.SetHyperlinkText("rId1", "x"), docpkg.ErrAlreadySaved)
}

func TestTransformRuns(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Write(t, dir, "doc.docx", testdoc.Doc{
		Paragraphs: []string{"the word appears", "no match here", "Word at start"},
	})

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	changed, err := pkg.TransformRuns(func(text string) (string, bool) {
		if text == "no match here" {
			return "", false
		}
		return text + "!", true
	})
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	runs := pkg.TextRuns()
	assert.Contains(t, runs, "the word appears!")
	assert.Contains(t, runs, "no match here")
}

func TestRemoveOrphanRelationships(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Title")

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	// An added relationship nothing references.
	pkg.Relationships().Add(docpkg.HyperlinkRelType, "https://stale.example.com", true)
	require.Equal(t, 2, pkg.Relationships().Len())

	removed, err := pkg.RemoveOrphanRelationships()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, pkg.Relationships().Len())

	_, ok := pkg.Relationships().Lookup("rId1")
	assert.True(t, ok, "referenced relationship must survive compaction")
}
