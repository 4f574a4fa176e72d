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
	"archive/zip"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relink/docpkg"
	"github.com/AleutianAI/relink/docpkg/testdoc"
)

func writeEmptyZip(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	require.NoError(t, zw.Close())
}

func TestSwap_Success(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://old.example.com", "Title")

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	links := pkg.Hyperlinks()
	require.Len(t, links, 1)
	h := links[0]

	result, err := docpkg.Swap(context.Background(), pkg, h, "https://new.example.com")
	require.NoError(t, err)
	assert.Equal(t, "rId1", result.OldID)
	assert.NotEqual(t, result.OldID, result.NewID)
	assert.False(t, result.Orphaned)

	// Exactly one relationship answers for the element.
	rels := pkg.Relationships()
	assert.Equal(t, 1, rels.Len())
	_, oldAlive := rels.Lookup(result.OldID)
	assert.False(t, oldAlive, "old relationship must be deleted after rebind")

	rel, ok := rels.Lookup(result.NewID)
	require.True(t, ok)
	assert.Equal(t, "https://new.example.com", rel.Target)
	assert.Equal(t, "External", rel.TargetMode)

	// The element follows the new id.
	assert.Equal(t, result.NewID, h.RelationshipID)
	reread := pkg.Hyperlinks()
	require.Len(t, reread, 1)
	assert.Equal(t, result.NewID, reread[0].RelationshipID)
}

func TestSwap_VerifyFailsFast(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Title")

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	// An element whose relationship no longer resolves: do not fabricate
	// a relationship for it.
	h := &docpkg.Hyperlink{RelationshipID: "rId99"}
	_, err = docpkg.Swap(context.Background(), pkg, h, "https://new.example.com")
	require.ErrorIs(t, err, docpkg.ErrRelationshipNotFound)
	assert.Equal(t, 1, pkg.Relationships().Len(), "no relationship may be created on verify failure")
}

func TestSwap_RebindFailureRestoresPreState(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Title")

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	// A relationship that is live in the rels part but has no hyperlink
	// element in the document: rebind (step 3) must fail, and the swap
	// must leave pre-state == post-state.
	danglingID := pkg.Relationships().Add(docpkg.HyperlinkRelType, "https://dangling.example.com", true)
	before := pkg.Relationships().All()

	h := &docpkg.Hyperlink{RelationshipID: danglingID}
	_, err = docpkg.Swap(context.Background(), pkg, h, "https://new.example.com")
	require.ErrorIs(t, err, docpkg.ErrHyperlinkNotFound)

	after := pkg.Relationships().All()
	assert.Equal(t, before, after, "failed swap must not change the relationship set")
	assert.Equal(t, danglingID, h.RelationshipID, "hyperlink must keep its original id on failure")
}

func TestSwap_SavedPackageRejected(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Title")

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	links := pkg.Hyperlinks()
	require.Len(t, links, 1)
	require.NoError(t, pkg.Save())

	_, err = docpkg.Swap(context.Background(), pkg, links[0], "https://new.example.com")
	require.ErrorIs(t, err, docpkg.ErrAlreadySaved)
}

func TestRecordOrphan_ReservesID(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Title")

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	pkg.RecordOrphan("rId7")
	assert.Equal(t, []string{"rId7"}, pkg.Orphans())

	// The next allocation must not reuse the orphaned id.
	id := pkg.Relationships().Add(docpkg.HyperlinkRelType, "https://x.example.com", true)
	assert.Equal(t, "rId8", id)
}
