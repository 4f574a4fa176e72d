// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relink/docpkg"
	"github.com/AleutianAI/relink/docpkg/testdoc"
	"github.com/AleutianAI/relink/validate"
)

func TestFile_ValidDocument(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Title")

	report, err := validate.New(nil).File(path, validate.PreProcessing)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, validate.PreProcessing, report.Checkpoint)
}

func TestFile_NotAZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip archive"), 0o644))

	report, err := validate.New(nil).File(path, validate.PreProcessing)
	require.NoError(t, err, "corruption is a violation, not an error")
	require.False(t, report.OK())
	assert.Equal(t, validate.CodeUnreadableArchive, report.Violations[0].Code)
}

func TestFile_MissingFileIsError(t *testing.T) {
	_, err := validate.New(nil).File(filepath.Join(t.TempDir(), "absent.docx"), validate.PreProcessing)
	require.Error(t, err, "inability to read at all is an I/O error")
}

func TestPackage_DanglingReference(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Title")

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	// Delete the relationship out from under the element.
	require.NoError(t, pkg.Relationships().Delete("rId1"))

	report := validate.New(nil).Package(pkg, validate.PreSave)
	require.False(t, report.OK())
	assert.Equal(t, validate.CodeDanglingReference, report.Violations[0].Code)
	assert.Equal(t, "rId1", report.Violations[0].Element)
}

func TestPackage_EmptyTarget(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Title")

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	require.NoError(t, pkg.Relationships().AddWithID(docpkg.Relationship{
		ID:   "rId9",
		Type: docpkg.HyperlinkRelType,
	}))

	report := validate.New(nil).Package(pkg, validate.PostOpen)
	require.False(t, report.OK())

	var codes []validate.Code
	for _, v := range report.Violations {
		codes = append(codes, v.Code)
	}
	assert.Contains(t, codes, validate.CodeEmptyTarget)
}

func TestPackage_StrictOrphans(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Title")

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	defer pkg.Close()

	pkg.Relationships().Add(docpkg.HyperlinkRelType, "https://stale.example.com", true)

	lenient := validate.New(nil).Package(pkg, validate.PostOpen)
	assert.True(t, lenient.OK(), "orphans pass by default")

	strict := validate.New(nil, validate.WithStrictOrphans()).Package(pkg, validate.PostOpen)
	require.False(t, strict.OK())
	assert.Equal(t, validate.CodeOrphanRelationship, strict.Violations[0].Code)
}

func TestRoundTrip_PrePostValidationMatch(t *testing.T) {
	dir := t.TempDir()
	path := testdoc.Simple(t, dir, "doc.docx", "https://example.com", "Title")
	pipeline := validate.New(nil)

	pre, err := pipeline.File(path, validate.PreProcessing)
	require.NoError(t, err)

	pkg, err := docpkg.Open(path)
	require.NoError(t, err)
	require.NoError(t, pkg.Save())
	pkg.Close()

	post, err := pipeline.File(path, validate.PostSave)
	require.NoError(t, err)

	assert.Equal(t, pre.Violations, post.Violations,
		"zero-edit save must validate identically before and after")
	assert.True(t, post.OK())
}
