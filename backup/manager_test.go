// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBackupAndRevert(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(filepath.Join(dir, "backups"), nil)
	require.NoError(t, err)

	doc := writeFile(t, dir, "report.docx", "original")

	session, err := mgr.BeginBatch()
	require.NoError(t, err)

	backupPath, err := mgr.Backup(doc, session)
	require.NoError(t, err)
	assert.Equal(t, "report.docx", filepath.Base(backupPath))

	// Mutate the original, then revert.
	require.NoError(t, os.WriteFile(doc, []byte("mutated"), 0o644))

	result, err := mgr.Revert(session)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Restored)
	assert.Empty(t, result.Failures)

	got, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}

func TestRevertIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(filepath.Join(dir, "backups"), nil)
	require.NoError(t, err)

	doc := writeFile(t, dir, "a.docx", "v1")
	session, err := mgr.BeginBatch()
	require.NoError(t, err)
	_, err = mgr.Backup(doc, session)
	require.NoError(t, err)

	_, err = mgr.Revert(session)
	require.NoError(t, err)

	// Second revert of the same session has nothing to restore.
	require.NoError(t, os.WriteFile(doc, []byte("v2"), 0o644))
	_, err = mgr.Revert(session)
	assert.ErrorIs(t, err, ErrNothingToRevert)

	got, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got), "second revert must not touch files")
}

func TestBeginBatchDiscardsPreviousGeneration(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(filepath.Join(dir, "backups"), nil)
	require.NoError(t, err)

	doc := writeFile(t, dir, "a.docx", "gen1")
	first, err := mgr.BeginBatch()
	require.NoError(t, err)
	firstBackup, err := mgr.Backup(doc, first)
	require.NoError(t, err)

	second, err := mgr.BeginBatch()
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// The first generation's directory is gone and its session id is
	// no longer revertible.
	_, statErr := os.Stat(firstBackup)
	assert.True(t, os.IsNotExist(statErr))
	_, err = mgr.Revert(first)
	assert.ErrorIs(t, err, ErrNothingToRevert)
}

func TestBackupRejectsStaleSession(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(filepath.Join(dir, "backups"), nil)
	require.NoError(t, err)

	doc := writeFile(t, dir, "a.docx", "v1")
	first, err := mgr.BeginBatch()
	require.NoError(t, err)
	_, err = mgr.BeginBatch()
	require.NoError(t, err)

	_, err = mgr.Backup(doc, first)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestRevertReportsPerFileFailures(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(filepath.Join(dir, "backups"), nil)
	require.NoError(t, err)

	good := writeFile(t, dir, "good.docx", "g1")
	bad := writeFile(t, dir, "bad.docx", "b1")

	session, err := mgr.BeginBatch()
	require.NoError(t, err)
	_, err = mgr.Backup(good, session)
	require.NoError(t, err)
	badBackup, err := mgr.Backup(bad, session)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(good, []byte("g2"), 0o644))
	require.NoError(t, os.Remove(badBackup))

	result, err := mgr.Revert(session)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Restored)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, bad, result.Failures[0].Path)

	got, err := os.ReadFile(good)
	require.NoError(t, err)
	assert.Equal(t, "g1", string(got))
}

func TestBackupDisambiguatesSharedBasenames(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(filepath.Join(dir, "backups"), nil)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "b"), 0o755))
	docA := writeFile(t, filepath.Join(dir, "a"), "doc.docx", "CONTENT-A")
	docB := writeFile(t, filepath.Join(dir, "b"), "doc.docx", "CONTENT-B")

	session, err := mgr.BeginBatch()
	require.NoError(t, err)

	backupA, err := mgr.Backup(docA, session)
	require.NoError(t, err)
	backupB, err := mgr.Backup(docB, session)
	require.NoError(t, err)
	require.NotEqual(t, backupA, backupB,
		"documents sharing a basename must not share a backup slot")

	require.NoError(t, os.WriteFile(docA, []byte("mutated"), 0o644))
	require.NoError(t, os.WriteFile(docB, []byte("mutated"), 0o644))

	result, err := mgr.Revert(session)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Restored)
	assert.Empty(t, result.Failures)

	gotA, err := os.ReadFile(docA)
	require.NoError(t, err)
	assert.Equal(t, "CONTENT-A", string(gotA))
	gotB, err := os.ReadFile(docB)
	require.NoError(t, err)
	assert.Equal(t, "CONTENT-B", string(gotB))
}

func TestBackupSamePathReusesSlot(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(filepath.Join(dir, "backups"), nil)
	require.NoError(t, err)

	doc := writeFile(t, dir, "a.docx", "v1")
	session, err := mgr.BeginBatch()
	require.NoError(t, err)

	first, err := mgr.Backup(doc, session)
	require.NoError(t, err)
	second, err := mgr.Backup(doc, session)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRevertFromManifestAcrossProcesses(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "backups")

	mgr, err := NewManager(root, nil)
	require.NoError(t, err)
	doc := writeFile(t, dir, "a.docx", "original")
	session, err := mgr.BeginBatch()
	require.NoError(t, err)
	_, err = mgr.Backup(doc, session)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(doc, []byte("mutated"), 0o644))

	// A fresh manager (new process) reverts via the on-disk manifest.
	fresh, err := NewManager(root, nil)
	require.NoError(t, err)
	result, err := fresh.Revert(session)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Restored)

	got, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}

func TestRestoreFile(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(filepath.Join(dir, "backups"), nil)
	require.NoError(t, err)

	doc := writeFile(t, dir, "a.docx", "v1")
	session, err := mgr.BeginBatch()
	require.NoError(t, err)
	_, err = mgr.Backup(doc, session)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(doc, []byte("broken"), 0o644))
	require.NoError(t, mgr.RestoreFile(doc))

	got, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	// The generation survives a single-file restore.
	result, err := mgr.Revert(session)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Restored)
}
