// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backup keeps one revertible snapshot generation per batch.
//
// Each batch gets a session-scoped directory under the backup root,
// named by the batch session id, holding pre-mutation copies of every
// processed file under their original names. Only one generation is
// retained: beginning a new batch discards the previous batch's
// unreverted backups. This is deliberately not a stacked undo log.
package backup

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// manifestName records original paths inside a session directory so a
// later process can revert a generation it did not create.
const manifestName = "manifest.yaml"

var (
	// ErrNothingToRevert is returned when the session has no retained
	// backups, including on a second revert of the same session.
	ErrNothingToRevert = errors.New("nothing to revert")

	// ErrUnknownSession is returned for a session id this manager never
	// issued.
	ErrUnknownSession = errors.New("unknown backup session")
)

// RestoreFailure reports one file that could not be restored. Revert is
// per-file: other files still restore.
type RestoreFailure struct {
	Path string
	Err  error
}

// RevertResult summarizes one revert.
type RevertResult struct {
	SessionID string
	Restored  int
	Failures  []RestoreFailure
}

// Manager owns the per-batch backup directory layout. The per-session
// backup map is appended to from every worker in the batch, so all
// bookkeeping is mutex-serialized.
//
// Thread Safety: Safe for concurrent use.
type Manager struct {
	root   string
	logger *slog.Logger

	mu        sync.Mutex
	sessionID string
	// backups maps original path → backup path for the live session.
	backups map[string]string
}

// NewManager creates a Manager rooted at dir.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup root: %w", err)
	}
	return &Manager{
		root:   dir,
		logger: logger.With("component", "backup.Manager"),
	}, nil
}

// BeginBatch opens a new backup generation and returns its session id.
// Any previous generation is discarded; the caller had its chance to
// revert before starting a new batch.
func (m *Manager) BeginBatch() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionID != "" {
		m.logger.Info("discarding previous backup generation",
			"session_id", m.sessionID,
			"files", len(m.backups))
		if err := os.RemoveAll(filepath.Join(m.root, m.sessionID)); err != nil {
			m.logger.Warn("failed to remove previous backup directory",
				"session_id", m.sessionID,
				"error", err)
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Join(m.root, id), 0o755); err != nil {
		return "", fmt.Errorf("creating backup session directory: %w", err)
	}

	m.sessionID = id
	m.backups = make(map[string]string)
	m.logger.Info("backup session started", "session_id", id)
	return id, nil
}

// Backup copies path, unmodified, into the session directory before any
// mutation, preserving the original filename. Distinct documents that
// share a basename get disambiguated backup names; the manifest keys on
// the full original path, so revert is unaffected.
//
// Outputs:
//   - string: The backup file path.
//   - error: ErrUnknownSession for a stale id, or the copy failure.
func (m *Manager) Backup(path, sessionID string) (string, error) {
	m.mu.Lock()
	if sessionID != m.sessionID {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	dest, ok := m.backups[path]
	if !ok {
		dest = filepath.Join(m.root, sessionID, m.backupNameLocked(path))
	}
	m.mu.Unlock()

	if err := copyFile(path, dest); err != nil {
		return "", fmt.Errorf("backing up %s: %w", path, err)
	}

	m.mu.Lock()
	m.backups[path] = dest
	err := m.writeManifestLocked(sessionID)
	m.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("recording backup of %s: %w", path, err)
	}

	m.logger.Debug("backed up file", "path", path, "backup", dest)
	return dest, nil
}

// backupNameLocked picks an unused name inside the session directory.
// Two documents with the same basename must never share a backup slot:
// the second would overwrite the first's snapshot and revert would then
// cross-restore their contents. Caller holds mu.
func (m *Manager) backupNameLocked(path string) string {
	base := filepath.Base(path)
	name := base
	for n := 1; m.nameTakenLocked(name); n++ {
		name = fmt.Sprintf("%d_%s", n, base)
	}
	return name
}

func (m *Manager) nameTakenLocked(name string) bool {
	for _, dest := range m.backups {
		if filepath.Base(dest) == name {
			return true
		}
	}
	return false
}

// writeManifestLocked persists the original-path map. Caller holds mu.
func (m *Manager) writeManifestLocked(sessionID string) error {
	data, err := yaml.Marshal(m.backups)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.root, sessionID, manifestName), data, 0o644)
}

// loadManifest reads a session directory's manifest from disk, for
// reverting a generation created by an earlier process.
func (m *Manager) loadManifest(sessionID string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(m.root, sessionID, manifestName))
	if err != nil {
		return nil, err
	}
	backups := make(map[string]string)
	if err := yaml.Unmarshal(data, &backups); err != nil {
		return nil, fmt.Errorf("parsing backup manifest: %w", err)
	}
	return backups, nil
}

// BackupPath returns the retained backup for an original path, if any.
func (m *Manager) BackupPath(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dest, ok := m.backups[path]
	return dest, ok
}

// Revert restores every backed-up file of the session, then discards the
// backup set. All-or-nothing at session granularity, per-file at the
// copy level: one locked file does not stop the others, failures are
// reported individually.
//
// A second revert of the same session returns ErrNothingToRevert without
// touching any file.
func (m *Manager) Revert(sessionID string) (RevertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := RevertResult{SessionID: sessionID}

	backups := m.backups
	if sessionID != m.sessionID {
		// Not the live generation: revert from the on-disk manifest if
		// this session's directory still exists.
		loaded, err := m.loadManifest(sessionID)
		if err != nil {
			return result, ErrNothingToRevert
		}
		backups = loaded
	}
	if len(backups) == 0 {
		return result, ErrNothingToRevert
	}

	for original, backupPath := range backups {
		if err := copyFile(backupPath, original); err != nil {
			result.Failures = append(result.Failures, RestoreFailure{Path: original, Err: err})
			m.logger.Error("restore failed", "path", original, "error", err)
			continue
		}
		result.Restored++
	}

	// Discard the generation regardless of per-file failures; the
	// failures are reported, and keeping half a generation invites a
	// second, inconsistent revert.
	if err := os.RemoveAll(filepath.Join(m.root, sessionID)); err != nil {
		m.logger.Warn("failed to remove backup directory after revert",
			"session_id", sessionID,
			"error", err)
	}
	if sessionID == m.sessionID {
		m.backups = make(map[string]string)
		m.sessionID = ""
	}

	m.logger.Info("batch reverted",
		"session_id", sessionID,
		"restored", result.Restored,
		"failures", len(result.Failures))
	return result, nil
}

// RestoreFile restores a single file from the live session without
// discarding the generation. The document session recovery path uses
// this for its own file only.
func (m *Manager) RestoreFile(path string) error {
	m.mu.Lock()
	backupPath, ok := m.backups[path]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNothingToRevert, path)
	}
	return copyFile(backupPath, path)
}

// copyFile copies src to dst byte-for-byte.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
