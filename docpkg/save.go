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
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
)

// SaveTo writes the package to path as a new zip, then marks the package
// saved. The write goes to a temp file in the destination directory and
// is renamed into place, so a crash mid-write never leaves a truncated
// package at the destination.
//
// SaveTo may be called once per package. Parts keep their original order;
// the document and relationships parts carry the session's edits, every
// other part is copied bit-for-bit.
func (p *Package) SaveTo(path string) error {
	if p.closed {
		return ErrClosed
	}
	if p.saved {
		return ErrAlreadySaved
	}

	relsData, err := p.rels.marshal()
	if err != nil {
		return fmt.Errorf("serializing relationships: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".relink-save-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-ops once the rename has happened.
		tmp.Close()
		os.Remove(tmpName)
	}()

	zw := zip.NewWriter(tmp)
	for _, name := range p.partNames {
		data := p.parts[name]
		switch name {
		case DocumentPart:
			data = p.document
		case RelationshipsPart:
			data = relsData
		}

		w, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("creating part %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing part %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing package: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	p.saved = true
	return nil
}

// Save writes the package back to the path it was opened from.
func (p *Package) Save() error {
	return p.SaveTo(p.path)
}
