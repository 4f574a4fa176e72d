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

import "errors"

var (
	// ErrMissingPart is returned when a required part is absent.
	ErrMissingPart = errors.New("required package part missing")

	// ErrClosed is returned when editing a closed package.
	ErrClosed = errors.New("package is closed")

	// ErrAlreadySaved is returned when editing or re-saving after SaveTo.
	// A package is opened exactly once and saved exactly once.
	ErrAlreadySaved = errors.New("package already saved")

	// ErrRelationshipNotFound is returned when a relationship id does not
	// resolve to a live relationship.
	ErrRelationshipNotFound = errors.New("relationship not found")

	// ErrDuplicateRelationship is returned when adding an id that already
	// exists in the relationship set.
	ErrDuplicateRelationship = errors.New("duplicate relationship id")

	// ErrHyperlinkNotFound is returned when a hyperlink element for the
	// given relationship id is not present in the document part.
	ErrHyperlinkNotFound = errors.New("hyperlink element not found")
)
