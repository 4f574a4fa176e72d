// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

// Category classifies one changelog entry.
type Category string

const (
	// CategoryUpdated records a hyperlink repointed to live content.
	CategoryUpdated Category = "Updated"

	// CategoryExpired records a hyperlink whose target is retired.
	CategoryExpired Category = "Expired"

	// CategoryNotFound records an identifier the boundary does not know.
	CategoryNotFound Category = "NotFound"

	// CategoryError records a resolution or mutation failure attributed
	// to one hyperlink or rule.
	CategoryError Category = "Error"

	// CategoryTitleChanged records a display-text rewrite where the
	// resolved title differed from the document's.
	CategoryTitleChanged Category = "TitleChanged"
)

// Entry is one structured change record. The consumer formats and
// persists these; the engine only produces them.
type Entry struct {
	// Category is the kind of change or finding.
	Category Category

	// Identifier is the lookup id or rule name the entry refers to.
	Identifier string

	// Before is the pre-change value (URL or display text).
	Before string

	// After is the post-change value. Empty for findings that did not
	// mutate anything.
	After string

	// Detail carries the error text for CategoryError entries.
	Detail string
}
