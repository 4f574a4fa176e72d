// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract pulls lookup identifiers and inline content ids out of
// hyperlink URLs and display text.
//
// A lookup identifier is a structured tag embedded in a hyperlink, e.g.
// "CMS-ABC-123456" or "TSRC-foo-000001". Matching is case-insensitive and
// anchored on word boundaries at both ends so that a longer digit run
// ("CMS-PRD1-1234567") never half-matches as a 6-digit id.
//
// Extraction always scans the complete original URL, fragment included.
// Source systems routinely carry the 6-digit suffix only in the fragment,
// so splitting the URL before matching loses required data.
package extract

import (
	"regexp"
	"strings"
)

// lookupIDPattern matches the two accepted identifier families:
// a source-prefix tag (CMS or TSRC), a hyphen-delimited middle segment,
// and a strict 6-digit suffix. \b anchors prevent partial digit matches.
var lookupIDPattern = regexp.MustCompile(`(?i)\b(?:CMS|TSRC)-[A-Za-z0-9]+-\d{6}\b`)

// inlineContentIDPattern matches a trailing 6-digit content id in display
// text, with or without parentheses: "Policy Title (123456)" or
// "Policy Title 123456".
var inlineContentIDPattern = regexp.MustCompile(`(?:\((\d{6})\)|\b(\d{6})\b)\s*$`)

// LookupID extracts the lookup identifier from a hyperlink URL or its
// display text.
//
// Inputs:
//   - s: Raw text to scan. The caller should pass the whole original URL
//     (including any fragment), not a pre-split address component.
//
// Outputs:
//   - string: The matched identifier, upper-cased for cache stability.
//   - bool: False if no identifier is present.
func LookupID(s string) (string, bool) {
	m := lookupIDPattern.FindString(s)
	if m == "" {
		return "", false
	}
	return strings.ToUpper(m), true
}

// InlineContentID extracts an existing 6-digit content id from hyperlink
// display text, for comparison against a freshly resolved id.
//
// Outputs:
//   - string: The 6-digit id without parentheses.
//   - bool: False if the text carries no trailing content id.
func InlineContentID(display string) (string, bool) {
	m := inlineContentIDPattern.FindStringSubmatch(display)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return m[2], true
}

// StripInlineContentID returns display text with any trailing content id
// (parenthesized or bare) removed, trimmed of surrounding whitespace.
// Rule matching compares titles in this stripped form.
func StripInlineContentID(display string) string {
	return strings.TrimSpace(inlineContentIDPattern.ReplaceAllString(display, ""))
}
