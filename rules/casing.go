// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// caseClass is the casing shape of a matched span.
type caseClass int

const (
	caseVerbatim caseClass = iota
	caseUpper
	caseLower
	caseFirstUpper
)

// classify buckets a matched span by its letter casing. Spans with no
// letters, or mixed casing beyond a leading capital, keep the
// replacement verbatim.
func classify(s string) caseClass {
	var letters, upper, lower int
	firstIsUpper := false
	rest := true

	for i, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.IsUpper(r):
			upper++
			if i > 0 {
				rest = false
			} else {
				firstIsUpper = true
			}
		case unicode.IsLower(r):
			lower++
		}
	}

	switch {
	case letters == 0:
		return caseVerbatim
	case upper == letters:
		return caseUpper
	case lower == letters:
		return caseLower
	case firstIsUpper && rest:
		return caseFirstUpper
	default:
		return caseVerbatim
	}
}

// mirrorCase transforms replacement to match the casing class of the
// matched span: ALL-CAPS stays all caps, all-lowercase stays lower, a
// single leading capital carries over, anything else is used verbatim.
func mirrorCase(matched, replacement string) string {
	switch classify(matched) {
	case caseUpper:
		return strings.ToUpper(replacement)
	case caseLower:
		return strings.ToLower(replacement)
	case caseFirstUpper:
		r, size := utf8.DecodeRuneInString(replacement)
		if r == utf8.RuneError {
			return replacement
		}
		return string(unicode.ToUpper(r)) + strings.ToLower(replacement[size:])
	default:
		return replacement
	}
}
