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

import "bytes"

// TextRuns returns the unescaped contents of every text run in the
// document part, in document order. Runs inside hyperlink elements are
// included; the replacement rule engine decides what to touch.
func (p *Package) TextRuns() []string {
	matches := textRunPattern.FindAllSubmatch(p.document, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, unescapeText(string(m[1])))
	}
	return out
}

// TransformRuns applies fn to every text run. fn returns the replacement
// text and whether the run changed. Unchanged runs keep their original
// bytes exactly.
//
// Outputs:
//   - int: Number of runs rewritten.
func (p *Package) TransformRuns(fn func(text string) (string, bool)) (int, error) {
	if err := p.mutable(); err != nil {
		return 0, err
	}

	matches := textRunPattern.FindAllSubmatchIndex(p.document, -1)
	if len(matches) == 0 {
		return 0, nil
	}

	changed := 0
	var edited bytes.Buffer
	prev := 0
	for _, m := range matches {
		// m[2]:m[3] is the run content group.
		original := unescapeText(string(p.document[m[2]:m[3]]))
		replacement, ok := fn(original)
		if !ok {
			continue
		}
		edited.Write(p.document[prev:m[2]])
		edited.WriteString(escapeText(replacement))
		prev = m[3]
		changed++
	}
	if changed == 0 {
		return 0, nil
	}
	edited.Write(p.document[prev:])
	p.replaceDocument(edited.Bytes())
	return changed, nil
}
