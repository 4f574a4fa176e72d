// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import "testing"

func TestLookupID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			name:  "cms identifier lowercase prefix",
			input: "cms-ABC-123456",
			want:  "CMS-ABC-123456",
			ok:    true,
		},
		{
			name:  "tsrc identifier",
			input: "TSRC-foo-000001",
			want:  "TSRC-FOO-000001",
			ok:    true,
		},
		{
			name:  "seven digit suffix must not match",
			input: "CMS-PRD1-1234567",
			ok:    false,
		},
		{
			name:  "identifier carried in fragment",
			input: "https://docs.example.com/view?id=9#CMS-PRD1-654321",
			want:  "CMS-PRD1-654321",
			ok:    true,
		},
		{
			name:  "identifier embedded in path",
			input: "https://example.com/content/tsrc-legal-004200/latest",
			want:  "TSRC-LEGAL-004200",
			ok:    true,
		},
		{
			name:  "unknown prefix",
			input: "DOC-ABC-123456",
			ok:    false,
		},
		{
			name:  "five digit suffix",
			input: "CMS-ABC-12345",
			ok:    false,
		},
		{
			name:  "missing middle segment",
			input: "CMS-123456",
			ok:    false,
		},
		{
			name:  "empty input",
			input: "",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LookupID(tt.input)
			if ok != tt.ok {
				t.Fatalf("LookupID(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("LookupID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestInlineContentID(t *testing.T) {
	tests := []struct {
		name    string
		display string
		want    string
		ok      bool
	}{
		{"parenthesized id", "Records Retention Policy (204518)", "204518", true},
		{"bare trailing id", "Records Retention Policy 204518", "204518", true},
		{"no id", "Records Retention Policy", "", false},
		{"seven digits is not a content id", "Policy 2045187", "", false},
		{"id must be trailing", "204518 Policy", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := InlineContentID(tt.display)
			if ok != tt.ok {
				t.Fatalf("InlineContentID(%q) ok = %v, want %v", tt.display, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("InlineContentID(%q) = %q, want %q", tt.display, got, tt.want)
			}
		})
	}
}

func TestStripInlineContentID(t *testing.T) {
	tests := []struct {
		display string
		want    string
	}{
		{"Records Retention Policy (204518)", "Records Retention Policy"},
		{"Records Retention Policy 204518", "Records Retention Policy"},
		{"Records Retention Policy", "Records Retention Policy"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := StripInlineContentID(tt.display); got != tt.want {
			t.Errorf("StripInlineContentID(%q) = %q, want %q", tt.display, got, tt.want)
		}
	}
}
