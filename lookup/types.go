// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lookup resolves lookup identifiers to canonical titles and
// content ids through an external boundary, with time-bounded
// memoization and per-operation retry.
package lookup

import "errors"

// ResolutionStatus classifies the boundary's answer for one identifier.
// Derived from response content, never from transport status alone: a
// 200 response can still say "expired" or "missing" in its payload.
type ResolutionStatus string

const (
	// StatusValid means the identifier maps to live content.
	StatusValid ResolutionStatus = "valid"
	// StatusExpired means the content exists but is retired.
	StatusExpired ResolutionStatus = "expired"
	// StatusNotFound means the boundary does not know the identifier.
	StatusNotFound ResolutionStatus = "not_found"
)

// Resolution is the canonical metadata for one identifier.
type Resolution struct {
	Identifier string           `json:"identifier"`
	Status     ResolutionStatus `json:"status"`
	Title      string           `json:"title"`
	ContentID  string           `json:"content_id"`
}

var (
	// ErrEmptyIdentifier is returned for a blank lookup key.
	ErrEmptyIdentifier = errors.New("empty lookup identifier")

	// ErrBoundaryResponse is returned when the boundary answers with a
	// payload the client cannot interpret.
	ErrBoundaryResponse = errors.New("uninterpretable lookup boundary response")
)
