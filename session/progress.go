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

import "time"

// Counts aggregates per-document hyperlink statistics.
type Counts struct {
	// Found is the number of hyperlinks carrying a lookup identifier.
	Found int

	// Resolved is the number of identifiers the boundary answered for,
	// regardless of the answer's status.
	Resolved int

	// Updated is the number of hyperlinks actually rewritten.
	Updated int

	// Errors is the number of failures attributed to hyperlinks or rules.
	Errors int
}

// Snapshot is one progress report, emitted at every stage boundary.
// The consumer is responsible for any UI marshaling.
type Snapshot struct {
	// Path is the document being processed.
	Path string

	// Stage is the stage the session just entered.
	Stage Stage

	// Counts is the running per-document tally.
	Counts Counts

	// Elapsed is the time since the session started.
	Elapsed time.Duration
}

// ProgressFunc receives stage-boundary snapshots. It is called from the
// session's own goroutine and must not block for long.
type ProgressFunc func(Snapshot)
