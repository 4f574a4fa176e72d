// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"archive/zip"
	"errors"
	"fmt"
)

// CheckpointError wraps a failed checkpoint so the session recovery path
// can distinguish validation failure from plain I/O failure.
type CheckpointError struct {
	Report Report
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s failed with %d violations",
		e.Report.Checkpoint, len(e.Report.Violations))
}

// AsCheckpointError extracts a CheckpointError from err.
func AsCheckpointError(err error) (*CheckpointError, bool) {
	var ce *CheckpointError
	ok := errors.As(err, &ce)
	return ce, ok
}

func containsErr(err, target error) bool {
	return errors.Is(err, target)
}

func isZipFormat(err error) bool {
	return errors.Is(err, zip.ErrFormat)
}
