// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retry

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPolicy is returned when a policy fails validation.
	ErrInvalidPolicy = errors.New("invalid retry policy")

	// ErrMalformedRequest marks a request that can never be sent
	// successfully. Classified permanent by the network policy.
	ErrMalformedRequest = errors.New("malformed lookup request")

	// ErrUnrecoverableStructure marks package damage a restore pass
	// cannot repair. Classified permanent by the recovery policy.
	ErrUnrecoverableStructure = errors.New("unrecoverable package structure")
)

// ExhaustedError is returned when every attempt under a policy failed.
// It carries the attempt count and the final underlying error.
type ExhaustedError struct {
	Policy   string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted for %s after %d attempts: %v", e.Policy, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// IsExhausted reports whether err is (or wraps) an ExhaustedError.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}
