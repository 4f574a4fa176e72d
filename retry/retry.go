// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retry executes operations under per-operation-class retry
// policies with backoff and jitter.
//
// Each operation class (network lookup, file I/O, package corruption
// recovery) carries its own policy: attempt budget, delay curve, and a
// classifier that decides whether a given error is worth retrying at all.
// A permanent classification short-circuits remaining attempts, which is
// what prevents retry storms on inputs that can never succeed (malformed
// URLs, invalid paths, unrecoverable package structure).
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Class is the classifier verdict for one error.
type Class int

const (
	// Transient errors are retried until the attempt budget is exhausted.
	Transient Class = iota

	// Permanent errors stop the loop immediately. No further attempts
	// are made regardless of MaxAttempts.
	Permanent
)

// Classifier maps an error to a retry class. A nil classifier treats
// every error as transient.
type Classifier func(error) Class

// Policy configures retry behavior for one operation class.
type Policy struct {
	// Name identifies the policy in logs and metrics.
	Name string

	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the per-attempt wait.
	MaxDelay time.Duration

	// JitterFraction is the maximum jitter as a fraction of the computed
	// delay (0-1). Each attempt samples uniformly in [1-j, 1+j].
	JitterFraction float64

	// Linear switches the delay curve from exponential doubling to
	// base*attempt. Used by the corruption-recovery policy, where the
	// retried operation is a whole restore pass and doubling waits buys
	// nothing.
	Linear bool

	// Classify decides transient vs permanent. Nil means always transient.
	Classify Classifier
}

// Validate checks the policy for usable values.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return ErrInvalidPolicy
	}
	if p.BaseDelay <= 0 {
		return ErrInvalidPolicy
	}
	if p.MaxDelay < p.BaseDelay {
		return ErrInvalidPolicy
	}
	if p.JitterFraction < 0 || p.JitterFraction > 1 {
		return ErrInvalidPolicy
	}
	return nil
}

// Func is an operation executed under a policy. The attempt number is
// 1-based so the operation can log which try it is on.
type Func func(ctx context.Context, attempt int) error

// Execute runs fn under the given policy.
//
// Inputs:
//   - ctx: Context for cancellation, checked before each attempt and
//     during inter-attempt waits.
//   - policy: The retry policy. Must pass Validate.
//   - fn: The operation.
//
// Outputs:
//   - error: Nil on success. A permanent error is returned as-is after a
//     single failing attempt. Exhaustion returns an *ExhaustedError
//     wrapping the final underlying error and carrying the attempt count.
func Execute(ctx context.Context, policy Policy, fn Func) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		recordAttempt(policy.Name)
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if classify(policy, err) == Permanent {
			recordPermanent(policy.Name)
			return err
		}

		if attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delayFor(policy, attempt)):
		}
	}

	recordExhausted(policy.Name)
	return &ExhaustedError{Policy: policy.Name, Attempts: policy.MaxAttempts, Err: lastErr}
}

func classify(policy Policy, err error) Class {
	if policy.Classify == nil {
		return Transient
	}
	return policy.Classify(err)
}

// delayFor computes the wait before attempt n+1, with uniform jitter.
func delayFor(policy Policy, attempt int) time.Duration {
	var base time.Duration
	if policy.Linear {
		base = policy.BaseDelay * time.Duration(attempt)
	} else {
		base = policy.BaseDelay << (attempt - 1)
	}
	if base > policy.MaxDelay || base <= 0 {
		base = policy.MaxDelay
	}

	if policy.JitterFraction <= 0 {
		return base
	}
	jitter := (rand.Float64()*2 - 1) * policy.JitterFraction
	return time.Duration(float64(base) * (1.0 + jitter))
}
