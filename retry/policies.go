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
	"io/fs"
	"net"
	"net/url"
	"os"
	"time"
)

// NetworkPolicy returns the policy for lookup-boundary calls: more
// attempts, a large delay ceiling, standard jitter. Malformed URLs and
// DNS no-such-host failures are permanent; they never resolve on retry.
func NetworkPolicy() Policy {
	return Policy{
		Name:           "network_lookup",
		MaxAttempts:    5,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.2,
		Classify:       classifyNetwork,
	}
}

// FilePolicy returns the policy for file reads, writes and copies,
// tuned for transient sharing violations: many quick attempts with a
// small ceiling. Invalid paths and permission failures are permanent.
func FilePolicy() Policy {
	return Policy{
		Name:           "file_io",
		MaxAttempts:    6,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		JitterFraction: 0.2,
		Classify:       classifyFile,
	}
}

// RecoveryPolicy returns the policy for restoring a document from its
// backup after a failed checkpoint. Few attempts, linear backoff, small
// jitter: the retried unit is a whole restore-and-revalidate pass, and
// its retry condition is a validation failure rather than an exception.
func RecoveryPolicy() Policy {
	return Policy{
		Name:           "package_recovery",
		MaxAttempts:    3,
		BaseDelay:      250 * time.Millisecond,
		MaxDelay:       time.Second,
		JitterFraction: 0.05,
		Linear:         true,
		Classify:       classifyRecovery,
	}
}

func classifyNetwork(err error) Class {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// A parse failure means the request can never be built.
		if urlErr.Op == "parse" {
			return Permanent
		}
		err = urlErr.Err
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return Permanent
	}
	if errors.Is(err, ErrMalformedRequest) {
		return Permanent
	}
	return Transient
}

func classifyFile(err error) Class {
	switch {
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, fs.ErrInvalid):
		return Permanent
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, fs.ErrInvalid) {
		return Permanent
	}
	return Transient
}

func classifyRecovery(err error) Class {
	if errors.Is(err, ErrUnrecoverableStructure) {
		return Permanent
	}
	return Transient
}
