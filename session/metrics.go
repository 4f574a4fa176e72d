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

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relink_sessions_total",
		Help: "Finished document sessions by terminal status.",
	}, []string{"status"})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relink_session_duration_seconds",
		Help:    "Wall time from session start to terminal status.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	recoveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relink_session_recoveries_total",
		Help: "Sessions that entered the backup-restore recovery path.",
	})
)
