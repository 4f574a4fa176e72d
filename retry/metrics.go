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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relink_retry_attempts_total",
		Help: "Operation attempts by policy",
	}, []string{"policy"})

	permanentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relink_retry_permanent_total",
		Help: "Attempts short-circuited by a permanent classification",
	}, []string{"policy"})

	exhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relink_retry_exhausted_total",
		Help: "Operations that failed all attempts",
	}, []string{"policy"})
)

func recordAttempt(policy string)   { attemptsTotal.WithLabelValues(policy).Inc() }
func recordPermanent(policy string) { permanentTotal.WithLabelValues(policy).Inc() }
func recordExhausted(policy string) { exhaustedTotal.WithLabelValues(policy).Inc() }
