// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// jobsInFlight is the number of documents being processed.
	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aika",
		Subsystem: "batch",
		Name:      "jobs_in_flight",
		Help:      "Documents currently being processed by batch workers",
	})

	// jobsTotal counts finished documents.
	// Labels: outcome (ok, oscillation, cyclic_dependency, timeout, cache_consistency, invalid, error)
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aika",
		Subsystem: "batch",
		Name:      "jobs_total",
		Help:      "Total documents processed by outcome",
	}, []string{"outcome"})

	// jobDuration measures build plus processing time per document.
	// Labels: outcome
	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aika",
		Subsystem: "batch",
		Name:      "job_duration_seconds",
		Help:      "Time to build and process one document",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"outcome"})
)
