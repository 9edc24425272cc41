// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for the interpretation engine.
var (
	tracer = otel.Tracer("aika.interpret.engine")
	meter  = otel.Meter("aika.interpret.engine")
)

// Metrics for document processing.
var (
	documentsProcessed metric.Int64Counter
	processDuration    metric.Float64Histogram
	searchNodes        metric.Int64Counter
	searchLeaves       metric.Int64Counter
	propagationRounds  metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		documentsProcessed, err = meter.Int64Counter(
			"interpret_documents_processed_total",
			metric.WithDescription("Total number of processed documents by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		processDuration, err = meter.Float64Histogram(
			"interpret_process_duration_seconds",
			metric.WithDescription("Duration of Document.Process"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchNodes, err = meter.Int64Counter(
			"interpret_search_nodes_total",
			metric.WithDescription("Total number of search node branches by classification"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchLeaves, err = meter.Int64Counter(
			"interpret_search_leaves_total",
			metric.WithDescription("Total number of evaluated interpretations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		propagationRounds, err = meter.Int64Histogram(
			"interpret_propagation_rounds",
			metric.WithDescription("Highest round reached in the best interpretation"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// outcome maps a Process error to a low-cardinality label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrOscillation):
		return "oscillation"
	case errors.Is(err, ErrCyclicDependency):
		return "cyclic_dependency"
	case errors.Is(err, ErrCacheConsistency):
		return "cache_consistency"
	default:
		return "error"
	}
}

// recordProcess records the metrics of one Process call.
func recordProcess(ctx context.Context, s Stats, err error) {
	if initErr := initMetrics(); initErr != nil {
		return
	}
	documentsProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
	processDuration.Record(ctx, s.Elapsed.Seconds())
	searchNodes.Add(ctx, int64(s.Explored), metric.WithAttributes(attribute.String("debug", DebugExplore.String())))
	searchNodes.Add(ctx, int64(s.Cached), metric.WithAttributes(attribute.String("debug", DebugCached.String())))
	searchNodes.Add(ctx, int64(s.Limited), metric.WithAttributes(attribute.String("debug", DebugLimited.String())))
	searchLeaves.Add(ctx, int64(s.Leaves))
}

// recordRounds records the highest round of a processed document.
func recordRounds(ctx context.Context, rounds int) {
	if initErr := initMetrics(); initErr != nil {
		return
	}
	propagationRounds.Record(ctx, int64(rounds))
}
