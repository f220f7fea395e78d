// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package controller

import (
	"context"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("mlsearch.controller")

// knownStatuses bounds the status label. Anything else is recorded as
// "unknown".
var knownStatuses = map[string]bool{
	"succeeded":            true,
	"duplicate":            true,
	FailureTimedOut:        true,
	FailureTrainingFailed:  true,
	FailureMissingArtifact: true,
	FailureInvalidMetrics:  true,
	FailureCancelled:       true,
	FailureError:           true,
}

func sanitizeStatus(status string) string {
	if knownStatuses[status] {
		return status
	}
	return "unknown"
}

var (
	// candidatesTotal counts committed candidates by outcome.
	//
	// Labels:
	//   - status: "succeeded", "duplicate", or a failure name
	candidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlsearch",
			Subsystem: "search",
			Name:      "candidates_total",
			Help:      "Total candidates evaluated by outcome",
		},
		[]string{"status"},
	)

	// searchesTotal counts searches by outcome.
	//
	// Labels:
	//   - outcome: "completed", "baseline_failed", "interrupted", or "error"
	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlsearch",
			Subsystem: "search",
			Name:      "runs_total",
			Help:      "Total searches by outcome",
		},
		[]string{"outcome"},
	)

	// bestScore is the best oriented score of the most recent search.
	bestScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mlsearch",
			Subsystem: "search",
			Name:      "best_score",
			Help:      "Best oriented score of the most recent search",
		},
	)

	// finalizeTotal counts finalize attempts by outcome.
	finalizeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mlsearch",
			Subsystem: "finalize",
			Name:      "runs_total",
			Help:      "Total finalize attempts by outcome",
		},
		[]string{"outcome"},
	)
)

func recordCandidate(status string) {
	candidatesTotal.WithLabelValues(sanitizeStatus(status)).Inc()
}

func recordSearch(outcome string, best float64) {
	searchesTotal.WithLabelValues(outcome).Inc()
	if !math.IsInf(best, 0) && !math.IsNaN(best) {
		bestScore.Set(best)
	}
}

func recordFinalize(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	finalizeTotal.WithLabelValues(outcome).Inc()
}

// startSearchSpan creates a span for one search.
func startSearchSpan(ctx context.Context, runID, root string, selected int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Controller.RunSearch",
		trace.WithAttributes(
			attribute.String("search.run_id", runID),
			attribute.String("search.workspace", root),
			attribute.Int("search.candidates", selected),
		),
	)
}

// startCandidateSpan creates a span for one candidate evaluation.
func startCandidateSpan(ctx context.Context, index int, description string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Controller.evaluateCandidate",
		trace.WithAttributes(
			attribute.Int("candidate.index", index),
			attribute.String("candidate.description", description),
		),
	)
}

// endSpan records err, if any, and ends the span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
