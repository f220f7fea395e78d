// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("mlsearch.eval")
	meter  = otel.Meter("mlsearch.eval")
)

var (
	runDuration metric.Float64Histogram
	runTotal    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runDuration, err = meter.Float64Histogram(
			"mlsearch_program_duration_seconds",
			metric.WithDescription("Wall-clock duration of training and prediction programs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"mlsearch_program_runs_total",
			metric.WithDescription("Total number of training and prediction program runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRunSpan creates a span for one program run.
func startRunSpan(ctx context.Context, phase, dir string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Evaluator."+phase,
		trace.WithAttributes(
			attribute.String("eval.phase", phase),
			attribute.String("eval.dir", dir),
		),
	)
}

// recordRun records a finished program run. outcome is "ok" or a failure name.
func recordRun(ctx context.Context, phase, outcome string, elapsed time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("outcome", outcome),
	)
	runDuration.Record(ctx, elapsed.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)
}
