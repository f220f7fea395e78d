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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/mlsearch/services/search/sandbox"
	"github.com/AleutianAI/mlsearch/services/search/workspace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EvalResult is the scored outcome of one training run.
type EvalResult struct {
	// Score is oriented so that higher is better.
	Score float64

	// ScoreStd is the reported spread across folds. Zero when absent.
	ScoreStd float64

	// Metric is the metric name as reported by the training program.
	Metric string

	// Kind is the known metric kind for Metric, or Custom.
	Kind MetricKind

	// Execution is the captured training run.
	Execution *sandbox.Result
}

// metricsArtifact mirrors artifacts/metrics.json.
type metricsArtifact struct {
	Score     *float64  `json:"score"`
	ScoreStd  *float64  `json:"score_std"`
	Metric    *string   `json:"metric"`
	Direction Direction `json:"direction"`
}

// Evaluator runs the training and prediction programs of a workspace.
//
// Thread Safety: Safe for concurrent use on distinct workspaces.
type Evaluator struct {
	config   *Config
	executor *sandbox.Executor
	logger   *slog.Logger
}

// NewEvaluator creates an evaluator.
//
// Inputs:
//
//	executor - Runs the programs. Must not be nil.
//	logger - Logger for structured logging. Nil uses slog.Default().
//	opts - Configuration options
//
// Outputs:
//
//	*Evaluator - Ready to use evaluator
func NewEvaluator(executor *sandbox.Executor, logger *slog.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		config:   NewConfig(opts...),
		executor: executor,
		logger:   logger,
	}
}

// Config returns the evaluator's configuration.
func (e *Evaluator) Config() Config {
	return *e.config
}

// Evaluate trains the workspace and returns its oriented score.
//
// Description:
//
//	Removes any existing metrics artifact, runs the training program with
//	src/ as working directory, then reads artifacts/metrics.json. The score
//	is negated when the artifact declares "direction": "min".
//
// Inputs:
//
//	ctx - Context for cancellation
//	ws - Workspace to evaluate
//	timeout - Wall-clock limit for the training program
//
// Outputs:
//
//	*EvalResult - Scored result. Nil on error.
//	error - *sandbox.TimedOutError, *TrainingFailedError,
//	        *MissingArtifactError, ErrInvalidMetrics, or an I/O error
//
// Thread Safety: Safe for concurrent use on distinct workspaces.
func (e *Evaluator) Evaluate(ctx context.Context, ws *workspace.Workspace, timeout time.Duration) (*EvalResult, error) {
	if ws == nil {
		return nil, ErrNilWorkspace
	}
	ctx, span := startRunSpan(ctx, "Evaluate", ws.Root())
	defer span.End()

	if err := os.Remove(ws.MetricsPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale metrics: %w", err)
	}

	result, err := e.run(ctx, ws, e.config.TrainScript, timeout)
	if err != nil {
		e.finish(ctx, span, "train", err, result)
		return nil, err
	}
	if result.ExitCode != 0 {
		err := &TrainingFailedError{
			ExitCode: result.ExitCode,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
		}
		e.finish(ctx, span, "train", err, result)
		return nil, err
	}

	evalResult, err := e.readMetrics(ws)
	if err != nil {
		e.finish(ctx, span, "train", err, result)
		return nil, err
	}
	evalResult.Execution = result

	if evalResult.Kind.LooksUnoriented(evalResult.Score) {
		e.logger.Warn("Loss-like metric reported as positive score; higher is treated as better",
			slog.String("metric", evalResult.Metric),
			slog.Float64("score", evalResult.Score),
		)
	}

	span.SetAttributes(
		attribute.Float64("eval.score", evalResult.Score),
		attribute.String("eval.metric", evalResult.Metric),
	)
	e.finish(ctx, span, "train", nil, result)

	e.logger.Info("Evaluation complete",
		slog.String("dir", ws.Root()),
		slog.String("metric", evalResult.Metric),
		slog.Float64("score", evalResult.Score),
		slog.Float64("score_std", evalResult.ScoreStd),
		slog.Duration("elapsed", result.Elapsed),
	)
	return evalResult, nil
}

// Predict runs the prediction program and returns its raw result.
//
// Any existing submission file is removed first. A nonzero exit is not an
// error at this layer; callers inspect Result.ExitCode.
func (e *Evaluator) Predict(ctx context.Context, ws *workspace.Workspace, timeout time.Duration) (*sandbox.Result, error) {
	if ws == nil {
		return nil, ErrNilWorkspace
	}
	ctx, span := startRunSpan(ctx, "Predict", ws.Root())
	defer span.End()

	if err := os.Remove(ws.SubmissionPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale submission: %w", err)
	}

	result, err := e.run(ctx, ws, e.config.PredictScript, timeout)
	e.finish(ctx, span, "predict", err, result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// run executes one script of the workspace through the interpreter.
func (e *Evaluator) run(ctx context.Context, ws *workspace.Workspace, script string, timeout time.Duration) (*sandbox.Result, error) {
	scriptPath, err := ws.Resolve(filepath.Join(workspace.SrcDirName, script))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", script, err)
	}
	return e.executor.Execute(ctx, sandbox.Request{
		Program: e.config.Interpreter,
		Args:    []string{scriptPath},
		Dir:     ws.SrcDir(),
		Timeout: timeout,
		Env:     e.config.Env,
	})
}

// readMetrics parses artifacts/metrics.json.
func (e *Evaluator) readMetrics(ws *workspace.Workspace) (*EvalResult, error) {
	path := ws.MetricsPath()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &MissingArtifactError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("read metrics: %w", err)
	}
	return ParseMetrics(data)
}

// ParseMetrics decodes a metrics artifact into an oriented EvalResult.
//
// Outputs:
//
//	*EvalResult - Result without Execution set
//	error - ErrInvalidMetrics (wrapped) on malformed content
func ParseMetrics(data []byte) (*EvalResult, error) {
	var artifact metricsArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetrics, err)
	}
	if artifact.Score == nil {
		return nil, fmt.Errorf("%w: missing score", ErrInvalidMetrics)
	}
	if artifact.Metric == nil || *artifact.Metric == "" {
		return nil, fmt.Errorf("%w: missing metric", ErrInvalidMetrics)
	}
	switch artifact.Direction {
	case "", Maximize, Minimize:
	default:
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidMetrics, artifact.Direction)
	}

	kind := LookupMetric(*artifact.Metric)
	result := &EvalResult{
		Score:  kind.Orient(*artifact.Score, artifact.Direction),
		Metric: *artifact.Metric,
		Kind:   kind,
	}
	if artifact.ScoreStd != nil {
		result.ScoreStd = math.Abs(*artifact.ScoreStd)
	}
	return result, nil
}

// finish records the outcome of a program run on the span and meters.
func (e *Evaluator) finish(ctx context.Context, span trace.Span, phase string, err error, result *sandbox.Result) {
	var elapsed time.Duration
	if result != nil {
		elapsed = result.Elapsed
		span.SetAttributes(attribute.Int("eval.exit_code", result.ExitCode))
	}
	outcome := Classify(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("Program run failed",
			slog.String("phase", phase),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
	}
	recordRun(ctx, phase, outcome, elapsed)
}

// Classify maps an evaluation error to a stable condition name.
//
// Outputs:
//
//	string - "ok" for nil, otherwise one of "timed_out", "training_failed",
//	         "missing_artifact", "invalid_metrics", "cancelled" or "error"
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, sandbox.ErrTimedOut):
		return "timed_out"
	case errors.Is(err, ErrTrainingFailed):
		return "training_failed"
	case errors.Is(err, ErrMissingArtifact):
		return "missing_artifact"
	case errors.Is(err, ErrInvalidMetrics):
		return "invalid_metrics"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
