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
	"errors"
	"fmt"

	"github.com/AleutianAI/mlsearch/services/search/eval"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilWorkspace indicates a nil workspace was passed.
	ErrNilWorkspace = errors.New("workspace must not be nil")

	// ErrNilTree indicates a nil solution tree was passed.
	ErrNilTree = errors.New("solution tree must not be nil")

	// ErrInvalidTimeout indicates a zero or negative timeout.
	ErrInvalidTimeout = errors.New("timeout must be positive")

	// ErrBaselineFailed indicates the unmodified workspace could not be
	// evaluated. The underlying cause is wrapped.
	ErrBaselineFailed = errors.New("baseline evaluation failed")

	// ErrNoSuccessfulNode indicates a tree without any succeeded node.
	ErrNoSuccessfulNode = errors.New("no successful node to finalize")

	// ErrNodeNotFound indicates an unknown node id.
	ErrNodeNotFound = errors.New("node not found")

	// ErrSnapshotMissing indicates a node whose snapshot is not stored.
	ErrSnapshotMissing = errors.New("snapshot missing for node")

	// ErrSnapshotMismatch indicates restored sources that do not hash to
	// the node id.
	ErrSnapshotMismatch = errors.New("restored sources do not match node hash")

	// ErrPredictionFailed matches any *PredictionFailedError.
	ErrPredictionFailed = errors.New("prediction failed")
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// PredictionFailedError reports a prediction program that exited nonzero.
type PredictionFailedError struct {
	ExitCode int
	Stderr   string
}

// Error implements the error interface.
func (e *PredictionFailedError) Error() string {
	return fmt.Sprintf("prediction failed with exit code %d", e.ExitCode)
}

// Is reports whether target is ErrPredictionFailed.
func (e *PredictionFailedError) Is(target error) bool {
	return target == ErrPredictionFailed
}

// =============================================================================
// FAILURE NAMES
// =============================================================================

// Failure names recorded on failed nodes, in summaries and in the metrics log.
const (
	FailureTimedOut        = "timed_out"
	FailureTrainingFailed  = "training_failed"
	FailureMissingArtifact = "missing_artifact"
	FailureInvalidMetrics  = "invalid_metrics"
	FailureCancelled       = "cancelled"
	FailureError           = "error"
)

// FailureName maps an evaluation error to a stable condition name.
//
// Outputs:
//
//	string - "" for nil, otherwise one of the Failure* constants
func FailureName(err error) string {
	if err == nil {
		return ""
	}
	return eval.Classify(err)
}
