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
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrTrainingFailed matches any *TrainingFailedError.
	ErrTrainingFailed = errors.New("training failed")

	// ErrMissingArtifact matches any *MissingArtifactError.
	ErrMissingArtifact = errors.New("metrics artifact missing")

	// ErrInvalidMetrics indicates the metrics artifact could not be parsed
	// or lacks a required field.
	ErrInvalidMetrics = errors.New("invalid metrics artifact")

	// ErrSubmissionMissing indicates the prediction program wrote no
	// submission file.
	ErrSubmissionMissing = errors.New("submission file missing")

	// ErrColumnMismatch matches any *SchemaMismatchError.
	ErrColumnMismatch = errors.New("submission columns do not match sample")

	// ErrNilWorkspace indicates a nil workspace was passed.
	ErrNilWorkspace = errors.New("workspace must not be nil")
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// TrainingFailedError reports a training program that exited nonzero.
type TrainingFailedError struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Error implements the error interface.
func (e *TrainingFailedError) Error() string {
	msg := fmt.Sprintf("training failed with exit code %d", e.ExitCode)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// Is reports whether target is ErrTrainingFailed.
func (e *TrainingFailedError) Is(target error) bool {
	return target == ErrTrainingFailed
}

// MissingArtifactError reports a training run that wrote no metrics file.
type MissingArtifactError struct {
	Path string
}

// Error implements the error interface.
func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("metrics artifact not found: %s", e.Path)
}

// Is reports whether target is ErrMissingArtifact.
func (e *MissingArtifactError) Is(target error) bool {
	return target == ErrMissingArtifact
}

// SchemaMismatchError reports a submission header that differs from the
// sample submission, in content or in order.
type SchemaMismatchError struct {
	Expected []string
	Actual   []string
}

// Error implements the error interface.
func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("submission columns %v do not match sample columns %v", e.Actual, e.Expected)
}

// Is reports whether target is ErrColumnMismatch.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrColumnMismatch
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	const maxLen = 200
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
