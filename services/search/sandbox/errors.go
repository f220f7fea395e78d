// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sandbox

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrTimedOut indicates the process was killed because the timeout elapsed.
	ErrTimedOut = errors.New("process timed out")

	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrEmptyProgram indicates the request named no program to run.
	ErrEmptyProgram = errors.New("program must not be empty")

	// ErrInvalidTimeout indicates a zero or negative timeout.
	ErrInvalidTimeout = errors.New("timeout must be positive")

	// ErrWorkDirMissing indicates the working directory does not exist.
	ErrWorkDirMissing = errors.New("working directory does not exist")

	// ErrStartFailed indicates the process could not be started at all.
	ErrStartFailed = errors.New("process failed to start")
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// TimedOutError carries the details of a killed process.
type TimedOutError struct {
	// Command is the argv that was executed.
	Command []string

	// Timeout is the limit that was exceeded.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimedOutError) Error() string {
	return fmt.Sprintf("process timed out after %s: %v", e.Timeout, e.Command)
}

// Is reports whether target is ErrTimedOut.
func (e *TimedOutError) Is(target error) bool {
	return target == ErrTimedOut
}
