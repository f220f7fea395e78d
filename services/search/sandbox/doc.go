// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sandbox runs external programs as bounded subprocesses.
//
// The name is historical. The executor scopes a child process to a working
// directory, merges environment overrides and enforces a wall-clock timeout.
// It provides no filesystem, network or resource isolation; callers that need
// to run untrusted code must add that separately.
//
// # Timeout Semantics
//
// The child is started in its own process group. When the timeout elapses the
// whole group is killed and Execute returns the partial Result together with a
// *TimedOutError, which matches ErrTimedOut via errors.Is. A nonzero exit code
// is NOT an error at this layer; interpreting it is left to the caller.
//
// # Example Usage
//
//	exec := sandbox.NewExecutor(sandbox.DefaultConfig(), logger)
//	result, err := exec.Execute(ctx, sandbox.Request{
//	    Program: "python",
//	    Args:    []string{"train.py"},
//	    Dir:     "/runs/titanic/src",
//	    Timeout: 20 * time.Minute,
//	})
//	if errors.Is(err, sandbox.ErrTimedOut) {
//	    // result holds whatever output was captured before the kill
//	}
package sandbox
