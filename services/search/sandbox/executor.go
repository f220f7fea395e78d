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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds executor settings shared by every Execute call.
type Config struct {
	// MaxOutputBytes caps the captured size of stdout and of stderr.
	// Output beyond this is discarded and Result.Truncated is set.
	// Default: 1MB
	MaxOutputBytes int

	// WaitDelay bounds how long Execute waits for output pipes to close
	// after the process group has been killed.
	// Default: 2s
	WaitDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxOutputBytes: 1 << 20,
		WaitDelay:      2 * time.Second,
	}
}

// =============================================================================
// TYPES
// =============================================================================

// Request describes one program invocation.
type Request struct {
	// Program is the executable, resolved through PATH when not absolute.
	Program string

	// Args are passed to Program verbatim.
	Args []string

	// Dir is the working directory. It must exist.
	Dir string

	// Timeout is the wall-clock limit. It must be positive.
	Timeout time.Duration

	// Env overrides are merged over the inherited environment.
	Env map[string]string
}

// Result is the captured outcome of a finished or killed process.
//
// Result is a value type; Execute never mutates it after returning.
type Result struct {
	ExitCode  int           `json:"exit_code"`
	Elapsed   time.Duration `json:"elapsed"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	Command   []string      `json:"command"`
	Dir       string        `json:"dir"`
	Truncated bool          `json:"truncated"`
}

// ElapsedSeconds returns the wall-clock runtime in seconds.
func (r Result) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// Succeeded returns true if the process exited with code 0.
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor runs programs with a timeout and output capture.
//
// Thread Safety: Safe for concurrent use. Each call creates its own process.
type Executor struct {
	config Config
	logger *slog.Logger
}

// NewExecutor creates a new executor.
//
// Inputs:
//
//	cfg - Executor configuration. Zero fields fall back to defaults.
//	logger - Logger for structured logging. Nil uses slog.Default().
//
// Outputs:
//
//	*Executor - Ready to use executor
func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	defaults := DefaultConfig()
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaults.MaxOutputBytes
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = defaults.WaitDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{config: cfg, logger: logger}
}

// Execute runs a program and waits for it to exit or time out.
//
// Description:
//
//	Starts req.Program in req.Dir inside a fresh process group, with req.Env
//	merged over the inherited environment. Stdout and stderr are captured
//	separately up to Config.MaxOutputBytes each.
//
// Inputs:
//
//	ctx - Context for cancellation. Cancelling kills the process group.
//	req - The invocation to run
//
// Outputs:
//
//	*Result - Captured outcome. Non-nil whenever the process was started.
//	error - *TimedOutError on timeout, ctx.Err() on cancellation, or a
//	        validation/start error. A nonzero exit code is not an error.
//
// Thread Safety: Safe for concurrent use.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if req.Program == "" {
		return nil, ErrEmptyProgram
	}
	if req.Timeout <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeout, req.Timeout)
	}
	if info, err := os.Stat(req.Dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrWorkDirMissing, req.Dir)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, req.Program, req.Args...)
	cmd.Dir = req.Dir
	cmd.Env = MergeEnv(os.Environ(), req.Env)
	cmd.WaitDelay = e.config.WaitDelay
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdout, limit: e.config.MaxOutputBytes}
	stderrLimited := &limitedWriter{w: &stderr, limit: e.config.MaxOutputBytes}
	cmd.Stdout = stdoutLimited
	cmd.Stderr = stderrLimited

	command := append([]string{req.Program}, req.Args...)
	e.logger.Debug("Executing command",
		slog.String("command", strings.Join(command, " ")),
		slog.String("dir", req.Dir),
		slog.Duration("timeout", req.Timeout),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	err := cmd.Wait()
	elapsed := time.Since(start)

	result := &Result{
		Elapsed:   elapsed,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Command:   command,
		Dir:       req.Dir,
		Truncated: stdoutLimited.truncated || stderrLimited.truncated,
	}

	// Deadline on our own timer, parent still alive: a timeout.
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		result.ExitCode = -1
		e.logger.Warn("Process timed out",
			slog.String("command", strings.Join(command, " ")),
			slog.Duration("timeout", req.Timeout),
		)
		return result, &TimedOutError{Command: command, Timeout: req.Timeout}
	}
	if ctx.Err() != nil {
		result.ExitCode = -1
		return result, ctx.Err()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			result.ExitCode = -1
			return result, fmt.Errorf("wait for process: %w", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	e.logger.Debug("Command finished",
		slog.Int("exit_code", result.ExitCode),
		slog.Duration("elapsed", elapsed),
		slog.Int("stdout_bytes", len(result.Stdout)),
		slog.Int("stderr_bytes", len(result.Stderr)),
	)
	return result, nil
}

// MergeEnv overlays overrides onto base, a list of KEY=VALUE pairs.
//
// Overridden keys keep their position in base; new keys are appended in
// sorted order so the resulting environment is deterministic.
func MergeEnv(base []string, overrides map[string]string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]struct{}, len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if value, ok := overrides[key]; ok {
			merged = append(merged, key+"="+value)
			seen[key] = struct{}{}
			continue
		}
		merged = append(merged, kv)
	}

	extra := make([]string, 0, len(overrides))
	for key := range overrides {
		if _, ok := seen[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		merged = append(merged, key+"="+overrides[key])
	}
	return merged
}

// =============================================================================
// LIMITED WRITER
// =============================================================================

// limitedWriter wraps a writer with a size limit.
type limitedWriter struct {
	w         io.Writer
	limit     int
	written   int
	truncated bool
}

// Write always reports the full length of p so the copy goroutine in
// os/exec keeps draining the pipe once the limit is reached.
func (lw *limitedWriter) Write(p []byte) (n int, err error) {
	origLen := len(p)
	if lw.written >= lw.limit {
		lw.truncated = true
		return origLen, nil
	}

	remaining := lw.limit - lw.written
	if len(p) > remaining {
		p = p[:remaining]
		lw.truncated = true
	}

	n, err = lw.w.Write(p)
	lw.written += n
	if err != nil {
		return n, err
	}
	return origLen, nil
}
