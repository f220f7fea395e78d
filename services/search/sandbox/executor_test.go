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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript writes an executable shell script into dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestExecutor_CapturesOutputAndExitCode(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "run.sh", `echo out; echo err 1>&2; exit 3`)

	exec := NewExecutor(DefaultConfig(), nil)
	result, err := exec.Execute(context.Background(), Request{
		Program: "sh",
		Args:    []string{"run.sh"},
		Dir:     dir,
		Timeout: 5 * time.Second,
	})

	require.NoError(t, err, "nonzero exit is not an executor error")
	require.NotNil(t, result)
	assert.Equal(t, 3, result.ExitCode)
	assert.False(t, result.Succeeded())
	assert.Equal(t, "out\n", result.Stdout)
	assert.Equal(t, "err\n", result.Stderr)
	assert.Equal(t, []string{"sh", "run.sh"}, result.Command)
	assert.Equal(t, dir, result.Dir)
	assert.Greater(t, result.ElapsedSeconds(), 0.0)
}

func TestExecutor_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "pwd.sh", `pwd`)

	result, err := NewExecutor(DefaultConfig(), nil).Execute(context.Background(), Request{
		Program: "sh",
		Args:    []string{"pwd.sh"},
		Dir:     dir,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(strings.TrimSpace(result.Stdout))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExecutor_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "env.sh", `echo "$MLSEARCH_TEST_VAR"; echo "$HOME"`)
	t.Setenv("HOME", "/original/home")

	result, err := NewExecutor(DefaultConfig(), nil).Execute(context.Background(), Request{
		Program: "sh",
		Args:    []string{"env.sh"},
		Dir:     dir,
		Timeout: 5 * time.Second,
		Env:     map[string]string{"MLSEARCH_TEST_VAR": "hello"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(result.Stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "hello", lines[0])
	assert.Equal(t, "/original/home", lines[1], "inherited variables survive the merge")
}

func TestExecutor_TimeoutIsDistinct(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "slow.sh", `echo started; sleep 30 & wait`)

	start := time.Now()
	result, err := NewExecutor(DefaultConfig(), nil).Execute(context.Background(), Request{
		Program: "sh",
		Args:    []string{"slow.sh"},
		Dir:     dir,
		Timeout: 300 * time.Millisecond,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimedOut))

	var timedOut *TimedOutError
	require.True(t, errors.As(err, &timedOut))
	assert.Equal(t, 300*time.Millisecond, timedOut.Timeout)

	require.NotNil(t, result, "a result is returned even when killed")
	assert.Equal(t, -1, result.ExitCode)
	assert.Contains(t, result.Stdout, "started")
	assert.Less(t, time.Since(start), 10*time.Second, "process group must be killed")
}

func TestExecutor_ParentCancellation(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "slow.sh", `sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	_, err := NewExecutor(DefaultConfig(), nil).Execute(ctx, Request{
		Program: "sh",
		Args:    []string{"slow.sh"},
		Dir:     dir,
		Timeout: time.Minute,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrTimedOut))
}

func TestExecutor_Validation(t *testing.T) {
	exec := NewExecutor(DefaultConfig(), nil)
	dir := t.TempDir()

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"empty program", Request{Dir: dir, Timeout: time.Second}, ErrEmptyProgram},
		{"zero timeout", Request{Program: "true", Dir: dir}, ErrInvalidTimeout},
		{"missing dir", Request{Program: "true", Dir: filepath.Join(dir, "nope"), Timeout: time.Second}, ErrWorkDirMissing},
		{"missing program", Request{Program: "definitely-not-a-real-binary", Dir: dir, Timeout: time.Second}, ErrStartFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := exec.Execute(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, result)
		})
	}
}

func TestExecutor_OutputTruncation(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "loud.sh", `i=0; while [ $i -lt 200 ]; do echo 0123456789; i=$((i+1)); done`)

	result, err := NewExecutor(Config{MaxOutputBytes: 100}, nil).Execute(context.Background(), Request{
		Program: "sh",
		Args:    []string{"loud.sh"},
		Dir:     dir,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Len(t, result.Stdout, 100)
	assert.Equal(t, 0, result.ExitCode)
}

func TestExecutor_OutputPastLimitDoesNotFailRun(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "verbose.sh", `yes xxxxxxxxx | head -c 2000000; echo done > finished.txt`)

	result, err := NewExecutor(DefaultConfig(), nil).Execute(context.Background(), Request{
		Program: "sh",
		Args:    []string{"verbose.sh"},
		Dir:     dir,
		Timeout: 10 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, result.Truncated)
	assert.Len(t, result.Stdout, DefaultConfig().MaxOutputBytes)
	assert.FileExists(t, filepath.Join(dir, "finished.txt"))
}

func TestMergeEnv(t *testing.T) {
	base := []string{"A=1", "B=2", "C=3"}
	merged := MergeEnv(base, map[string]string{"B": "20", "Z": "26", "D": "4"})
	assert.Equal(t, []string{"A=1", "B=20", "C=3", "D=4", "Z=26"}, merged)

	assert.Equal(t, base, MergeEnv(base, nil))
}
