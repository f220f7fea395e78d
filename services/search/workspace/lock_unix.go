// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build unix

package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// LockFileName is the advisory lock held while a command mutates a workspace.
const LockFileName = ".mlsearch.lock"

// ErrLocked indicates another process holds the workspace lock.
var ErrLocked = errors.New("workspace is locked by another mlsearch process")

// Lock is an advisory, flock(2)-based lock on one workspace.
//
// It prevents two `mlsearch run` invocations from mutating the same live
// src/ directory and metrics log at once. The lock file records the holder
// PID for diagnostics.
//
// Thread Safety: NOT safe for concurrent use. Acquire from one goroutine.
//
// Limitations: advisory only; NFS may not honour flock.
type Lock struct {
	path string
	file *os.File
}

// NewLock creates an unacquired lock for the workspace.
func NewLock(w *Workspace) *Lock {
	return &Lock{path: filepath.Join(w.Root(), LockFileName)}
}

// Acquire takes the lock without blocking.
//
// Outputs:
//
//	error - ErrLocked (with holder PID when known) if another process holds it
func (l *Lock) Acquire() error {
	if l.file != nil {
		return nil
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open lock file %s: %w", l.path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid := l.HolderPID(); pid > 0 {
				return fmt.Errorf("%w (PID %d)", ErrLocked, pid)
			}
			return ErrLocked
		}
		return fmt.Errorf("acquire lock: %w", err)
	}

	// Record our PID; failure here leaves the lock held.
	_ = f.Truncate(0)
	_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)

	l.file = f
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	_ = l.file.Truncate(0)
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return closeErr
}

// IsHeld returns true if this instance holds the lock.
func (l *Lock) IsHeld() bool {
	return l.file != nil
}

// HolderPID returns the PID recorded in the lock file, or 0 if unknown.
func (l *Lock) HolderPID() int {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
