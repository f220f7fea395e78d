// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build !unix

package workspace

import "errors"

// LockFileName is the advisory lock held while a command mutates a workspace.
const LockFileName = ".mlsearch.lock"

// ErrLocked indicates another process holds the workspace lock.
var ErrLocked = errors.New("workspace is locked by another mlsearch process")

// Lock is a no-op on platforms without flock(2).
type Lock struct{ held bool }

// NewLock creates an unacquired lock for the workspace.
func NewLock(w *Workspace) *Lock { return &Lock{} }

// Acquire marks the lock held.
func (l *Lock) Acquire() error { l.held = true; return nil }

// Release marks the lock released.
func (l *Lock) Release() error { l.held = false; return nil }

// IsHeld returns true if Acquire was called without Release.
func (l *Lock) IsHeld() bool { return l.held }

// HolderPID is always 0.
func (l *Lock) HolderPID() int { return 0 }
