// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Mode controls how much styling terminal output carries.
type Mode string

const (
	// ModeRich enables colors, icons and boxes.
	ModeRich Mode = "rich"

	// ModePlain keeps icons but drops colors and boxes.
	ModePlain Mode = "plain"

	// ModeMachine outputs plain text suitable for scripting and parsing.
	ModeMachine Mode = "machine"
)

// ModeEnv overrides terminal detection in Init.
const ModeEnv = "MLSEARCH_OUTPUT"

var (
	currentMode = ModeRich
	modeMu      sync.RWMutex
)

// GetMode returns the current output mode.
func GetMode() Mode {
	modeMu.RLock()
	defer modeMu.RUnlock()
	return currentMode
}

// SetMode sets the output mode.
func SetMode(m Mode) {
	modeMu.Lock()
	defer modeMu.Unlock()
	currentMode = m
}

// ParseMode maps a user string to a Mode. Unknown values yield ModeRich.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "minimal", "p":
		return ModePlain
	case "machine", "quiet", "q":
		return ModeMachine
	default:
		return ModeRich
	}
}

// Init picks the output mode from MLSEARCH_OUTPUT, falling back to
// machine mode when stdout is not a terminal.
func Init() {
	if env := os.Getenv(ModeEnv); env != "" {
		SetMode(ParseMode(env))
		return
	}
	if !IsTerminal(os.Stdout) {
		SetMode(ModeMachine)
		return
	}
	SetMode(ModeRich)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
