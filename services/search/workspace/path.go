// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathViolation indicates a requested path escapes the workspace root.
var ErrPathViolation = errors.New("path escapes workspace root")

// SafePath resolves target relative to root and checks it stays inside.
//
// Description:
//
//	Relative targets are joined to root; absolute targets are taken as is.
//	Both sides are resolved through symlinks (walking up to the nearest
//	existing ancestor for paths that do not exist yet) before comparison,
//	so neither "../" segments nor symlinks can leave the root. The
//	comparison is by path components, not string prefix, so /runs/a2 is
//	not considered inside /runs/a.
//
// Inputs:
//
//	root - Workspace root
//	target - Path to check
//
// Outputs:
//
//	string - Resolved absolute path inside root
//	error - ErrPathViolation if target escapes root
func SafePath(root, target string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	realRoot := resolveWithAncestors(absRoot)

	path := target
	if !filepath.IsAbs(path) {
		path = filepath.Join(absRoot, path)
	}
	realPath := resolveWithAncestors(filepath.Clean(path))

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathViolation, target)
	}
	return realPath, nil
}

// resolveWithAncestors resolves symlinks by finding the nearest existing
// ancestor. This handles targets that do not exist yet.
func resolveWithAncestors(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}

	var missing []string
	current := path
	for {
		parent := filepath.Dir(current)
		missing = append([]string{filepath.Base(current)}, missing...)
		if parent == current {
			return path
		}
		if real, err := filepath.EvalSymlinks(parent); err == nil {
			return filepath.Join(append([]string{real}, missing...)...)
		}
		current = parent
	}
}
