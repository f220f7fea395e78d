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
	"bytes"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// patchContext is the number of unchanged lines kept around a change.
const patchContext = 3

// ConfigPatch renders a unified diff between two versions of a file.
//
// Description:
//
//	Produces a single hunk covering the span between the longest common
//	line prefix and suffix, with up to three lines of context on each
//	side. Config files are small and candidate edits are local, so one
//	hunk is sufficient. Returns "" when the inputs are identical.
//
// Inputs:
//
//	before - Original file contents
//	after - Modified file contents
//	name - File name used in the ---/+++ headers
//
// Outputs:
//
//	string - Unified diff text
//	error - Non-nil if the diff could not be printed
func ConfigPatch(before, after []byte, name string) (string, error) {
	if bytes.Equal(before, after) {
		return "", nil
	}

	a := splitLines(before)
	b := splitLines(after)

	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	start := max(prefix-patchContext, 0)
	origEnd := len(a) - suffix
	newEnd := len(b) - suffix
	trail := min(suffix, patchContext)

	var body bytes.Buffer
	for _, line := range a[start:prefix] {
		body.WriteString(" " + line + "\n")
	}
	for _, line := range a[prefix:origEnd] {
		body.WriteString("-" + line + "\n")
	}
	for _, line := range b[prefix:newEnd] {
		body.WriteString("+" + line + "\n")
	}
	for _, line := range a[origEnd : origEnd+trail] {
		body.WriteString(" " + line + "\n")
	}

	hunk := &diff.Hunk{
		OrigStartLine: hunkStart(start, origEnd+trail-start),
		OrigLines:     int32(origEnd + trail - start),
		NewStartLine:  hunkStart(start, newEnd+trail-start),
		NewLines:      int32(newEnd + trail - start),
		Body:          body.Bytes(),
	}

	out, err := diff.PrintFileDiff(&diff.FileDiff{
		OrigName: "a/" + name,
		NewName:  "b/" + name,
		Hunks:    []*diff.Hunk{hunk},
	})
	if err != nil {
		return "", fmt.Errorf("print config patch: %w", err)
	}
	return string(out), nil
}

// PatchStats counts added and removed lines in a unified diff.
//
// An empty patch yields zero counts.
func PatchStats(patch string) (added, removed int, err error) {
	if patch == "" {
		return 0, 0, nil
	}
	fd, err := diff.ParseFileDiff([]byte(patch))
	if err != nil {
		return 0, 0, fmt.Errorf("parse patch: %w", err)
	}
	for _, h := range fd.Hunks {
		for _, line := range strings.Split(string(h.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				added++
			case strings.HasPrefix(line, "-"):
				removed++
			}
		}
	}
	return added, removed, nil
}

// hunkStart converts a zero-based start index into unified diff numbering,
// where an empty range is addressed by the line before it.
func hunkStart(start, count int) int32 {
	if count == 0 {
		return int32(start)
	}
	return int32(start + 1)
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}
