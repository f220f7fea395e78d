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
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// Helper to capture stdout
func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// Helper to capture stderr
func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func withMode(t *testing.T, m Mode) {
	t.Helper()
	prev := GetMode()
	SetMode(m)
	t.Cleanup(func() { SetMode(prev) })
}

// =============================================================================
// Mode Tests
// =============================================================================

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"rich", ModeRich},
		{"PLAIN", ModePlain},
		{"minimal", ModePlain},
		{"machine", ModeMachine},
		{" quiet ", ModeMachine},
		{"", ModeRich},
		{"bogus", ModeRich},
	}
	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInit_EnvOverride(t *testing.T) {
	withMode(t, ModeRich)
	t.Setenv(ModeEnv, "plain")

	Init()

	if GetMode() != ModePlain {
		t.Errorf("expected plain mode, got %q", GetMode())
	}
}

func TestIsTerminal_NilAndFile(t *testing.T) {
	if IsTerminal(nil) {
		t.Error("nil file is not a terminal")
	}
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Error("regular file is not a terminal")
	}
}

// =============================================================================
// Output Tests
// =============================================================================

func TestIcon_Render_NonRichIsBare(t *testing.T) {
	withMode(t, ModePlain)
	if got := IconSuccess.Render(); got != "✓" {
		t.Errorf("expected bare icon, got %q", got)
	}
}

func TestSuccess_Machine(t *testing.T) {
	withMode(t, ModeMachine)
	out := captureStdout(func() { Success("done") })
	if out != "OK: done\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestWarningAndError_MachineGoToStderr(t *testing.T) {
	withMode(t, ModeMachine)
	var stdout string
	stderr := captureStderr(func() {
		stdout = captureStdout(func() {
			Warning("careful")
			Error("broken")
		})
	})
	if stdout != "" {
		t.Errorf("expected empty stdout, got %q", stdout)
	}
	if !strings.Contains(stderr, "WARN: careful") || !strings.Contains(stderr, "ERROR: broken") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestTitleAndMuted_SuppressedInMachineMode(t *testing.T) {
	withMode(t, ModeMachine)
	out := captureStdout(func() {
		Title("Search")
		Muted("details")
	})
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
}

func TestBox_Plain(t *testing.T) {
	withMode(t, ModePlain)
	out := captureStdout(func() { Box("Best", "abc123") })
	if out != "Best: abc123\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestKeyValue_Machine(t *testing.T) {
	withMode(t, ModeMachine)
	out := captureStdout(func() { KeyValue("best", "0.91") })
	if out != "best\t0.91\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCounts_Machine(t *testing.T) {
	withMode(t, ModeMachine)
	out := captureStdout(func() { Counts(2, 1, 3) })
	if out != "SUMMARY: succeeded=2 failed=1 total=3\n" {
		t.Errorf("unexpected output %q", out)
	}
}

// =============================================================================
// Table Tests
// =============================================================================

func TestTable_MachineIsTabSeparated(t *testing.T) {
	withMode(t, ModeMachine)
	got := Table([]string{"id", "score"}, [][]string{{"a1", "0.5"}, {"b2"}})
	want := "id\tscore\na1\t0.5\nb2\t\n"
	if got != want {
		t.Errorf("Table() = %q, want %q", got, want)
	}
}

func TestTable_PlainHasBorderAndCells(t *testing.T) {
	withMode(t, ModePlain)
	got := Table([]string{"node", "status"}, [][]string{{"abc", "failed"}})
	for _, want := range []string{"node", "status", "abc", "failed", "╭"} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
}
