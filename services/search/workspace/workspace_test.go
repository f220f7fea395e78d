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
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baselineConfig = `{
  "data_dir": "../data",
  "model_params": {
    "max_depth": 4,
    "n_estimators": 100
  },
  "n_splits": 5,
  "seed": 42,
  "target": "label",
  "task_type": "classification"
}
`

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, SrcDirName), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, DataDirName), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, SrcDirName, ConfigFileName), []byte(baselineConfig), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, SrcDirName, "train.py"), []byte("print('train')\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, DataDirName, "train.csv"), []byte("id,label\n1,0\n"), 0644))

	ws, err := Open(root)
	require.NoError(t, err)
	require.NoError(t, ws.EnsureDirs())
	return ws
}

func TestOpen_RequiresSrcDir(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, ErrNotWorkspace)
}

func TestWorkspace_Paths(t *testing.T) {
	ws := newTestWorkspace(t)

	assert.Equal(t, filepath.Join(ws.Root(), "src", "config.json"), ws.ConfigPath())
	assert.Equal(t, filepath.Join(ws.Root(), "artifacts", "metrics.json"), ws.MetricsPath())
	assert.Equal(t, filepath.Join(ws.Root(), "artifacts", "submission.csv"), ws.SubmissionPath())
	assert.Equal(t, filepath.Join(ws.Root(), "data", "sample_submission.csv"), ws.SampleSubmissionPath())
	assert.Equal(t, filepath.Join(ws.Root(), "logs", "metrics.jsonl"), ws.MetricsLogPath())

	for _, dir := range []string{ws.ArtifactsDir(), ws.LogsDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestSafePath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	realRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	tests := []struct {
		name    string
		target  string
		wantErr bool
	}{
		{"plain file", "src/train.py", false},
		{"not yet created", "artifacts/new/metrics.json", false},
		{"root itself", ".", false},
		{"dot dot escape", "../outside.txt", true},
		{"nested escape", "src/../../outside.txt", true},
		{"absolute outside", "/etc/passwd", true},
		{"absolute inside", filepath.Join(root, "src", "x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafePath(root, tt.target)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPathViolation)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(got, realRoot), "got %s", got)
		})
	}
}

func TestSafePath_SiblingPrefix(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "run")
	sibling := filepath.Join(parent, "run2")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.MkdirAll(sibling, 0755))

	_, err := SafePath(root, filepath.Join(sibling, "file"))
	assert.ErrorIs(t, err, ErrPathViolation)
}

func TestSafePath_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	_, err := SafePath(root, "escape/secret.txt")
	assert.ErrorIs(t, err, ErrPathViolation)
}

func TestConfig_ReadWriteMerge(t *testing.T) {
	ws := newTestWorkspace(t)

	cfg, raw, err := ws.ReadConfig()
	require.NoError(t, err)
	assert.Equal(t, baselineConfig, string(raw))
	assert.Equal(t, "label", cfg["target"])

	merged := Merge(cfg, map[string]any{
		"model_params": map[string]any{"n_estimators": 400, "random_state": 42},
		"extra":        true,
	})

	// Shallow: model_params is replaced wholesale.
	params := merged["model_params"].(map[string]any)
	assert.NotContains(t, params, "max_depth")
	assert.Equal(t, 400, params["n_estimators"])
	assert.Equal(t, true, merged["extra"])
	assert.Equal(t, json.Number("42"), merged["seed"])

	// Inputs are not modified.
	assert.NotContains(t, cfg, "extra")
}

func TestApplyUpdates_ResetsToBaseline(t *testing.T) {
	ws := newTestWorkspace(t)
	_, baseline, err := ws.ReadConfig()
	require.NoError(t, err)

	_, err = ws.ApplyUpdates(baseline, map[string]any{"first": 1})
	require.NoError(t, err)

	written, err := ws.ApplyUpdates(baseline, map[string]any{"second": 2})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(written, &decoded))
	assert.NotContains(t, decoded, "first")
	assert.Equal(t, float64(2), decoded["second"])
	assert.Equal(t, "classification", decoded["task_type"])
}

func TestApplyUpdates_PreservesWideIntegers(t *testing.T) {
	ws := newTestWorkspace(t)
	baseline := []byte(`{"seed": 12345678901234567891, "lr": 0.1, "model_params": {"n_estimators": 100}}`)

	written, err := ws.ApplyUpdates(baseline, map[string]any{
		"model_params": map[string]any{"n_estimators": 400},
	})
	require.NoError(t, err)

	assert.Contains(t, string(written), `"seed": 12345678901234567891`)
	assert.Contains(t, string(written), `"lr": 0.1`)
	assert.Contains(t, string(written), `"n_estimators": 400`)

	cfg, _, err := ws.ReadConfig()
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234567891"), cfg["seed"])
}

func TestClone_IsolatedCopy(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(ws.MetricsPath(), []byte(`{"score":1}`), 0644))

	clone, err := ws.Clone("cand-0", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clone.Discard() })

	assert.Equal(t, filepath.Join(ws.Root(), ScratchDirName, "cand-0"), clone.Root())

	// Sources copied, artifacts fresh, data reachable.
	got, err := os.ReadFile(clone.ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, baselineConfig, string(got))
	_, err = os.Stat(clone.MetricsPath())
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(filepath.Join(clone.DataDir(), "train.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,label\n1,0\n", string(data))

	// Edits in the clone do not touch the live workspace.
	require.NoError(t, clone.WriteConfigRaw([]byte("{}\n")))
	live, err := os.ReadFile(ws.ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, baselineConfig, string(live))

	require.NoError(t, clone.Discard())
	_, err = os.Stat(clone.Root())
	assert.True(t, os.IsNotExist(err))
}

func TestDiscard_RefusesLiveWorkspace(t *testing.T) {
	ws := newTestWorkspace(t)
	assert.Error(t, ws.Discard())
	_, err := os.Stat(ws.SrcDir())
	assert.NoError(t, err)
}

func TestConfigPatch(t *testing.T) {
	before := []byte("{\n  \"a\": 1,\n  \"b\": 2,\n  \"c\": 3\n}\n")
	after := []byte("{\n  \"a\": 1,\n  \"b\": 20,\n  \"c\": 3\n}\n")

	patch, err := ConfigPatch(before, after, "config.json")
	require.NoError(t, err)

	assert.Contains(t, patch, "--- a/config.json")
	assert.Contains(t, patch, "+++ b/config.json")
	assert.Contains(t, patch, "@@ -1,5 +1,5 @@")
	assert.Contains(t, patch, "-  \"b\": 2,\n")
	assert.Contains(t, patch, "+  \"b\": 20,\n")

	added, removed, err := PatchStats(patch)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)
}

func TestConfigPatch_Identical(t *testing.T) {
	patch, err := ConfigPatch([]byte("{}\n"), []byte("{}\n"), "config.json")
	require.NoError(t, err)
	assert.Empty(t, patch)
}

func TestLock_ExcludesSecondHolder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("flock not available")
	}
	ws := newTestWorkspace(t)

	first := NewLock(ws)
	require.NoError(t, first.Acquire())
	assert.True(t, first.IsHeld())
	assert.Equal(t, os.Getpid(), first.HolderPID())

	second := NewLock(ws)
	err := second.Acquire()
	assert.ErrorIs(t, err, ErrLocked)
	assert.False(t, second.IsHeld())

	require.NoError(t, first.Release())
	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())
}
