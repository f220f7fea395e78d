// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workspace models an mlsearch run directory.
//
// A run directory has a fixed layout:
//
//	<root>/
//	├── src/              training sources; src/config.json is mutated per candidate
//	├── data/             train/test data and optional sample_submission.csv
//	├── artifacts/        metrics.json, submission.csv, model files, snapshots
//	├── logs/             metrics.jsonl, summary.json, service logs
//	├── ledger/           persisted solution tree
//	└── .scratch/         private per-candidate copies (removed after use)
//
// The live src/ directory is treated as the frozen baseline during a search.
// Candidates are evaluated in private copies produced by Clone, so
// independent candidates can run in parallel without sharing file state.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AleutianAI/mlsearch/services/search/snapshot"
)

// Standard file and directory names inside a run directory.
const (
	SrcDirName       = "src"
	DataDirName      = "data"
	ArtifactsDirName = "artifacts"
	LogsDirName      = "logs"
	LedgerDirName    = "ledger"
	ScratchDirName   = ".scratch"

	ConfigFileName           = "config.json"
	MetricsFileName          = "metrics.json"
	SubmissionFileName       = "submission.csv"
	SampleSubmissionFileName = "sample_submission.csv"
	MetricsLogFileName       = "metrics.jsonl"
	SummaryFileName          = "summary.json"
)

var (
	// ErrNotWorkspace indicates the directory has no src/ subdirectory.
	ErrNotWorkspace = errors.New("not an mlsearch workspace")
)

// Workspace is a handle on a run directory.
//
// Thread Safety: The handle is immutable. File operations on the same
// workspace from several goroutines must be serialized by the caller.
type Workspace struct {
	root string
}

// Open returns a handle for an existing run directory.
//
// Inputs:
//
//	root - Run directory. Must contain src/.
//
// Outputs:
//
//	*Workspace - Handle with an absolute root
//	error - ErrNotWorkspace if src/ is missing
func Open(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	info, err := os.Stat(filepath.Join(abs, SrcDirName))
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s has no %s/ directory", ErrNotWorkspace, abs, SrcDirName)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute run directory.
func (w *Workspace) Root() string { return w.root }

// SrcDir returns the training source directory.
func (w *Workspace) SrcDir() string { return filepath.Join(w.root, SrcDirName) }

// DataDir returns the data directory.
func (w *Workspace) DataDir() string { return filepath.Join(w.root, DataDirName) }

// ArtifactsDir returns the artifacts directory.
func (w *Workspace) ArtifactsDir() string { return filepath.Join(w.root, ArtifactsDirName) }

// LogsDir returns the logs directory.
func (w *Workspace) LogsDir() string { return filepath.Join(w.root, LogsDirName) }

// LedgerDir returns the directory of the persisted solution tree.
func (w *Workspace) LedgerDir() string { return filepath.Join(w.root, LedgerDirName) }

// SnapshotsDir returns where content-addressed snapshots live.
func (w *Workspace) SnapshotsDir() string { return w.ArtifactsDir() }

// ConfigPath returns src/config.json.
func (w *Workspace) ConfigPath() string { return filepath.Join(w.SrcDir(), ConfigFileName) }

// MetricsPath returns artifacts/metrics.json.
func (w *Workspace) MetricsPath() string { return filepath.Join(w.ArtifactsDir(), MetricsFileName) }

// SubmissionPath returns artifacts/submission.csv.
func (w *Workspace) SubmissionPath() string {
	return filepath.Join(w.ArtifactsDir(), SubmissionFileName)
}

// SampleSubmissionPath returns data/sample_submission.csv.
func (w *Workspace) SampleSubmissionPath() string {
	return filepath.Join(w.DataDir(), SampleSubmissionFileName)
}

// MetricsLogPath returns logs/metrics.jsonl.
func (w *Workspace) MetricsLogPath() string { return filepath.Join(w.LogsDir(), MetricsLogFileName) }

// SummaryPath returns logs/summary.json.
func (w *Workspace) SummaryPath() string { return filepath.Join(w.LogsDir(), SummaryFileName) }

// EnsureDirs creates artifacts/ and logs/ if missing.
func (w *Workspace) EnsureDirs() error {
	for _, dir := range []string{w.ArtifactsDir(), w.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Resolve returns the absolute path of rel, refusing paths that escape the
// workspace root.
func (w *Workspace) Resolve(rel string) (string, error) {
	return SafePath(w.root, rel)
}

// =============================================================================
// PRIVATE COPIES
// =============================================================================

// Clone creates a private copy of the workspace for one evaluation.
//
// Description:
//
//	The copy lives under <root>/.scratch/<name>. src/ is copied, artifacts/
//	and logs/ start empty, and data/ is symlinked to the live data directory
//	(copied if symlinks are unavailable) so relative data paths in the
//	config keep resolving.
//
// Inputs:
//
//	name - Unique directory name for this copy
//
// Outputs:
//
//	*Workspace - Handle on the copy. Remove it with Discard.
//	error - Non-nil if the copy could not be made
func (w *Workspace) Clone(name string, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root := filepath.Join(w.root, ScratchDirName, name)
	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("clear scratch dir: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	clone := &Workspace{root: root}
	if err := snapshot.CopyTree(w.SrcDir(), clone.SrcDir()); err != nil {
		os.RemoveAll(root)
		return nil, fmt.Errorf("copy sources: %w", err)
	}
	if err := clone.EnsureDirs(); err != nil {
		os.RemoveAll(root)
		return nil, err
	}
	if err := linkOrCopyData(w.DataDir(), clone.DataDir()); err != nil {
		os.RemoveAll(root)
		return nil, err
	}

	logger.Debug("Cloned workspace",
		slog.String("from", w.root),
		slog.String("to", root),
	)
	return clone, nil
}

// Discard removes a private copy made by Clone.
func (w *Workspace) Discard() error {
	if filepath.Base(filepath.Dir(w.root)) != ScratchDirName {
		return fmt.Errorf("refusing to discard non-scratch workspace %s", w.root)
	}
	return os.RemoveAll(w.root)
}

func linkOrCopyData(source, target string) error {
	if _, err := os.Stat(source); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.Symlink(source, target); err == nil {
		return nil
	}
	if err := snapshot.CopyTree(source, target); err != nil {
		return fmt.Errorf("copy data: %w", err)
	}
	return nil
}
