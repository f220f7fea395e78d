// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/mlsearch/services/search/tree"
)

func openInMemory(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedger_LatestRunEmpty(t *testing.T) {
	l := openInMemory(t)

	_, err := l.LatestRun()
	assert.ErrorIs(t, err, ErrNoRuns)

	_, err = l.LoadTree("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestLedger_RoundTripsTree(t *testing.T) {
	l := openInMemory(t)
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.BeginRun(RunRecord{ID: "run-1", StartedAt: started, Budget: 2, BranchFactor: 2}))

	nodes := []*tree.SolutionNode{
		{ID: "root", Score: 0.80, Diff: tree.BaselineDiff, Status: tree.StatusSucceeded, Metric: "accuracy"},
		{ID: "a", ParentID: "root", Score: 0.84, ScoreStd: 0.01, Diff: `{"seed":1}`, Status: tree.StatusSucceeded, Patch: "--- a/config.json\n"},
		{ID: "b", ParentID: "root", Score: tree.FailureScore(), Diff: `{"seed":2}`, Status: tree.StatusFailed, Failure: "timed_out"},
	}
	for i, n := range nodes {
		require.NoError(t, l.SaveNode("run-1", i, n))
	}

	loaded, err := l.LoadTree("run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())

	root, ok := loaded.Root()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, root.Children)

	best, ok := loaded.BestNode()
	require.True(t, ok)
	assert.Equal(t, "a", best.ID)
	assert.Equal(t, "--- a/config.json\n", best.Patch)

	failed, ok := loaded.Get("b")
	require.True(t, ok)
	assert.True(t, failed.Failed())
	assert.Equal(t, "timed_out", failed.Failure)
}

func TestLedger_FinishRunAndLatest(t *testing.T) {
	l := openInMemory(t)
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.BeginRun(RunRecord{ID: "first", StartedAt: t0}))
	require.NoError(t, l.BeginRun(RunRecord{ID: "second", StartedAt: t0.Add(time.Hour)}))

	latest, err := l.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, "second", latest.ID)
	assert.Equal(t, RunStarted, latest.State)

	finished := t0.Add(2 * time.Hour)
	latest.State = RunCompleted
	latest.FinishedAt = &finished
	latest.BestID = "abc"
	require.NoError(t, l.FinishRun(latest))

	got, err := l.Run("second")
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, got.State)
	assert.Equal(t, "abc", got.BestID)

	runs, err := l.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "first", runs[0].ID)

	err = l.FinishRun(RunRecord{ID: "ghost"})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestLedger_RunsIsolated(t *testing.T) {
	l := openInMemory(t)
	require.NoError(t, l.BeginRun(RunRecord{ID: "r1"}))
	require.NoError(t, l.BeginRun(RunRecord{ID: "r10"}))
	require.NoError(t, l.SaveNode("r1", 0, &tree.SolutionNode{ID: "x", Score: 1}))
	require.NoError(t, l.SaveNode("r10", 0, &tree.SolutionNode{ID: "y", Score: 1}))

	t1, err := l.LoadTree("r1")
	require.NoError(t, err)
	assert.Equal(t, 1, t1.Len())
	_, ok := t1.Get("x")
	assert.True(t, ok)
}

func TestLedger_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")

	l, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, l.BeginRun(RunRecord{ID: "run"}))
	require.NoError(t, l.SaveNode("run", 0, &tree.SolutionNode{ID: "root", Score: 0.5}))
	require.NoError(t, l.Close())

	_, err = l.LatestRun()
	assert.ErrorIs(t, err, ErrClosed)

	reopened, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadTree("run")
	require.NoError(t, err)
	root, ok := loaded.Root()
	require.True(t, ok)
	assert.Equal(t, 0.5, root.Score)
}
