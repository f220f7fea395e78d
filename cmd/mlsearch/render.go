// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"time"

	"github.com/AleutianAI/mlsearch/pkg/ux"
	"github.com/AleutianAI/mlsearch/services/search/controller"
	"github.com/AleutianAI/mlsearch/services/search/tree"
	"github.com/AleutianAI/mlsearch/services/search/workspace"
)

var attemptHeaders = []string{"", "node", "status", "score", "metric", "elapsed", "description"}

// summaryTable renders the attempts of a run, marking the best node.
func summaryTable(t *tree.SolutionTree, summaries []controller.RunSummary) string {
	bestID := ""
	if best, ok := t.BestNode(); ok {
		bestID = best.ID
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		mark := ""
		if s.NodeID != "" && s.NodeID == bestID && s.Status == string(tree.StatusSucceeded) {
			mark = ux.IconStar.Render()
		}
		status := s.Status
		if s.Failure != "" {
			status += " (" + s.Failure + ")"
		}
		rows = append(rows, []string{
			mark,
			tree.ShortID(s.NodeID),
			status,
			formatScore(s.Score),
			s.Metric,
			s.Elapsed.Round(10 * time.Millisecond).String(),
			s.Description,
		})
	}
	return ux.Table(attemptHeaders, rows)
}

// nodesTable renders the nodes of a tree in insertion order.
func nodesTable(t *tree.SolutionTree) string {
	bestID := ""
	if best, ok := t.BestNode(); ok {
		bestID = best.ID
	}

	rows := make([][]string, 0, t.Len())
	for _, n := range t.Nodes() {
		mark := ""
		if n.ID == bestID {
			mark = ux.IconStar.Render()
		}
		status := string(n.Status)
		if n.Failure != "" {
			status += " (" + n.Failure + ")"
		}
		score := "-"
		if !n.Failed() {
			score = fmt.Sprintf("%.6f", n.Score)
		}
		rows = append(rows, []string{
			mark,
			tree.ShortID(n.ID),
			status,
			score,
			n.Metric,
			patchCounts(n.Patch),
			n.CreatedAt.Format(time.DateTime),
			n.Description,
		})
	}
	return ux.Table([]string{"", "node", "status", "score", "metric", "config", "created", "description"}, rows)
}

// patchCounts renders the added/removed line counts of a config patch as
// "+A/-R", or "-" when there is nothing to count.
func patchCounts(patch string) string {
	added, removed, err := workspace.PatchStats(patch)
	if err != nil || added+removed == 0 {
		return "-"
	}
	return fmt.Sprintf("+%d/-%d", added, removed)
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.6f", *score)
}

// printCounts prints how many attempts succeeded and failed.
func printCounts(summaries []controller.RunSummary) {
	succeeded, failed := 0, 0
	for _, s := range summaries {
		switch s.Status {
		case string(tree.StatusSucceeded):
			succeeded++
		case string(tree.StatusFailed), controller.StatusSkipped:
			failed++
		}
	}
	ux.Counts(succeeded, failed, len(summaries))
}
