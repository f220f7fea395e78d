// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package controller

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/mlsearch/services/search/tree"
)

// Summary statuses beyond tree.Status values.
const (
	// StatusDuplicate marks a candidate whose sources hashed to a node
	// already in the tree. It is logged but not added again.
	StatusDuplicate = "duplicate"

	// StatusSkipped marks a candidate that could not be prepared, so no
	// sources were hashed.
	StatusSkipped = "skipped"
)

// RunSummary reports one attempt of a search, in commit order.
type RunSummary struct {
	NodeID      string        `json:"node_id,omitempty"`
	ParentID    string        `json:"parent_id,omitempty"`
	Description string        `json:"description"`
	Status      string        `json:"status"`
	Score       *float64      `json:"score"`
	ScoreStd    float64       `json:"score_std"`
	Metric      string        `json:"metric,omitempty"`
	Failure     string        `json:"failure,omitempty"`
	Error       string        `json:"error,omitempty"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// summaryFor builds the summary of a committed node.
func summaryFor(node *tree.SolutionNode, status string, errText string, elapsed time.Duration) RunSummary {
	s := RunSummary{
		NodeID:      node.ID,
		ParentID:    node.ParentID,
		Description: node.Description,
		Status:      status,
		Score:       tree.FiniteOrNil(node.Score),
		ScoreStd:    node.ScoreStd,
		Metric:      node.Metric,
		Failure:     node.Failure,
		Error:       errText,
		Elapsed:     elapsed,
	}
	if node.Failed() {
		s.Score = nil
	}
	return s
}

// SummaryFile is the document written to logs/summary.json.
type SummaryFile struct {
	RunID    string       `json:"run_id"`
	BestID   string       `json:"best_id,omitempty"`
	Best     *float64     `json:"best_score"`
	Attempts []RunSummary `json:"attempts"`
}

// WriteSummary writes the attempts of a run as indented JSON.
func WriteSummary(path, runID string, t *tree.SolutionTree, summaries []RunSummary) error {
	doc := SummaryFile{RunID: runID, Attempts: summaries}
	if t != nil {
		if best, ok := t.BestNode(); ok {
			doc.BestID = best.ID
			doc.Best = tree.FiniteOrNil(best.Score)
		}
	}
	if doc.Attempts == nil {
		doc.Attempts = []RunSummary{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
