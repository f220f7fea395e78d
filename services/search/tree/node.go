// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"encoding/json"
	"math"
	"time"
)

// Status is the outcome of the evaluation that produced a node.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// BaselineDiff is the Diff of the root node.
const BaselineDiff = "baseline"

// SolutionNode is one evaluated variant of the source tree.
//
// Once added to a SolutionTree the node is owned by the tree; only the
// tree appends to Children.
type SolutionNode struct {
	// ID is the content hash of the source tree that was evaluated.
	ID string

	// ParentID is empty for the root.
	ParentID string

	// Score is oriented so that higher is better. Failed nodes carry
	// math.Inf(-1).
	Score float64

	// ScoreStd is the reported spread across folds.
	ScoreStd float64

	// Diff is the JSON encoding of the applied updates, or BaselineDiff.
	Diff string

	// Children holds child ids in insertion order.
	Children []string

	Status      Status
	Failure     string
	Metric      string
	Description string

	// Patch is a unified diff of the config file against the baseline.
	Patch string

	CreatedAt time.Time
}

// FailureScore is the sentinel score of a failed node.
func FailureScore() float64 {
	return math.Inf(-1)
}

// IsRoot returns true if the node has no parent.
func (n *SolutionNode) IsRoot() bool {
	return n.ParentID == ""
}

// Failed returns true if the node's evaluation failed.
func (n *SolutionNode) Failed() bool {
	return n.Status == StatusFailed
}

// nodeJSON is the wire form of SolutionNode. Non-finite scores encode as null.
type nodeJSON struct {
	ID          string    `json:"id"`
	ParentID    string    `json:"parent_id,omitempty"`
	Score       *float64  `json:"score"`
	ScoreStd    float64   `json:"score_std"`
	Diff        string    `json:"diff"`
	Children    []string  `json:"children,omitempty"`
	Status      Status    `json:"status"`
	Failure     string    `json:"failure,omitempty"`
	Metric      string    `json:"metric,omitempty"`
	Description string    `json:"description,omitempty"`
	Patch       string    `json:"patch,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MarshalJSON implements json.Marshaler.
func (n *SolutionNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(&nodeJSON{
		ID:          n.ID,
		ParentID:    n.ParentID,
		Score:       FiniteOrNil(n.Score),
		ScoreStd:    n.ScoreStd,
		Diff:        n.Diff,
		Children:    n.Children,
		Status:      n.Status,
		Failure:     n.Failure,
		Metric:      n.Metric,
		Description: n.Description,
		Patch:       n.Patch,
		CreatedAt:   n.CreatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler. A null score decodes as
// FailureScore.
func (n *SolutionNode) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = SolutionNode{
		ID:          raw.ID,
		ParentID:    raw.ParentID,
		Score:       FailureScore(),
		ScoreStd:    raw.ScoreStd,
		Diff:        raw.Diff,
		Children:    raw.Children,
		Status:      raw.Status,
		Failure:     raw.Failure,
		Metric:      raw.Metric,
		Description: raw.Description,
		Patch:       raw.Patch,
		CreatedAt:   raw.CreatedAt,
	}
	if raw.Score != nil {
		n.Score = *raw.Score
	}
	return nil
}

// FiniteOrNil returns a pointer to v, or nil if v is NaN or infinite.
func FiniteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
