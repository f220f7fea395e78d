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
	"fmt"
	"math"
	"strings"
	"sync"
)

// SolutionTree records every evaluated node and its lineage.
//
// Description:
//
//	Nodes are kept in insertion order. A node whose parent has not been
//	added yet is stored and reported by Pending until the parent arrives,
//	at which point it is linked into the parent's children. The best node
//	is maintained as a running maximum over succeeded nodes, so ties go to
//	the node inserted first.
//
// Thread Safety: Safe for concurrent use.
type SolutionTree struct {
	mu      sync.RWMutex
	nodes   map[string]*SolutionNode
	order   []string
	rootID  string
	bestID  string
	pending map[string][]string // parent id -> waiting child ids
}

// New creates an empty tree.
func New() *SolutionTree {
	return &SolutionTree{
		nodes:   make(map[string]*SolutionNode),
		pending: make(map[string][]string),
	}
}

// AddNode inserts a node.
//
// Description:
//
//	A node with an empty ParentID becomes the root; only one root is
//	allowed. If the parent is present the node is appended to its
//	children, otherwise the node waits in Pending. Adding a node also
//	links any nodes that were waiting for it.
//
// Inputs:
//
//	node - The node to add. The tree takes ownership.
//
// Outputs:
//
//	error - ErrNilNode, ErrEmptyID, ErrSelfParent, ErrDuplicateNode,
//	        ErrRootExists or ErrInvalidScore. The tree is unchanged on error.
//
// Thread Safety: Safe for concurrent use.
func (t *SolutionTree) AddNode(node *SolutionNode) error {
	if node == nil {
		return ErrNilNode
	}
	if node.ID == "" {
		return ErrEmptyID
	}
	if node.Status == "" {
		node.Status = StatusSucceeded
	}
	if node.Status == StatusSucceeded && math.IsNaN(node.Score) {
		return fmt.Errorf("%w: %s", ErrInvalidScore, node.ID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}
	if node.ParentID == node.ID {
		return fmt.Errorf("%w: %s", ErrSelfParent, node.ID)
	}
	if node.IsRoot() && t.rootID != "" {
		return fmt.Errorf("%w: %s", ErrRootExists, t.rootID)
	}

	t.nodes[node.ID] = node
	t.order = append(t.order, node.ID)

	if node.IsRoot() {
		t.rootID = node.ID
	} else if parent, ok := t.nodes[node.ParentID]; ok {
		parent.Children = append(parent.Children, node.ID)
	} else {
		t.pending[node.ParentID] = append(t.pending[node.ParentID], node.ID)
	}

	if waiting, ok := t.pending[node.ID]; ok {
		node.Children = append(node.Children, waiting...)
		delete(t.pending, node.ID)
	}

	if node.Status == StatusSucceeded {
		if best, ok := t.nodes[t.bestID]; !ok || node.Score > best.Score {
			t.bestID = node.ID
		}
	}
	return nil
}

// BestNode returns the succeeded node with the highest score.
//
// Ties are broken in favour of the node inserted first. Returns false
// when no succeeded node exists.
func (t *SolutionTree) BestNode() (*SolutionNode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node, ok := t.nodes[t.bestID]
	return node, ok
}

// Get returns the node with the given id.
func (t *SolutionTree) Get(id string) (*SolutionNode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node, ok := t.nodes[id]
	return node, ok
}

// Root returns the root node, if one has been added.
func (t *SolutionTree) Root() (*SolutionNode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node, ok := t.nodes[t.rootID]
	return node, ok
}

// Len returns the number of nodes, including pending ones.
func (t *SolutionTree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Nodes returns all nodes in insertion order.
func (t *SolutionTree) Nodes() []*SolutionNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*SolutionNode, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.nodes[id])
	}
	return out
}

// Pending returns ids of nodes whose parent has not been added, in
// insertion order.
func (t *SolutionTree) Pending() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for _, id := range t.order {
		node := t.nodes[id]
		if node.IsRoot() {
			continue
		}
		if _, ok := t.nodes[node.ParentID]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// =============================================================================
// FORMATTING
// =============================================================================

// Format renders the tree with box-drawing branches, marking the best node.
func (t *SolutionTree) Format() string {
	root, ok := t.Root()
	if !ok {
		return "Empty tree"
	}
	best, _ := t.BestNode()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Nodes: %d\n", t.Len()))
	if best != nil {
		sb.WriteString(fmt.Sprintf("Best: %s (score: %.6f)\n", ShortID(best.ID), best.Score))
	}
	sb.WriteString("\n")

	t.formatNode(&sb, root, best, "", true)

	if pending := t.Pending(); len(pending) > 0 {
		sb.WriteString(fmt.Sprintf("\nPending (parent missing): %d\n", len(pending)))
		for _, id := range pending {
			node, _ := t.Get(id)
			t.formatNode(&sb, node, best, "", true)
		}
	}
	return sb.String()
}

func (t *SolutionTree) formatNode(sb *strings.Builder, node, best *SolutionNode, prefix string, isLast bool) {
	branch := "├── "
	if isLast {
		branch = "└── "
	}

	score := "failed: " + node.Failure
	if !node.Failed() {
		score = fmt.Sprintf("score: %.6f ± %.4f", node.Score, node.ScoreStd)
	}
	bestIcon := ""
	if best != nil && best.ID == node.ID {
		bestIcon = " ★"
	}

	label := node.Description
	if label == "" {
		label = node.Diff
	}
	sb.WriteString(fmt.Sprintf("%s%s[%s] %s (%s)%s\n",
		prefix, branch, ShortID(node.ID), truncate(label, 48), score, bestIcon))

	childPrefix := prefix
	if isLast {
		childPrefix += "    "
	} else {
		childPrefix += "│   "
	}

	t.mu.RLock()
	children := make([]*SolutionNode, 0, len(node.Children))
	for _, id := range node.Children {
		children = append(children, t.nodes[id])
	}
	t.mu.RUnlock()

	for i, child := range children {
		t.formatNode(sb, child, best, childPrefix, i == len(children)-1)
	}
}

// ShortID returns the first 12 characters of a content hash.
func ShortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}

// truncate shortens s to maxLen runes, ending in "...".
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
