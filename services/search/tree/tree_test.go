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
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

func succeeded(id, parent string, score float64) *SolutionNode {
	return &SolutionNode{ID: id, ParentID: parent, Score: score, Status: StatusSucceeded}
}

func failed(id, parent string) *SolutionNode {
	return &SolutionNode{ID: id, ParentID: parent, Score: FailureScore(), Status: StatusFailed, Failure: "timed_out"}
}

func TestNew_Empty(t *testing.T) {
	tr := New()

	if tr.Len() != 0 {
		t.Errorf("Len = %d, want 0", tr.Len())
	}
	if _, ok := tr.BestNode(); ok {
		t.Error("BestNode on empty tree should report false")
	}
	if _, ok := tr.Root(); ok {
		t.Error("Root on empty tree should report false")
	}
	if got := tr.Format(); got != "Empty tree" {
		t.Errorf("Format = %q, want %q", got, "Empty tree")
	}
}

func TestAddNode_LinksChildrenInOrder(t *testing.T) {
	tr := New()
	mustAdd(t, tr, succeeded("root", "", 0.80))
	mustAdd(t, tr, succeeded("a", "root", 0.81))
	mustAdd(t, tr, succeeded("b", "root", 0.79))

	root, ok := tr.Root()
	if !ok {
		t.Fatal("Root should exist")
	}
	if got := strings.Join(root.Children, ","); got != "a,b" {
		t.Errorf("root children = %s, want a,b", got)
	}
	if tr.Len() != 3 {
		t.Errorf("Len = %d, want 3", tr.Len())
	}

	var order []string
	for _, n := range tr.Nodes() {
		order = append(order, n.ID)
	}
	if got := strings.Join(order, ","); got != "root,a,b" {
		t.Errorf("Nodes order = %s, want root,a,b", got)
	}
}

func TestAddNode_Errors(t *testing.T) {
	tr := New()
	mustAdd(t, tr, succeeded("root", "", 1))

	tests := []struct {
		name string
		node *SolutionNode
		want error
	}{
		{"nil", nil, ErrNilNode},
		{"empty id", succeeded("", "root", 1), ErrEmptyID},
		{"duplicate", succeeded("root", "x", 1), ErrDuplicateNode},
		{"duplicate of root naming root as parent", succeeded("root", "root", 1), ErrDuplicateNode},
		{"second root", succeeded("other", "", 1), ErrRootExists},
		{"self parent", succeeded("loop", "loop", 1), ErrSelfParent},
		{"nan score", succeeded("nan", "root", math.NaN()), ErrInvalidScore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tr.AddNode(tt.node); !errors.Is(err, tt.want) {
				t.Errorf("AddNode error = %v, want %v", err, tt.want)
			}
		})
	}

	if tr.Len() != 1 {
		t.Errorf("Len after rejected adds = %d, want 1", tr.Len())
	}
}

func TestAddNode_DuplicateChildAppearsOnce(t *testing.T) {
	tr := New()
	mustAdd(t, tr, succeeded("root", "", 1))
	mustAdd(t, tr, succeeded("a", "root", 1))
	_ = tr.AddNode(succeeded("a", "root", 2))

	root, _ := tr.Root()
	if len(root.Children) != 1 {
		t.Errorf("root children = %v, want [a]", root.Children)
	}
}

func TestBestNode_RunningMaximum(t *testing.T) {
	tr := New()
	mustAdd(t, tr, succeeded("root", "", 0.80))

	best, _ := tr.BestNode()
	if best.ID != "root" {
		t.Errorf("best = %s, want root", best.ID)
	}

	mustAdd(t, tr, succeeded("a", "root", 0.85))
	mustAdd(t, tr, succeeded("b", "root", 0.82))

	best, _ = tr.BestNode()
	if best.ID != "a" {
		t.Errorf("best = %s, want a", best.ID)
	}
}

func TestBestNode_TieGoesToFirstInserted(t *testing.T) {
	tr := New()
	mustAdd(t, tr, succeeded("root", "", 0.5))
	mustAdd(t, tr, succeeded("a", "root", 0.9))
	mustAdd(t, tr, succeeded("b", "root", 0.9))

	best, _ := tr.BestNode()
	if best.ID != "a" {
		t.Errorf("best = %s, want a (first of tie)", best.ID)
	}
}

func TestBestNode_ExcludesFailed(t *testing.T) {
	tr := New()
	mustAdd(t, tr, failed("root", ""))
	if _, ok := tr.BestNode(); ok {
		t.Error("failed root must not be best")
	}

	mustAdd(t, tr, failed("a", "root"))
	mustAdd(t, tr, succeeded("b", "root", -12.5))

	best, ok := tr.BestNode()
	if !ok || best.ID != "b" {
		t.Errorf("best = %v, want b", best)
	}
}

func TestAddNode_PendingOrphanLinkedLater(t *testing.T) {
	tr := New()
	mustAdd(t, tr, succeeded("child", "root", 0.9))

	if got := tr.Pending(); len(got) != 1 || got[0] != "child" {
		t.Fatalf("Pending = %v, want [child]", got)
	}
	// Orphans still count and compete for best.
	if best, _ := tr.BestNode(); best.ID != "child" {
		t.Errorf("best = %s, want child", best.ID)
	}

	mustAdd(t, tr, succeeded("root", "", 0.5))

	if got := tr.Pending(); len(got) != 0 {
		t.Errorf("Pending after parent arrived = %v, want empty", got)
	}
	root, _ := tr.Root()
	if len(root.Children) != 1 || root.Children[0] != "child" {
		t.Errorf("root children = %v, want [child]", root.Children)
	}
}

func TestAddNode_Concurrent(t *testing.T) {
	tr := New()
	mustAdd(t, tr, succeeded("root", "", 0))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = tr.AddNode(succeeded(string(rune('A'+i)), "root", float64(i)))
		}(i)
	}
	wg.Wait()

	if tr.Len() != 51 {
		t.Errorf("Len = %d, want 51", tr.Len())
	}
	best, _ := tr.BestNode()
	if best.Score != 49 {
		t.Errorf("best score = %v, want 49", best.Score)
	}
}

func TestSolutionNode_JSONFailureScore(t *testing.T) {
	n := failed("abc", "root")

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if !strings.Contains(string(data), `"score":null`) {
		t.Errorf("failed node JSON = %s, want null score", data)
	}

	var decoded SolutionNode
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if !math.IsInf(decoded.Score, -1) {
		t.Errorf("decoded score = %v, want -Inf", decoded.Score)
	}
	if decoded.Failure != "timed_out" || decoded.ParentID != "root" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestFormat_MarksBest(t *testing.T) {
	tr := New()
	mustAdd(t, tr, &SolutionNode{ID: "root", Score: 0.8, Diff: BaselineDiff})
	mustAdd(t, tr, &SolutionNode{ID: "a", ParentID: "root", Score: 0.9, Description: "More trees"})
	mustAdd(t, tr, failed("b", "root"))

	out := tr.Format()
	if !strings.Contains(out, "[a] More trees") || !strings.Contains(out, "★") {
		t.Errorf("Format missing best marker:\n%s", out)
	}
	if !strings.Contains(out, "failed: timed_out") {
		t.Errorf("Format missing failure:\n%s", out)
	}
}

func TestFormat_TruncatesOnRuneBoundary(t *testing.T) {
	tr := New()
	mustAdd(t, tr, &SolutionNode{ID: "root", Score: 0.8, Diff: BaselineDiff})
	mustAdd(t, tr, &SolutionNode{ID: "a", ParentID: "root", Score: 0.9, Description: strings.Repeat("é", 60)})

	out := tr.Format()
	if !utf8.ValidString(out) {
		t.Errorf("Format produced invalid UTF-8:\n%q", out)
	}
	if !strings.Contains(out, strings.Repeat("é", 45)+"...") {
		t.Errorf("Format did not truncate to 48 runes:\n%s", out)
	}
}

func mustAdd(t *testing.T, tr *SolutionTree, n *SolutionNode) {
	t.Helper()
	if err := tr.AddNode(n); err != nil {
		t.Fatalf("AddNode(%s) error = %v", n.ID, err)
	}
}
