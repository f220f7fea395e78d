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

import "errors"

var (
	// ErrNilNode indicates a nil node was passed to AddNode.
	ErrNilNode = errors.New("node must not be nil")

	// ErrEmptyID indicates a node without an id.
	ErrEmptyID = errors.New("node id must not be empty")

	// ErrDuplicateNode indicates a node id already present in the tree.
	ErrDuplicateNode = errors.New("node already in tree")

	// ErrRootExists indicates a second parentless node.
	ErrRootExists = errors.New("tree already has a root")

	// ErrSelfParent indicates a node naming itself as parent.
	ErrSelfParent = errors.New("node cannot be its own parent")

	// ErrInvalidScore indicates a succeeded node with a NaN score.
	ErrInvalidScore = errors.New("succeeded node has NaN score")
)
