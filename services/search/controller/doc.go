// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package controller runs a configuration search over a workspace.
//
// A search has three phases:
//
//  1. Baseline. The unmodified workspace is trained and scored. Its source
//     hash becomes the root of the solution tree. Failure here is fatal.
//  2. Expansion. Each candidate selected by the policy is applied to a
//     private copy of the workspace, trained, hashed and recorded as a
//     child of the root. A failing candidate becomes a failed node and
//     the search continues.
//  3. Finalize. The best node's snapshot is restored into the live
//     workspace, retrained, and used to produce a validated submission.
//
// Candidates may be evaluated concurrently (Config.Workers). Results are
// committed by one goroutine in generator order, so the tree, the metrics
// log, the snapshot store and the ledger see the same sequence as a
// sequential run.
package controller
