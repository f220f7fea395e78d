// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package candidates supplies the configuration mutations a search tries
// and the policy that bounds how many of them are tried.
//
// A Generator yields a finite, ordered list of CandidateEdits. The search
// is a single round of fan-out: Policy.Select keeps the first
// min(Budget, BranchFactor, len) candidates in generator order and every
// selected candidate is evaluated as a child of the baseline.
package candidates
