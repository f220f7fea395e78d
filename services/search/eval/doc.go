// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package eval turns a workspace into a score.
//
// An Evaluator runs the workspace's training program through a
// sandbox.Executor, reads the metrics artifact the program leaves in
// artifacts/metrics.json, and orients the score so that higher is always
// better. It also runs the prediction program and checks the submission
// file's header against the reference sample.
//
// The training program is opaque: any executable that writes
//
//	{"score": 0.87, "score_std": 0.01, "metric": "accuracy"}
//
// satisfies the contract. An optional "direction": "min" marks a score
// where lower is better; such scores are negated before they are returned.
package eval
