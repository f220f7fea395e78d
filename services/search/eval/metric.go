// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

import "strings"

// Direction states whether larger or smaller raw scores are better.
type Direction string

const (
	Maximize Direction = "max"
	Minimize Direction = "min"
)

// MetricKind is one of a closed set of known metrics.
//
// Each kind is bound to its natural direction at package init. A training
// program may report scores already oriented (the usual case, e.g. negated
// log loss) or declare "direction": "min" and let Orient negate them.
type MetricKind struct {
	Name    string
	Natural Direction
}

// Known metric kinds.
var (
	Accuracy = MetricKind{Name: "accuracy", Natural: Maximize}
	ROCAUC   = MetricKind{Name: "roc_auc", Natural: Maximize}
	LogLoss  = MetricKind{Name: "log_loss", Natural: Minimize}
	RMSE     = MetricKind{Name: "rmse", Natural: Minimize}
	MAE      = MetricKind{Name: "mae", Natural: Minimize}
	Custom   = MetricKind{Name: "custom", Natural: Maximize}
)

var metricKinds = map[string]MetricKind{
	Accuracy.Name: Accuracy,
	ROCAUC.Name:   ROCAUC,
	LogLoss.Name:  LogLoss,
	RMSE.Name:     RMSE,
	MAE.Name:      MAE,
}

// LookupMetric returns the kind for a metric name. Matching ignores case and
// surrounding whitespace; unknown names map to Custom.
func LookupMetric(name string) MetricKind {
	if kind, ok := metricKinds[strings.ToLower(strings.TrimSpace(name))]; ok {
		return kind
	}
	return Custom
}

// Orient converts a raw score into "higher is better" form.
//
// declared is the direction reported alongside the score; an empty value
// means the score is already oriented.
func (k MetricKind) Orient(raw float64, declared Direction) float64 {
	if declared == Minimize {
		return -raw
	}
	return raw
}

// LooksUnoriented reports whether an oriented score is suspicious for this
// kind: a positive value for a loss-like metric suggests the program forgot
// to negate it or to declare "direction": "min".
func (k MetricKind) LooksUnoriented(oriented float64) bool {
	return k.Natural == Minimize && oriented > 0
}
