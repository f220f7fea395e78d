// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package candidates

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is shared by policy and candidate file validation.
var validate = validator.New()

// Policy bounds how many candidates a search evaluates.
type Policy struct {
	// Budget is the maximum number of candidates tried in total.
	// Default: 10
	Budget int `json:"budget" yaml:"budget" validate:"gte=0"`

	// BranchFactor is the maximum number of candidates per expansion round.
	// Default: 2
	BranchFactor int `json:"branch_factor" yaml:"branch_factor" validate:"gte=0"`

	// EarlyStopRounds is parsed and validated but not consulted: a single
	// round of fan-out has nothing to stop early.
	// Default: 3
	EarlyStopRounds int `json:"early_stop_rounds" yaml:"early_stop_rounds" validate:"gte=0"`
}

// DefaultPolicy returns a Policy with sensible defaults.
func DefaultPolicy() Policy {
	return Policy{
		Budget:          10,
		BranchFactor:    2,
		EarlyStopRounds: 3,
	}
}

// Validate checks that no limit is negative.
func (p Policy) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid search policy: %w", err)
	}
	return nil
}

// Limit returns how many of n candidates the policy admits.
func (p Policy) Limit(n int) int {
	return max(min(p.Budget, p.BranchFactor, n), 0)
}

// Select returns the first Limit(len) candidates of gen in generator order.
func (p Policy) Select(gen Generator) []CandidateEdit {
	if gen == nil {
		return nil
	}
	all := gen.Candidates()
	return all[:p.Limit(len(all))]
}
