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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoCandidates indicates a candidate file that lists nothing.
var ErrNoCandidates = errors.New("candidate file lists no candidates")

// CandidateEdit is one proposed change to the config file.
//
// Updates are merged shallowly over the baseline config: a value under
// model_params replaces the whole nested mapping.
type CandidateEdit struct {
	Description string         `json:"description" yaml:"description" validate:"required"`
	Updates     map[string]any `json:"updates" yaml:"updates" validate:"required,min=1"`
}

// DiffJSON returns the JSON encoding of Updates with sorted keys.
func (c CandidateEdit) DiffJSON() string {
	data, err := json.Marshal(c.Updates)
	if err != nil {
		return fmt.Sprintf("%v", c.Updates)
	}
	return string(data)
}

// clone returns a deep copy so callers cannot mutate a generator's catalog.
func (c CandidateEdit) clone() CandidateEdit {
	return CandidateEdit{Description: c.Description, Updates: cloneMap(c.Updates)}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// =============================================================================
// GENERATORS
// =============================================================================

// Generator produces candidate edits.
//
// Candidates must be deterministic and finite: repeated calls return the
// same list in the same order.
type Generator interface {
	Candidates() []CandidateEdit
}

// DefaultGenerator yields a fixed catalog of ensemble perturbations.
type DefaultGenerator struct{}

// Candidates returns the catalog: more trees, then shallower trees.
func (DefaultGenerator) Candidates() []CandidateEdit {
	return []CandidateEdit{
		{
			Description: "Increase number of trees for stability",
			Updates: map[string]any{
				"model_params": map[string]any{"n_estimators": 400, "random_state": 42},
			},
		},
		{
			Description: "Reduce tree depth to prevent overfitting",
			Updates: map[string]any{
				"model_params": map[string]any{"n_estimators": 200, "max_depth": 8, "random_state": 42},
			},
		},
	}
}

// FileGenerator yields candidates listed in a YAML or JSON file.
type FileGenerator struct {
	path  string
	edits []CandidateEdit
}

// candidateFile is the on-disk layout.
type candidateFile struct {
	Candidates []CandidateEdit `json:"candidates" yaml:"candidates" validate:"dive"`
}

// LoadFile reads a candidate file.
//
// Description:
//
//	Files ending in .json are decoded as JSON, anything else as YAML. The
//	document holds a "candidates" list; each entry needs a description and
//	at least one update.
//
//	    candidates:
//	      - description: Wider trees
//	        updates:
//	          model_params: {n_estimators: 800}
//
// Outputs:
//
//	*FileGenerator - Generator yielding the file's entries in order
//	error - Non-nil on read, parse or validation failure
func LoadFile(path string) (*FileGenerator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidate file: %w", err)
	}

	var file candidateFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &file)
	} else {
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("parse candidate file %s: %w", path, err)
	}
	if len(file.Candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCandidates, path)
	}
	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid candidate file %s: %w", path, err)
	}

	return &FileGenerator{path: path, edits: file.Candidates}, nil
}

// Path returns the file the generator was loaded from.
func (g *FileGenerator) Path() string {
	return g.path
}

// Candidates returns the file's entries in order.
func (g *FileGenerator) Candidates() []CandidateEdit {
	out := make([]CandidateEdit, len(g.edits))
	for i, edit := range g.edits {
		out[i] = edit.clone()
	}
	return out
}

// Static wraps a fixed list as a Generator.
type Static []CandidateEdit

// Candidates returns copies of the list entries.
func (s Static) Candidates() []CandidateEdit {
	out := make([]CandidateEdit, len(s))
	for i, edit := range s {
		out[i] = edit.clone()
	}
	return out
}
