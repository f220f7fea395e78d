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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGenerator_Catalog(t *testing.T) {
	got := DefaultGenerator{}.Candidates()
	require.Len(t, got, 2)

	assert.Equal(t, "Increase number of trees for stability", got[0].Description)
	assert.Equal(t, map[string]any{"n_estimators": 400, "random_state": 42}, got[0].Updates["model_params"])

	assert.Equal(t, "Reduce tree depth to prevent overfitting", got[1].Description)
	assert.Equal(t, map[string]any{"n_estimators": 200, "max_depth": 8, "random_state": 42}, got[1].Updates["model_params"])
}

func TestDefaultGenerator_Deterministic(t *testing.T) {
	assert.Equal(t, DefaultGenerator{}.Candidates(), DefaultGenerator{}.Candidates())
}

func TestCandidateEdit_DiffJSON(t *testing.T) {
	edit := CandidateEdit{Updates: map[string]any{
		"model_params": map[string]any{"n_estimators": 400, "max_depth": 3},
		"seed":         7,
	}}
	assert.Equal(t, `{"model_params":{"max_depth":3,"n_estimators":400},"seed":7}`, edit.DiffJSON())
}

func TestPolicy_Select(t *testing.T) {
	gen := Static{
		{Description: "a", Updates: map[string]any{"k": 1}},
		{Description: "b", Updates: map[string]any{"k": 2}},
		{Description: "c", Updates: map[string]any{"k": 3}},
	}

	tests := []struct {
		name   string
		policy Policy
		want   []string
	}{
		{"budget limits", Policy{Budget: 1, BranchFactor: 5}, []string{"a"}},
		{"branch factor limits", Policy{Budget: 10, BranchFactor: 2}, []string{"a", "b"}},
		{"generator limits", Policy{Budget: 10, BranchFactor: 10}, []string{"a", "b", "c"}},
		{"zero budget", Policy{Budget: 0, BranchFactor: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.Select(gen)
			names := make([]string, 0, len(got))
			for _, c := range got {
				names = append(names, c.Description)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{Budget: -1, BranchFactor: 2}.Validate())
	assert.Error(t, Policy{Budget: 1, BranchFactor: 2, EarlyStopRounds: -3}.Validate())
}

func TestCandidates_ReturnCopies(t *testing.T) {
	gen := Static{{Description: "a", Updates: map[string]any{"model_params": map[string]any{"n": 1}}}}

	first := gen.Candidates()
	first[0].Updates["model_params"].(map[string]any)["n"] = 99

	second := gen.Candidates()
	assert.Equal(t, 1, second[0].Updates["model_params"].(map[string]any)["n"])
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
candidates:
  - description: Wider ensemble
    updates:
      model_params:
        n_estimators: 800
  - description: Different seed
    updates:
      seed: 7
`), 0644))

	gen, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, gen.Path())

	got := gen.Candidates()
	require.Len(t, got, 2)
	assert.Equal(t, "Wider ensemble", got[0].Description)
	assert.Equal(t, map[string]any{"n_estimators": 800}, got[0].Updates["model_params"])
	assert.Equal(t, 7, got[1].Updates["seed"])
}

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"candidates":[{"description":"x","updates":{"seed":3}}]}`), 0644))

	gen, err := LoadFile(path)
	require.NoError(t, err)
	got := gen.Candidates()
	require.Len(t, got, 1)
	assert.Equal(t, float64(3), got[0].Updates["seed"])
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty list", "candidates: []\n"},
		{"missing description", "candidates:\n  - updates: {seed: 1}\n"},
		{"missing updates", "candidates:\n  - description: nothing\n"},
		{"not yaml", "candidates: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
