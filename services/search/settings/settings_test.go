// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	assert.Equal(t, 10, s.Policy().Budget)
	assert.Equal(t, 2, s.Policy().BranchFactor)
	assert.Equal(t, 3, s.Policy().EarlyStopRounds)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  budget: 4
  workers: 2
runner:
  interpreter: /usr/bin/python3.12
  train_timeout: 5m
  env:
    OMP_NUM_THREADS: "1"
logging:
  level: debug
`), 0644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Search.Budget)
	assert.Equal(t, 2, s.Search.BranchFactor, "unset fields keep defaults")
	assert.Equal(t, 2, s.Search.Workers)
	assert.Equal(t, "/usr/bin/python3.12", s.Runner.Interpreter)
	assert.Equal(t, 5*time.Minute, s.Runner.TrainTimeout)
	assert.Equal(t, 20*time.Minute, s.Runner.PredictTimeout)
	assert.Equal(t, map[string]string{"OMP_NUM_THREADS": "1"}, s.Runner.Env)
	assert.Equal(t, "debug", s.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative budget", "search:\n  budget: -1\n"},
		{"zero workers", "search:\n  workers: 0\n"},
		{"unknown level", "logging:\n  level: loud\n"},
		{"unknown exporter", "telemetry:\n  trace_exporter: jaeger\n"},
		{"empty interpreter", "runner:\n  interpreter: \"\"\n"},
		{"bad duration", "runner:\n  train_timeout: soon\n"},
		{"not yaml", "search: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSettings_MarshalRoundTrip(t *testing.T) {
	want := DefaultSettings()
	want.Search.Budget = 7

	data, err := want.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, data, 0644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
