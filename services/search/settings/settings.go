// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package settings loads the optional mlsearch.yaml file at a workspace
// root. Every field has a default, so a workspace without the file runs
// with DefaultSettings. Command-line flags override file values.
package settings

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/mlsearch/services/search/candidates"
)

// FileName is the settings file looked up at the workspace root.
const FileName = "mlsearch.yaml"

var validate = validator.New()

// Settings is the full contents of mlsearch.yaml.
type Settings struct {
	Search    SearchSettings    `yaml:"search"`
	Runner    RunnerSettings    `yaml:"runner"`
	Logging   LoggingSettings   `yaml:"logging"`
	Telemetry TelemetrySettings `yaml:"telemetry"`
}

// SearchSettings bounds the search.
type SearchSettings struct {
	Budget          int `yaml:"budget" validate:"gte=0"`
	BranchFactor    int `yaml:"branch_factor" validate:"gte=0"`
	EarlyStopRounds int `yaml:"early_stop_rounds" validate:"gte=0"`

	// Workers is the number of candidates evaluated concurrently.
	Workers int `yaml:"workers" validate:"gte=1,lte=64"`

	// CandidatesFile lists candidates instead of the built-in catalog.
	// Relative paths are resolved against the workspace root.
	CandidatesFile string `yaml:"candidates_file,omitempty"`
}

// RunnerSettings describes the training and prediction programs.
type RunnerSettings struct {
	Interpreter    string            `yaml:"interpreter" validate:"required"`
	TrainScript    string            `yaml:"train_script" validate:"required"`
	PredictScript  string            `yaml:"predict_script" validate:"required"`
	TrainTimeout   time.Duration     `yaml:"train_timeout" validate:"gt=0"`
	PredictTimeout time.Duration     `yaml:"predict_timeout" validate:"gt=0"`
	MaxOutputBytes int               `yaml:"max_output_bytes" validate:"gte=1024"`
	Env            map[string]string `yaml:"env,omitempty"`
}

// LoggingSettings configures pkg/logging.
type LoggingSettings struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// File enables a JSON log file under the workspace logs/ directory.
	File bool `yaml:"file"`
}

// TelemetrySettings configures traces and metrics.
type TelemetrySettings struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none prometheus stdout"`
	OTLPEndpoint   string `yaml:"otlp_endpoint,omitempty"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	policy := candidates.DefaultPolicy()
	return Settings{
		Search: SearchSettings{
			Budget:          policy.Budget,
			BranchFactor:    policy.BranchFactor,
			EarlyStopRounds: policy.EarlyStopRounds,
			Workers:         1,
		},
		Runner: RunnerSettings{
			Interpreter:    "python3",
			TrainScript:    "train.py",
			PredictScript:  "predict.py",
			TrainTimeout:   20 * time.Minute,
			PredictTimeout: 20 * time.Minute,
			MaxOutputBytes: 1 << 20,
		},
		Logging: LoggingSettings{
			Level: "info",
			File:  true,
		},
		Telemetry: TelemetrySettings{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
		},
	}
}

// Load reads a settings file over the defaults.
//
// Description:
//
//	Fields absent from the file keep their default values. A missing file
//	is not an error.
//
// Outputs:
//
//	Settings - Effective settings
//	error - Non-nil on read, parse or validation failure
func Load(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks field constraints.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// Policy returns the search policy described by the settings.
func (s Settings) Policy() candidates.Policy {
	return candidates.Policy{
		Budget:          s.Search.Budget,
		BranchFactor:    s.Search.BranchFactor,
		EarlyStopRounds: s.Search.EarlyStopRounds,
	}
}

// Marshal encodes the settings as YAML.
func (s Settings) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}
