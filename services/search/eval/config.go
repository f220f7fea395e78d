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

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config names the programs an Evaluator runs.
type Config struct {
	// Interpreter runs the scripts. Resolved through PATH when not absolute.
	// Default: "python3"
	Interpreter string

	// TrainScript is the training program, relative to src/.
	// Default: "train.py"
	TrainScript string

	// PredictScript is the prediction program, relative to src/.
	// Default: "predict.py"
	PredictScript string

	// Env holds extra environment variables for both programs.
	Env map[string]string
}

// DefaultConfig returns a Config with sensible defaults.
//
// Outputs:
//
//	*Config - Configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Interpreter:   "python3",
		TrainScript:   "train.py",
		PredictScript: "predict.py",
	}
}

// Option is a function that modifies Config.
type Option func(*Config)

// WithInterpreter sets the program used to run the scripts.
func WithInterpreter(path string) Option {
	return func(c *Config) {
		c.Interpreter = path
	}
}

// WithTrainScript sets the training script name.
func WithTrainScript(name string) Option {
	return func(c *Config) {
		c.TrainScript = name
	}
}

// WithPredictScript sets the prediction script name.
func WithPredictScript(name string) Option {
	return func(c *Config) {
		c.PredictScript = name
	}
}

// WithEnv adds an environment variable for both programs.
func WithEnv(key, value string) Option {
	return func(c *Config) {
		if c.Env == nil {
			c.Env = make(map[string]string)
		}
		c.Env[key] = value
	}
}

// NewConfig creates a Config with the given options applied.
//
// Empty fields after applying options fall back to defaults.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	defaults := DefaultConfig()
	if cfg.Interpreter == "" {
		cfg.Interpreter = defaults.Interpreter
	}
	if cfg.TrainScript == "" {
		cfg.TrainScript = defaults.TrainScript
	}
	if cfg.PredictScript == "" {
		cfg.PredictScript = defaults.PredictScript
	}
	return cfg
}
