// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package controller

import (
	"time"

	"github.com/AleutianAI/mlsearch/services/search/candidates"
	"github.com/AleutianAI/mlsearch/services/search/ledger"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds controller settings.
type Config struct {
	// Workers is the number of candidates evaluated concurrently.
	// Default: 1
	Workers int

	// Generator supplies candidates.
	// Default: candidates.DefaultGenerator
	Generator candidates.Generator

	// TrainTimeout bounds the retraining run in Finalize and Replay.
	// RunSearch takes its own timeout.
	// Default: 20m
	TrainTimeout time.Duration

	// PredictTimeout bounds the prediction run in Finalize.
	// Default: 20m
	PredictTimeout time.Duration

	// Ledger persists runs and nodes. Optional.
	Ledger *ledger.Ledger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:        1,
		Generator:      candidates.DefaultGenerator{},
		TrainTimeout:   20 * time.Minute,
		PredictTimeout: 20 * time.Minute,
	}
}

// Option is a function that modifies Config.
type Option func(*Config)

// WithWorkers sets the number of concurrent candidate evaluations.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithGenerator sets the candidate source.
func WithGenerator(g candidates.Generator) Option {
	return func(c *Config) {
		c.Generator = g
	}
}

// WithTrainTimeout sets the retraining timeout used by Finalize and Replay.
func WithTrainTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.TrainTimeout = d
	}
}

// WithPredictTimeout sets the prediction timeout used by Finalize.
func WithPredictTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.PredictTimeout = d
	}
}

// WithLedger persists runs and nodes to l.
func WithLedger(l *ledger.Ledger) Option {
	return func(c *Config) {
		c.Ledger = l
	}
}

// NewConfig creates a Config with the given options applied.
//
// Out-of-range values are clamped to defaults.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	defaults := DefaultConfig()
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Generator == nil {
		cfg.Generator = defaults.Generator
	}
	if cfg.TrainTimeout <= 0 {
		cfg.TrainTimeout = defaults.TrainTimeout
	}
	if cfg.PredictTimeout <= 0 {
		cfg.PredictTimeout = defaults.PredictTimeout
	}
	return cfg
}
