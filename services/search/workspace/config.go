// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Config is the decoded src/config.json document.
//
// Well-known keys are data_dir, seed, n_splits, model_params, task_type and
// target. Unknown keys are preserved on rewrite.
type Config map[string]any

// ReadConfig returns the raw bytes and decoded form of src/config.json.
//
// Numbers decode as json.Number so integers wider than a float64 mantissa
// (large seeds, for example) survive a read/write round trip unchanged.
func (w *Workspace) ReadConfig() (Config, []byte, error) {
	raw, err := os.ReadFile(w.ConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&cfg); err != nil {
		return nil, nil, fmt.Errorf("parse config %s: %w", w.ConfigPath(), err)
	}
	if cfg == nil {
		cfg = Config{}
	}
	return cfg, raw, nil
}

// WriteConfig encodes cfg as indented JSON into src/config.json.
//
// Keys are written in sorted order, so equal configs produce equal bytes
// and therefore equal content hashes.
func (w *Workspace) WriteConfig(cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')
	return w.WriteConfigRaw(data)
}

// WriteConfigRaw replaces src/config.json with raw bytes.
func (w *Workspace) WriteConfigRaw(raw []byte) error {
	if err := os.WriteFile(w.ConfigPath(), raw, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Merge returns a shallow merge of updates over base.
//
// Top-level keys in updates replace those in base wholesale: an update to
// model_params replaces the entire nested mapping. Neither input is modified.
func Merge(base Config, updates map[string]any) Config {
	merged := make(Config, len(base)+len(updates))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}

// ApplyUpdates resets the config to baseline and merges updates into it.
//
// Outputs:
//
//	[]byte - The bytes written to src/config.json
//	error - Non-nil on parse or write failure
func (w *Workspace) ApplyUpdates(baseline []byte, updates map[string]any) ([]byte, error) {
	if err := w.WriteConfigRaw(baseline); err != nil {
		return nil, err
	}
	base, _, err := w.ReadConfig()
	if err != nil {
		return nil, err
	}
	if err := w.WriteConfig(Merge(base, updates)); err != nil {
		return nil, err
	}
	return os.ReadFile(w.ConfigPath())
}
