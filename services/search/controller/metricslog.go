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
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AleutianAI/mlsearch/services/search/tree"
)

// timestampLayout is UTC, second precision, with a literal Z.
const timestampLayout = "2006-01-02T15:04:05Z"

// defaultCV names the cross-validation scheme in log entries.
const defaultCV = "default"

// MetricsLogEntry is one line of logs/metrics.jsonl.
type MetricsLogEntry struct {
	NodeID     string   `json:"node_id"`
	Timestamp  string   `json:"timestamp"`
	Score      *float64 `json:"score"`
	ScoreStd   float64  `json:"score_std"`
	MetricName string   `json:"metric_name"`
	CV         string   `json:"cv"`
	Status     string   `json:"status,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// metricsLog appends entries to the metrics log.
//
// Thread Safety: Safe for concurrent use; the controller writes from a
// single goroutine regardless.
type metricsLog struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// openMetricsLog opens path for appending, creating parent directories.
func openMetricsLog(path string, now func() time.Time) (*metricsLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open metrics log: %w", err)
	}
	return &metricsLog{file: f, now: now}, nil
}

// Append writes one entry for node. Failed nodes get a null score plus
// status and error fields.
func (m *metricsLog) Append(node *tree.SolutionNode, errText string) error {
	entry := MetricsLogEntry{
		NodeID:     node.ID,
		Timestamp:  m.now().UTC().Format(timestampLayout),
		Score:      tree.FiniteOrNil(node.Score),
		ScoreStd:   node.ScoreStd,
		MetricName: node.Metric,
		CV:         defaultCV,
	}
	if node.Failed() {
		entry.Score = nil
		entry.Status = node.Failure
		entry.Error = errText
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode metrics entry: %w", err)
	}
	data = append(data, '\n')

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.file.Write(data); err != nil {
		return fmt.Errorf("append metrics log: %w", err)
	}
	return nil
}

// Close closes the log file.
func (m *metricsLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}

// ReadMetricsLog parses every entry of a metrics log.
func ReadMetricsLog(path string) ([]MetricsLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metrics log: %w", err)
	}
	defer f.Close()

	var entries []MetricsLogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry MetricsLogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("metrics log line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read metrics log: %w", err)
	}
	return entries, nil
}
