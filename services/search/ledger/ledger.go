// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/mlsearch/services/search/tree"
)

var (
	// ErrNoRuns indicates the ledger holds no runs yet.
	ErrNoRuns = errors.New("ledger has no runs")

	// ErrRunNotFound indicates an unknown run id.
	ErrRunNotFound = errors.New("run not found")

	// ErrClosed indicates use of a closed ledger.
	ErrClosed = errors.New("ledger is closed")
)

const (
	runPrefix  = "run/"
	nodePrefix = "node/"
	latestKey  = "latest"
)

// RunState is the lifecycle state of a recorded run.
type RunState string

const (
	RunStarted   RunState = "started"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// RunRecord describes one search run.
type RunRecord struct {
	ID           string     `json:"id"`
	State        RunState   `json:"state"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Budget       int        `json:"budget"`
	BranchFactor int        `json:"branch_factor"`
	RootID       string     `json:"root_id,omitempty"`
	BestID       string     `json:"best_id,omitempty"`
	NodeCount    int        `json:"node_count"`
	Error        string     `json:"error,omitempty"`
}

// Ledger is a BadgerDB-backed store of runs and nodes.
//
// Thread Safety: Safe for concurrent use.
type Ledger struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens or creates a ledger.
//
// Outputs:
//
//	*Ledger - The ledger. Caller must call Close() when done.
//	error - Non-nil if the database cannot be opened. BadgerDB holds a
//	        directory lock, so a second process opening the same path fails.
func Open(cfg Config) (*Ledger, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{db: db, logger: logger}, nil
}

// Close runs one value-log GC pass and closes the database.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	if err := l.db.RunValueLogGC(0.5); err != nil &&
		!errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
		l.logger.Debug("Ledger value log GC skipped", slog.String("error", err.Error()))
	}
	err := l.db.Close()
	l.db = nil
	return err
}

// BeginRun records a new run and marks it as the latest.
func (l *Ledger) BeginRun(rec RunRecord) error {
	if rec.ID == "" {
		return errors.New("run id must not be empty")
	}
	if rec.State == "" {
		rec.State = RunStarted
	}
	return l.update(func(txn *badger.Txn) error {
		if err := putJSON(txn, runPrefix+rec.ID, rec); err != nil {
			return err
		}
		return txn.Set([]byte(latestKey), []byte(rec.ID))
	})
}

// FinishRun overwrites the run record with its final state.
func (l *Ledger) FinishRun(rec RunRecord) error {
	return l.update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(runPrefix + rec.ID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrRunNotFound, rec.ID)
			}
			return err
		}
		return putJSON(txn, runPrefix+rec.ID, rec)
	})
}

// SaveNode stores a node under its position in the run.
//
// seq orders nodes on reload; callers pass the insertion index.
func (l *Ledger) SaveNode(runID string, seq int, node *tree.SolutionNode) error {
	if node == nil {
		return tree.ErrNilNode
	}
	return l.update(func(txn *badger.Txn) error {
		return putJSON(txn, nodeKey(runID, seq), node)
	})
}

// Run returns a run record.
func (l *Ledger) Run(runID string) (RunRecord, error) {
	var rec RunRecord
	err := l.view(func(txn *badger.Txn) error {
		return getJSON(txn, runPrefix+runID, &rec)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return rec, err
}

// LatestRun returns the most recently started run.
func (l *Ledger) LatestRun() (RunRecord, error) {
	var runID string
	err := l.view(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		runID = string(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return RunRecord{}, ErrNoRuns
	}
	if err != nil {
		return RunRecord{}, err
	}
	return l.Run(runID)
}

// Runs returns every run, oldest first.
func (l *Ledger) Runs() ([]RunRecord, error) {
	var runs []RunRecord
	err := l.view(func(txn *badger.Txn) error {
		return scan(txn, runPrefix, func(val []byte) error {
			var rec RunRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("decode run record: %w", err)
			}
			runs = append(runs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs, nil
}

// LoadTree rebuilds the solution tree of a run.
//
// Nodes are re-added in their saved order, so children lists, pending
// orphans and the best node come out as they were during the run.
func (l *Ledger) LoadTree(runID string) (*tree.SolutionTree, error) {
	if _, err := l.Run(runID); err != nil {
		return nil, err
	}

	t := tree.New()
	err := l.view(func(txn *badger.Txn) error {
		return scan(txn, nodePrefix+runID+"/", func(val []byte) error {
			var node tree.SolutionNode
			if err := json.Unmarshal(val, &node); err != nil {
				return fmt.Errorf("decode node: %w", err)
			}
			node.Children = nil
			return t.AddNode(&node)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load tree for run %s: %w", runID, err)
	}
	return t, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (l *Ledger) update(fn func(txn *badger.Txn) error) error {
	if l.db == nil {
		return ErrClosed
	}
	return l.db.Update(fn)
}

func (l *Ledger) view(fn func(txn *badger.Txn) error) error {
	if l.db == nil {
		return ErrClosed
	}
	return l.db.View(fn)
}

func nodeKey(runID string, seq int) string {
	return fmt.Sprintf("%s%s/%06d", nodePrefix, runID, seq)
}

func putJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// scan visits every value under prefix in key order.
func scan(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}
