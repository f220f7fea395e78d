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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/mlsearch/services/search/candidates"
	"github.com/AleutianAI/mlsearch/services/search/eval"
	"github.com/AleutianAI/mlsearch/services/search/ledger"
	"github.com/AleutianAI/mlsearch/services/search/snapshot"
	"github.com/AleutianAI/mlsearch/services/search/tree"
	"github.com/AleutianAI/mlsearch/services/search/workspace"
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs searches and finalizes their results.
//
// Thread Safety: NOT safe for concurrent use. Run one search at a time
// per Controller; candidate evaluations inside a search run concurrently
// according to Config.Workers.
type Controller struct {
	config    *Config
	evaluator *eval.Evaluator
	logger    *slog.Logger
	now       func() time.Time
	runID     string
}

// NewController creates a controller.
//
// Inputs:
//
//	evaluator - Trains, predicts and validates. Must not be nil.
//	logger - Logger for structured logging. Nil uses slog.Default().
//	opts - Configuration options
//
// Outputs:
//
//	*Controller - Configured controller
func NewController(evaluator *eval.Evaluator, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		config:    NewConfig(opts...),
		evaluator: evaluator,
		logger:    logger,
		now:       time.Now,
	}
}

// LastRunID returns the id of the most recent RunSearch call, or "".
func (c *Controller) LastRunID() string {
	return c.runID
}

// search is the state of one RunSearch call. Only the committing
// goroutine touches it.
type search struct {
	runID     string
	ws        *workspace.Workspace
	store     *snapshot.Store
	log       *metricsLog
	tree      *tree.SolutionTree
	rootID    string
	summaries []RunSummary
	seq       int
	logger    *slog.Logger
}

// candidateOutcome is what a worker hands to the committer.
type candidateOutcome struct {
	index   int
	edit    candidates.CandidateEdit
	clone   *workspace.Workspace
	nodeID  string
	patch   string
	result  *eval.EvalResult
	err     error // evaluation failure, recorded on the node
	prepErr error // copy, config or hash failure; no node possible
	elapsed time.Duration
}

// RunSearch evaluates the baseline and the selected candidates.
//
// Description:
//
//	Evaluates the live workspace as the root, then evaluates
//	policy.Select(generator) candidates, each in a private copy of the
//	workspace with the baseline config reset and the candidate's updates
//	merged in. Every evaluated attempt is appended to logs/metrics.jsonl,
//	added to the tree and snapshotted under its content hash.
//
// Inputs:
//
//	ctx - Context for cancellation. Cancelling stops the search; the
//	      partial tree and summaries are returned with the error.
//	ws - Live workspace
//	policy - Bounds the number of candidates
//	timeout - Wall-clock limit for each training run
//
// Outputs:
//
//	*tree.SolutionTree - Root plus one node per distinct candidate
//	[]RunSummary - One entry per attempt, baseline first, in generator order
//	error - ErrBaselineFailed (wrapping the cause) if the baseline fails,
//	        a wrapped ctx error on cancellation, or an I/O error while
//	        recording. Candidate failures are not errors.
func (c *Controller) RunSearch(ctx context.Context, ws *workspace.Workspace, policy candidates.Policy, timeout time.Duration) (*tree.SolutionTree, []RunSummary, error) {
	if ctx == nil {
		return nil, nil, ErrNilContext
	}
	if ws == nil {
		return nil, nil, ErrNilWorkspace
	}
	if timeout <= 0 {
		return nil, nil, ErrInvalidTimeout
	}
	if err := policy.Validate(); err != nil {
		return nil, nil, err
	}

	runID := uuid.New().String()
	c.runID = runID
	logger := c.logger.With(slog.String("run_id", runID[:8]))
	selected := policy.Select(c.config.Generator)

	ctx, span := startSearchSpan(ctx, runID, ws.Root(), len(selected))
	var runErr error
	defer func() { endSpan(span, runErr) }()

	if err := ws.EnsureDirs(); err != nil {
		runErr = err
		return nil, nil, err
	}
	mlog, err := openMetricsLog(ws.MetricsLogPath(), c.now)
	if err != nil {
		runErr = err
		return nil, nil, err
	}
	defer mlog.Close()

	s := &search{
		runID:  runID,
		ws:     ws,
		store:  snapshot.NewStore(ws.SnapshotsDir(), logger),
		log:    mlog,
		tree:   tree.New(),
		logger: logger,
	}

	started := c.now()
	if err := c.beginLedger(runID, policy, started); err != nil {
		runErr = err
		return nil, nil, err
	}

	logger.Info("Starting search",
		slog.String("workspace", ws.Root()),
		slog.Int("candidates", len(selected)),
		slog.Int("workers", c.config.Workers),
		slog.Duration("timeout", timeout),
	)

	baseline, err := c.evaluateBaseline(ctx, s, timeout)
	if err != nil {
		runErr = err
		c.finishLedger(s, started, err)
		recordSearch("baseline_failed", math.Inf(-1))
		logger.Error("Baseline failed", slog.String("error", err.Error()))
		return nil, nil, err
	}

	err = c.expand(ctx, s, selected, baseline, timeout)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("search interrupted: %w", ctx.Err())
	}
	c.finishLedger(s, started, err)

	bestID, bestScore := "", math.Inf(-1)
	if best, ok := s.tree.BestNode(); ok {
		bestID, bestScore = best.ID, best.Score
	}

	switch {
	case err == nil:
		recordSearch("completed", bestScore)
	case ctx.Err() != nil:
		recordSearch("interrupted", bestScore)
	default:
		recordSearch("error", bestScore)
	}

	if err != nil {
		runErr = err
		logger.Warn("Search stopped early",
			slog.Int("nodes", s.tree.Len()),
			slog.String("error", err.Error()),
		)
		return s.tree, s.summaries, err
	}

	logger.Info("Search complete",
		slog.Int("nodes", s.tree.Len()),
		slog.String("best", tree.ShortID(bestID)),
		slog.Float64("best_score", bestScore),
	)
	return s.tree, s.summaries, nil
}

// evaluateBaseline scores the live workspace and records the root.
//
// Outputs:
//
//	[]byte - Raw baseline config, the reset point for every candidate
//	error - ErrBaselineFailed wrapping the cause, or a recording error
func (c *Controller) evaluateBaseline(ctx context.Context, s *search, timeout time.Duration) ([]byte, error) {
	_, raw, err := s.ws.ReadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBaselineFailed, err)
	}

	start := time.Now()
	result, err := c.evaluator.Evaluate(ctx, s.ws, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBaselineFailed, err)
	}

	rootID, err := snapshot.Hash(s.ws.SrcDir())
	if err != nil {
		return nil, fmt.Errorf("%w: hash sources: %w", ErrBaselineFailed, err)
	}
	s.rootID = rootID

	root := &tree.SolutionNode{
		ID:          rootID,
		Score:       result.Score,
		ScoreStd:    result.ScoreStd,
		Diff:        tree.BaselineDiff,
		Status:      tree.StatusSucceeded,
		Metric:      result.Metric,
		Description: "baseline",
		CreatedAt:   c.now().UTC(),
	}
	if err := c.commit(s, root, "", s.ws.SrcDir(), time.Since(start)); err != nil {
		return nil, err
	}

	s.logger.Info("Baseline recorded",
		slog.String("node_id", tree.ShortID(rootID)),
		slog.String("metric", result.Metric),
		slog.Float64("score", result.Score),
	)
	return raw, nil
}

// expand evaluates candidates on a bounded worker pool and commits the
// outcomes in generator order.
func (c *Controller) expand(ctx context.Context, s *search, selected []candidates.CandidateEdit, baseline []byte, timeout time.Duration) error {
	n := len(selected)
	if n == 0 {
		return nil
	}

	// Buffered so workers never block on a slow committer.
	results := make(chan *candidateOutcome, n)

	// A plain Group: one candidate failing must not cancel the others.
	var g errgroup.Group
	g.SetLimit(c.config.Workers)

	go func() {
		for i, edit := range selected {
			if err := ctx.Err(); err != nil {
				results <- &candidateOutcome{index: i, edit: edit, err: err}
				continue
			}
			g.Go(func() error {
				results <- c.evaluateCandidate(ctx, s, i, edit, baseline, timeout)
				return nil
			})
		}
	}()

	// Reorder buffer: hold early finishers until their turn.
	pending := make(map[int]*candidateOutcome, n)
	next := 0
	var commitErr error
	for received := 0; received < n; received++ {
		out := <-results
		pending[out.index] = out
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if err := c.commitCandidate(ctx, s, ready); err != nil && commitErr == nil {
				commitErr = err
			}
		}
	}
	_ = g.Wait()
	return commitErr
}

// evaluateCandidate runs one candidate in a private workspace copy.
//
// Thread Safety: Called concurrently. Reads shared search fields only.
func (c *Controller) evaluateCandidate(ctx context.Context, s *search, index int, edit candidates.CandidateEdit, baseline []byte, timeout time.Duration) *candidateOutcome {
	out := &candidateOutcome{index: index, edit: edit}
	ctx, span := startCandidateSpan(ctx, index, edit.Description)
	defer func() { endSpan(span, errors.Join(out.prepErr, out.err)) }()

	start := time.Now()
	defer func() { out.elapsed = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		out.err = err
		return out
	}

	clone, err := s.ws.Clone(fmt.Sprintf("%s-%03d", s.runID[:8], index), s.logger)
	if err != nil {
		out.prepErr = fmt.Errorf("copy workspace: %w", err)
		return out
	}
	out.clone = clone

	written, err := clone.ApplyUpdates(baseline, edit.Updates)
	if err != nil {
		out.prepErr = fmt.Errorf("apply updates: %w", err)
		return out
	}
	if out.patch, err = workspace.ConfigPatch(baseline, written, workspace.ConfigFileName); err != nil {
		s.logger.Debug("Config patch unavailable", slog.String("error", err.Error()))
	}

	out.result, out.err = c.evaluator.Evaluate(ctx, clone, timeout)

	if out.nodeID, err = snapshot.Hash(clone.SrcDir()); err != nil {
		out.prepErr = fmt.Errorf("hash sources: %w", err)
	}
	return out
}

// commitCandidate records a finished candidate and discards its copy.
func (c *Controller) commitCandidate(ctx context.Context, s *search, out *candidateOutcome) error {
	if out.clone != nil {
		defer func() {
			if err := out.clone.Discard(); err != nil {
				s.logger.Warn("Failed to remove workspace copy",
					slog.String("dir", out.clone.Root()),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	if out.err != nil && isCancellation(ctx, out.err) {
		s.summaries = append(s.summaries, RunSummary{
			Description: out.edit.Description,
			Status:      StatusSkipped,
			Failure:     FailureCancelled,
			Error:       out.err.Error(),
			Elapsed:     out.elapsed,
		})
		recordCandidate(FailureCancelled)
		return nil
	}

	if out.prepErr != nil {
		s.logger.Warn("Candidate could not be prepared",
			slog.String("description", out.edit.Description),
			slog.String("error", out.prepErr.Error()),
		)
		s.summaries = append(s.summaries, RunSummary{
			Description: out.edit.Description,
			Status:      StatusSkipped,
			Failure:     FailureError,
			Error:       out.prepErr.Error(),
			Elapsed:     out.elapsed,
		})
		recordCandidate(FailureError)
		return nil
	}

	node := &tree.SolutionNode{
		ID:          out.nodeID,
		ParentID:    s.rootID,
		Diff:        out.edit.DiffJSON(),
		Description: out.edit.Description,
		Patch:       out.patch,
		CreatedAt:   c.now().UTC(),
	}
	var errText string
	if out.err != nil {
		node.Status = tree.StatusFailed
		node.Score = tree.FailureScore()
		node.Failure = FailureName(out.err)
		errText = out.err.Error()
		s.logger.Warn("Candidate failed",
			slog.String("description", out.edit.Description),
			slog.String("failure", node.Failure),
			slog.String("error", errText),
		)
	} else {
		node.Status = tree.StatusSucceeded
		node.Score = out.result.Score
		node.ScoreStd = out.result.ScoreStd
		node.Metric = out.result.Metric
		s.logger.Info("Candidate evaluated",
			slog.String("description", out.edit.Description),
			slog.String("node_id", tree.ShortID(node.ID)),
			slog.Float64("score", node.Score),
		)
	}

	return c.commit(s, node, errText, out.clone.SrcDir(), out.elapsed)
}

// commit appends the log entry, adds the node and stores its snapshot.
// A duplicate content hash is logged and summarized but not added again.
func (c *Controller) commit(s *search, node *tree.SolutionNode, errText, srcDir string, elapsed time.Duration) error {
	if err := s.log.Append(node, errText); err != nil {
		return err
	}

	if err := s.tree.AddNode(node); err != nil {
		if !errors.Is(err, tree.ErrDuplicateNode) {
			return fmt.Errorf("record node: %w", err)
		}
		s.logger.Warn("Candidate produced sources identical to an existing node",
			slog.String("node_id", tree.ShortID(node.ID)),
			slog.String("description", node.Description),
		)
		s.summaries = append(s.summaries, summaryFor(node, StatusDuplicate, errText, elapsed))
		recordCandidate(StatusDuplicate)
		return nil
	}

	if err := s.store.Store(srcDir, node.ID); err != nil {
		return fmt.Errorf("snapshot node %s: %w", tree.ShortID(node.ID), err)
	}

	if c.config.Ledger != nil {
		if err := c.config.Ledger.SaveNode(s.runID, s.seq, node); err != nil {
			return fmt.Errorf("save node to ledger: %w", err)
		}
	}
	s.seq++

	s.summaries = append(s.summaries, summaryFor(node, string(node.Status), errText, elapsed))
	if node.Failed() {
		recordCandidate(node.Failure)
	} else {
		recordCandidate(string(tree.StatusSucceeded))
	}
	return nil
}

// isCancellation reports whether err is the search context ending rather
// than a candidate failing.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// =============================================================================
// LEDGER
// =============================================================================

func (c *Controller) beginLedger(runID string, policy candidates.Policy, started time.Time) error {
	if c.config.Ledger == nil {
		return nil
	}
	err := c.config.Ledger.BeginRun(ledger.RunRecord{
		ID:           runID,
		State:        ledger.RunStarted,
		StartedAt:    started.UTC(),
		Budget:       policy.Budget,
		BranchFactor: policy.BranchFactor,
	})
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// finishLedger records the final run state. Failures are logged only:
// the search result is already on disk in the metrics log.
func (c *Controller) finishLedger(s *search, started time.Time, runErr error) {
	if c.config.Ledger == nil {
		return
	}
	finished := c.now().UTC()
	rec := ledger.RunRecord{
		ID:         s.runID,
		State:      ledger.RunCompleted,
		StartedAt:  started.UTC(),
		FinishedAt: &finished,
		RootID:     s.rootID,
		NodeCount:  s.tree.Len(),
	}
	if prev, err := c.config.Ledger.Run(s.runID); err == nil {
		rec.Budget = prev.Budget
		rec.BranchFactor = prev.BranchFactor
	}
	if best, ok := s.tree.BestNode(); ok {
		rec.BestID = best.ID
	}
	if runErr != nil {
		rec.State = ledger.RunFailed
		rec.Error = runErr.Error()
	}
	if err := c.config.Ledger.FinishRun(rec); err != nil {
		s.logger.Warn("Failed to record run completion", slog.String("error", err.Error()))
	}
}
