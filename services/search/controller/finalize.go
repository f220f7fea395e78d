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
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/mlsearch/services/search/eval"
	"github.com/AleutianAI/mlsearch/services/search/sandbox"
	"github.com/AleutianAI/mlsearch/services/search/snapshot"
	"github.com/AleutianAI/mlsearch/services/search/tree"
	"github.com/AleutianAI/mlsearch/services/search/workspace"
)

// FinalizeResult is the outcome of a successful Finalize.
type FinalizeResult struct {
	// Node is the best node whose sources now occupy the live workspace.
	Node *tree.SolutionNode

	// Retrain is the evaluation that regenerated the model artifacts.
	Retrain *eval.EvalResult

	// Prediction is the prediction program's execution result.
	Prediction *sandbox.Result

	// SubmissionPath is the validated submission file.
	SubmissionPath string
}

// Finalize materializes the best node in the live workspace.
//
// Description:
//
//	Restores the best node's snapshot over ws's sources, verifies the
//	restored tree hashes to the node id, retrains to regenerate the model
//	artifacts, runs prediction and validates the submission header.
//
// Inputs:
//
//	ctx - Context for cancellation
//	ws - Live workspace the search ran on
//	t - Tree returned by RunSearch or loaded from the ledger
//
// Outputs:
//
//	*FinalizeResult - Restored node, retrain and prediction results
//	error - ErrNoSuccessfulNode, ErrSnapshotMissing, ErrSnapshotMismatch,
//	        an evaluation error, *PredictionFailedError, or a submission
//	        validation error
func (c *Controller) Finalize(ctx context.Context, ws *workspace.Workspace, t *tree.SolutionTree) (result *FinalizeResult, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if ws == nil {
		return nil, ErrNilWorkspace
	}
	if t == nil {
		return nil, ErrNilTree
	}

	ctx, span := tracer.Start(ctx, "Controller.Finalize",
		trace.WithAttributes(attribute.String("finalize.workspace", ws.Root())),
	)
	defer func() {
		recordFinalize(err)
		endSpan(span, err)
	}()

	best, ok := t.BestNode()
	if !ok {
		return nil, ErrNoSuccessfulNode
	}
	span.SetAttributes(attribute.String("finalize.node_id", best.ID))

	if err := c.restore(ws, best.ID); err != nil {
		return nil, err
	}
	c.logger.Info("Restored best node",
		slog.String("node_id", tree.ShortID(best.ID)),
		slog.String("description", best.Description),
		slog.Float64("score", best.Score),
	)

	retrain, err := c.evaluator.Evaluate(ctx, ws, c.config.TrainTimeout)
	if err != nil {
		return nil, fmt.Errorf("retrain best node: %w", err)
	}
	if math.Abs(retrain.Score-best.Score) > 1e-9 {
		c.logger.Info("Retrained score differs from recorded score",
			slog.Float64("recorded", best.Score),
			slog.Float64("retrained", retrain.Score),
		)
	}

	prediction, err := c.evaluator.Predict(ctx, ws, c.config.PredictTimeout)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if prediction.ExitCode != 0 {
		return nil, &PredictionFailedError{ExitCode: prediction.ExitCode, Stderr: prediction.Stderr}
	}

	if err := c.evaluator.ValidateSubmission(ws); err != nil {
		return nil, err
	}

	c.logger.Info("Submission ready", slog.String("path", ws.SubmissionPath()))
	return &FinalizeResult{
		Node:           best,
		Retrain:        retrain,
		Prediction:     prediction,
		SubmissionPath: ws.SubmissionPath(),
	}, nil
}

// Replay restores a node's snapshot into ws and evaluates it again.
//
// Inputs:
//
//	ctx - Context for cancellation
//	ws - Workspace to restore into
//	t - Tree containing the node
//	nodeID - Full node id
//
// Outputs:
//
//	*eval.EvalResult - Fresh evaluation of the restored sources
//	error - ErrNodeNotFound, a restore error, or an evaluation error
func (c *Controller) Replay(ctx context.Context, ws *workspace.Workspace, t *tree.SolutionTree, nodeID string) (*eval.EvalResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if ws == nil {
		return nil, ErrNilWorkspace
	}
	if t == nil {
		return nil, ErrNilTree
	}
	node, ok := t.Get(nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}

	ctx, span := tracer.Start(ctx, "Controller.Replay",
		trace.WithAttributes(attribute.String("replay.node_id", node.ID)),
	)
	var err error
	defer func() { endSpan(span, err) }()

	if err = c.restore(ws, node.ID); err != nil {
		return nil, err
	}

	var result *eval.EvalResult
	result, err = c.evaluator.Evaluate(ctx, ws, c.config.TrainTimeout)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Replayed node",
		slog.String("node_id", tree.ShortID(node.ID)),
		slog.Float64("recorded", node.Score),
		slog.Float64("replayed", result.Score),
	)
	return result, nil
}

// restore replaces ws's sources with the snapshot id and verifies the hash.
func (c *Controller) restore(ws *workspace.Workspace, id string) error {
	store := snapshot.NewStore(ws.SnapshotsDir(), c.logger)
	if !store.Has(id) {
		return fmt.Errorf("%w: %s", ErrSnapshotMissing, tree.ShortID(id))
	}
	if err := store.Restore(id, ws.SrcDir()); err != nil {
		return fmt.Errorf("restore snapshot %s: %w", tree.ShortID(id), err)
	}
	got, err := snapshot.Hash(ws.SrcDir())
	if err != nil {
		return fmt.Errorf("hash restored sources: %w", err)
	}
	if got != id {
		return fmt.Errorf("%w: want %s, got %s", ErrSnapshotMismatch, tree.ShortID(id), tree.ShortID(got))
	}
	return nil
}
