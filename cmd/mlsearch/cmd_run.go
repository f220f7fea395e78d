// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/mlsearch/pkg/ux"
	"github.com/AleutianAI/mlsearch/services/search/controller"
	"github.com/AleutianAI/mlsearch/services/search/telemetry"
	"github.com/AleutianAI/mlsearch/services/search/tree"
)

// runOptions are the flags of "mlsearch run".
type runOptions struct {
	budget       int
	branchFactor int
	workers      int
	timeout      time.Duration
	candidates   string
	metricsFile  string
	trace        bool
	submit       bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate the baseline and candidate configurations",
		Long: `Evaluates the workspace as the baseline, then each selected candidate
in a private copy of the workspace. Every attempt is appended to
logs/metrics.jsonl, snapshotted under artifacts/<hash>/ and recorded in
the ledger. A summary is written to logs/summary.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.budget, "budget", 0, "Maximum candidates to evaluate (overrides settings)")
	f.IntVar(&opts.branchFactor, "branch-factor", 0, "Maximum candidates per expansion (overrides settings)")
	f.IntVar(&opts.workers, "workers", 0, "Concurrent candidate evaluations (overrides settings)")
	f.DurationVar(&opts.timeout, "timeout", 0, "Per-run training timeout (overrides settings)")
	f.StringVar(&opts.candidates, "candidates", "", "YAML or JSON candidate file (overrides settings)")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus text metrics to this file when done")
	f.BoolVar(&opts.trace, "trace", false, "Print trace spans to stderr")
	f.BoolVar(&opts.submit, "submit", false, "Finalize the best node after the search")
	return cmd
}

func runSearch(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := openEnvironment(ctx, root, envOptions{
		lock:      true,
		ledger:    true,
		telemetry: true,
		trace:     opts.trace,
	})
	if err != nil {
		return err
	}
	defer env.Close()

	applyRunFlags(cmd, env, opts)
	if err := env.settings.Validate(); err != nil {
		return err
	}

	gen, err := env.generator()
	if err != nil {
		return err
	}
	ctrl := env.controller(controller.WithGenerator(gen))
	policy := env.settings.Policy()

	ux.Title("mlsearch run")
	ux.KeyValue("workspace", env.ws.Root())
	ux.KeyValue("candidates", fmt.Sprintf("%d of %d", len(policy.Select(gen)), len(gen.Candidates())))
	ux.KeyValue("workers", fmt.Sprintf("%d", env.settings.Search.Workers))
	ux.KeyValue("timeout", env.settings.Runner.TrainTimeout.String())

	t, summaries, runErr := ctrl.RunSearch(ctx, env.ws, policy, env.settings.Runner.TrainTimeout)
	if t != nil {
		if err := controller.WriteSummary(env.ws.SummaryPath(), ctrl.LastRunID(), t, summaries); err != nil {
			return errors.Join(runErr, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), summaryTable(t, summaries))
		printCounts(summaries)
	}

	if opts.metricsFile != "" {
		if err := telemetry.WriteMetricsFile(opts.metricsFile); err != nil {
			return errors.Join(runErr, err)
		}
	}

	if runErr != nil {
		return runErr
	}

	best, ok := t.BestNode()
	if !ok {
		ux.Warning("No candidate succeeded")
		return nil
	}
	ux.Success(fmt.Sprintf("Best node %s (%s %.6f): %s",
		tree.ShortID(best.ID), best.Metric, best.Score, best.Description))
	ux.Info("Summary written to " + env.ws.SummaryPath())

	if opts.submit {
		return finalize(ctx, ctrl, env, t)
	}
	return nil
}

// applyRunFlags copies explicitly set flags over the loaded settings.
func applyRunFlags(cmd *cobra.Command, env *environment, opts *runOptions) {
	f := cmd.Flags()
	if f.Changed("budget") {
		env.settings.Search.Budget = opts.budget
	}
	if f.Changed("branch-factor") {
		env.settings.Search.BranchFactor = opts.branchFactor
	}
	if f.Changed("workers") {
		env.settings.Search.Workers = opts.workers
	}
	if f.Changed("timeout") {
		env.settings.Runner.TrainTimeout = opts.timeout
	}
	if f.Changed("candidates") {
		env.settings.Search.CandidatesFile = opts.candidates
	}
}

// finalize restores the best node of t and produces the submission.
func finalize(ctx context.Context, ctrl *controller.Controller, env *environment, t *tree.SolutionTree) error {
	result, err := ctrl.Finalize(ctx, env.ws, t)
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	ux.Success(fmt.Sprintf("Restored %s and retrained (%s %.6f)",
		tree.ShortID(result.Node.ID), result.Retrain.Metric, result.Retrain.Score))
	ux.Box("Submission ready", result.SubmissionPath)
	return nil
}
