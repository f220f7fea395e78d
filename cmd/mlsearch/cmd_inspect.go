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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/mlsearch/pkg/ux"
	"github.com/AleutianAI/mlsearch/services/search/controller"
	"github.com/AleutianAI/mlsearch/services/search/tree"
)

func newBestCmd(root *rootOptions) *cobra.Command {
	var runID string
	var showPatch bool
	cmd := &cobra.Command{
		Use:   "best",
		Short: "Show the best node of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context(), root, envOptions{ledger: true})
			if err != nil {
				return err
			}
			defer env.Close()

			run, t, err := env.loadRun(runID)
			if err != nil {
				return err
			}
			best, ok := t.BestNode()
			if !ok {
				return fmt.Errorf("run %s: %w", run.ID, controller.ErrNoSuccessfulNode)
			}

			ux.KeyValue("run", run.ID)
			ux.KeyValue("node", best.ID)
			ux.KeyValue("score", fmt.Sprintf("%.6f", best.Score))
			ux.KeyValue("score_std", fmt.Sprintf("%.6f", best.ScoreStd))
			ux.KeyValue("metric", best.Metric)
			ux.KeyValue("description", best.Description)
			ux.KeyValue("diff", best.Diff)
			if showPatch && best.Patch != "" {
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprint(cmd.OutOrStdout(), best.Patch)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run id (default: most recent run)")
	cmd.Flags().BoolVar(&showPatch, "patch", false, "Print the config patch of the best node")
	return cmd
}

func newShowCmd(root *rootOptions) *cobra.Command {
	var runID string
	var asTable bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the solution tree of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context(), root, envOptions{ledger: true})
			if err != nil {
				return err
			}
			defer env.Close()

			run, t, err := env.loadRun(runID)
			if err != nil {
				return err
			}

			ux.KeyValue("run", run.ID)
			ux.KeyValue("state", string(run.State))
			if run.Error != "" {
				ux.KeyValue("error", run.Error)
			}
			if asTable {
				fmt.Fprint(cmd.OutOrStdout(), nodesTable(t))
			} else {
				fmt.Fprint(cmd.OutOrStdout(), t.Format())
			}
			if pending := t.Pending(); len(pending) > 0 {
				ux.Warning(fmt.Sprintf("%d node(s) reference a missing parent", len(pending)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run id (default: most recent run)")
	cmd.Flags().BoolVar(&asTable, "table", false, "Print nodes as a table instead of a tree")
	return cmd
}

func newRunsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context(), root, envOptions{ledger: true})
			if err != nil {
				return err
			}
			defer env.Close()

			runs, err := env.ledger.Runs()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				finished := "-"
				if r.FinishedAt != nil {
					finished = r.FinishedAt.Local().Format(time.DateTime)
				}
				rows = append(rows, []string{
					r.ID,
					string(r.State),
					r.StartedAt.Local().Format(time.DateTime),
					finished,
					fmt.Sprintf("%d", r.NodeCount),
					tree.ShortID(r.BestID),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), ux.Table(
				[]string{"run", "state", "started", "finished", "nodes", "best"}, rows))
			return nil
		},
	}
}
