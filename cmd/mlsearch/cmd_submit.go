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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/mlsearch/pkg/ux"
	"github.com/AleutianAI/mlsearch/services/search/tree"
)

func newSubmitCmd(root *rootOptions) *cobra.Command {
	var runID string
	var traceSpans bool
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Restore the best node, retrain, predict and validate the submission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := openEnvironment(ctx, root, envOptions{
				lock: true, ledger: true, telemetry: true, trace: traceSpans,
			})
			if err != nil {
				return err
			}
			defer env.Close()

			_, t, err := env.loadRun(runID)
			if err != nil {
				return err
			}
			return finalize(ctx, env.controller(), env, t)
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run id (default: most recent run)")
	cmd.Flags().BoolVar(&traceSpans, "trace", false, "Print trace spans to stderr")
	return cmd
}

func newReplayCmd(root *rootOptions) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "replay <node-id>",
		Short: "Restore a node's snapshot into the workspace and evaluate it again",
		Long: `Restores the sources recorded for a node (a unique id prefix is enough)
into the workspace, verifies the content hash and reruns training.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := openEnvironment(ctx, root, envOptions{lock: true, ledger: true, telemetry: true})
			if err != nil {
				return err
			}
			defer env.Close()

			_, t, err := env.loadRun(runID)
			if err != nil {
				return err
			}
			node, err := resolveNode(t, args[0])
			if err != nil {
				return err
			}

			result, err := env.controller().Replay(ctx, env.ws, t, node.ID)
			if err != nil {
				return err
			}
			ux.KeyValue("node", node.ID)
			ux.KeyValue("recorded", recordedScore(node))
			ux.KeyValue("replayed", fmt.Sprintf("%.6f", result.Score))
			ux.Success(fmt.Sprintf("Workspace now holds %s", tree.ShortID(node.ID)))
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run id (default: most recent run)")
	return cmd
}

func recordedScore(n *tree.SolutionNode) string {
	if n.Failed() {
		return "failed (" + n.Failure + ")"
	}
	return fmt.Sprintf("%.6f", n.Score)
}

func newConfigCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context(), root, envOptions{})
			if err != nil {
				return err
			}
			defer env.Close()

			data, err := env.settings.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
