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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/mlsearch/pkg/ux"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	workspace    string
	settingsPath string
	logLevel     string
	output       string
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "mlsearch",
		Short: "Search training configurations for a tabular ML workspace",
		Long: `mlsearch evaluates configuration edits of a training pipeline as
isolated subprocess runs, records every attempt in a provenance tree with a
content-addressed snapshot, and restores the best attempt on demand.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.output != "" {
				ux.SetMode(ux.ParseMode(opts.output))
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.workspace, "workspace", "w", ".", "Run workspace directory (must contain src/)")
	flags.StringVarP(&opts.settingsPath, "config", "c", "", "Settings file (default <workspace>/mlsearch.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
	flags.StringVarP(&opts.output, "output", "o", "", "Output style: rich, plain or machine")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newBestCmd(opts),
		newShowCmd(opts),
		newRunsCmd(opts),
		newSubmitCmd(opts),
		newReplayCmd(opts),
		newConfigCmd(opts),
	)
	return rootCmd
}
