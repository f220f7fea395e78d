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
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/mlsearch/pkg/logging"
	"github.com/AleutianAI/mlsearch/services/search/candidates"
	"github.com/AleutianAI/mlsearch/services/search/controller"
	"github.com/AleutianAI/mlsearch/services/search/eval"
	"github.com/AleutianAI/mlsearch/services/search/ledger"
	"github.com/AleutianAI/mlsearch/services/search/sandbox"
	"github.com/AleutianAI/mlsearch/services/search/settings"
	"github.com/AleutianAI/mlsearch/services/search/telemetry"
	"github.com/AleutianAI/mlsearch/services/search/tree"
	"github.com/AleutianAI/mlsearch/services/search/workspace"
)

// ErrAmbiguousNode indicates a node id prefix matching several nodes.
var ErrAmbiguousNode = errors.New("node id prefix is ambiguous")

// envOptions selects what openEnvironment sets up beyond the workspace.
type envOptions struct {
	// lock takes the workspace lock for commands that write to it.
	lock bool

	// ledger opens the node ledger.
	ledger bool

	// telemetry installs trace and metric exporters.
	telemetry bool

	// trace forces the stdout trace exporter.
	trace bool
}

// environment is everything a command needs, opened in one place and
// closed in reverse order.
type environment struct {
	ws       *workspace.Workspace
	settings settings.Settings
	logger   *logging.Logger
	ledger   *ledger.Ledger
	lock     *workspace.Lock
	shutdown func(context.Context) error
}

// openEnvironment opens the workspace and loads settings.
//
// Inputs:
//
//	ctx - Context for exporter setup
//	root - Persistent flags
//	opts - Optional pieces to set up
//
// Outputs:
//
//	*environment - Ready environment. Call Close.
//	error - Non-nil if any requested piece failed to open
func openEnvironment(ctx context.Context, root *rootOptions, opts envOptions) (env *environment, err error) {
	ws, err := workspace.Open(root.workspace)
	if err != nil {
		return nil, err
	}

	path := root.settingsPath
	if path == "" {
		path = filepath.Join(ws.Root(), settings.FileName)
	}
	cfg, err := settings.Load(path)
	if err != nil {
		return nil, err
	}
	if root.logLevel != "" {
		cfg.Logging.Level = root.logLevel
	}

	env = &environment{ws: ws, settings: cfg}
	defer func() {
		if err != nil {
			env.Close()
			env = nil
		}
	}()

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return env, err
	}
	logCfg := logging.Config{Level: level}
	if cfg.Logging.File && opts.lock {
		logCfg.LogDir = ws.LogsDir()
	}
	env.logger = logging.New(logCfg)

	if opts.lock {
		env.lock = workspace.NewLock(ws)
		if err := env.lock.Acquire(); err != nil {
			return env, err
		}
	}

	if opts.ledger {
		lcfg := ledger.DefaultConfig(ws.LedgerDir())
		lcfg.Logger = env.logger.Slog()
		if env.ledger, err = ledger.Open(lcfg); err != nil {
			return env, err
		}
	}

	if opts.telemetry {
		tcfg := telemetry.DefaultConfig()
		tcfg.TraceExporter = cfg.Telemetry.TraceExporter
		tcfg.MetricExporter = cfg.Telemetry.MetricExporter
		tcfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
		if opts.trace {
			tcfg.TraceExporter = "stdout"
		}
		if env.shutdown, err = telemetry.Init(ctx, tcfg); err != nil {
			return env, err
		}
	}
	return env, nil
}

// Close releases everything openEnvironment acquired.
func (e *environment) Close() {
	if e.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.shutdown(ctx); err != nil {
			e.log().Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
		cancel()
	}
	if e.ledger != nil {
		if err := e.ledger.Close(); err != nil {
			e.log().Warn("Ledger close failed", slog.String("error", err.Error()))
		}
	}
	if e.lock != nil {
		if err := e.lock.Release(); err != nil {
			e.log().Warn("Lock release failed", slog.String("error", err.Error()))
		}
	}
	if e.logger != nil {
		e.logger.Close()
	}
}

func (e *environment) log() *slog.Logger {
	if e.logger == nil {
		return slog.Default()
	}
	return e.logger.Slog()
}

// evaluator builds the evaluator described by the runner settings.
func (e *environment) evaluator() *eval.Evaluator {
	r := e.settings.Runner
	execCfg := sandbox.DefaultConfig()
	execCfg.MaxOutputBytes = r.MaxOutputBytes

	opts := []eval.Option{
		eval.WithInterpreter(r.Interpreter),
		eval.WithTrainScript(r.TrainScript),
		eval.WithPredictScript(r.PredictScript),
	}
	for k, v := range r.Env {
		opts = append(opts, eval.WithEnv(k, v))
	}
	return eval.NewEvaluator(sandbox.NewExecutor(execCfg, e.log()), e.log(), opts...)
}

// controller builds a controller wired to the environment's ledger.
func (e *environment) controller(opts ...controller.Option) *controller.Controller {
	r := e.settings.Runner
	base := []controller.Option{
		controller.WithWorkers(e.settings.Search.Workers),
		controller.WithTrainTimeout(r.TrainTimeout),
		controller.WithPredictTimeout(r.PredictTimeout),
	}
	if e.ledger != nil {
		base = append(base, controller.WithLedger(e.ledger))
	}
	return controller.NewController(e.evaluator(), e.log(), append(base, opts...)...)
}

// generator returns the candidate source named by the settings.
// Relative candidate file paths resolve against the workspace root.
func (e *environment) generator() (candidates.Generator, error) {
	path := e.settings.Search.CandidatesFile
	if path == "" {
		return candidates.DefaultGenerator{}, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.ws.Root(), path)
	}
	return candidates.LoadFile(path)
}

// loadRun returns a run record and its tree. An empty runID selects the
// most recent run.
func (e *environment) loadRun(runID string) (ledger.RunRecord, *tree.SolutionTree, error) {
	var (
		run ledger.RunRecord
		err error
	)
	if runID == "" {
		run, err = e.ledger.LatestRun()
	} else {
		run, err = e.ledger.Run(runID)
	}
	if err != nil {
		return run, nil, err
	}
	t, err := e.ledger.LoadTree(run.ID)
	if err != nil {
		return run, nil, err
	}
	return run, t, nil
}

// resolveNode finds the node whose id starts with prefix.
func resolveNode(t *tree.SolutionTree, prefix string) (*tree.SolutionNode, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty id", controller.ErrNodeNotFound)
	}
	if n, ok := t.Get(prefix); ok {
		return n, nil
	}
	var match *tree.SolutionNode
	for _, n := range t.Nodes() {
		if !strings.HasPrefix(n.ID, prefix) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousNode, prefix)
		}
		match = n
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", controller.ErrNodeNotFound, prefix)
	}
	return match, nil
}
