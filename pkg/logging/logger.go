// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides structured logging for mlsearch.
//
// Logs go to stderr for interactive use and, when LogDir is set, to a
// JSON file named {service}_{YYYY-MM-DD}.log for later inspection. Both
// destinations receive the same records through a slog-multi fan-out.
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  ws.LogsDir(),
//	    Service: "mlsearch",
//	})
//	defer logger.Close()
//
// Components take a *slog.Logger; pass logger.Slog().
//
// This package does NOT redact anything. Do not log secrets from the
// training program's environment.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// =============================================================================
// Levels
// =============================================================================

// Level is a logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a level name as written in settings files.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures a Logger.
type Config struct {
	// Level sets the minimum log level.
	// Default: LevelInfo
	Level Level

	// LogDir enables JSON file logging to the directory.
	// Created with 0750 permissions if missing. Supports ~ expansion.
	// Default: "" (file logging disabled)
	LogDir string

	// Service is attached to every record as the "service" attribute and
	// names the log file.
	// Default: "mlsearch"
	Service string

	// JSON switches the console output to JSON.
	// File logs are always JSON.
	JSON bool

	// Quiet disables console output.
	Quiet bool

	// Console overrides the console destination.
	// Default: os.Stderr
	Console io.Writer
}

// =============================================================================
// Logger
// =============================================================================

// Logger wraps slog.Logger with an optional log file.
//
// Thread Safety: Safe for concurrent use.
type Logger struct {
	slog    *slog.Logger
	level   *slog.LevelVar
	config  Config
	file    *os.File
	logPath string
	mu      sync.Mutex
}

// New creates a Logger.
//
// A log file that cannot be created is reported on the console and
// otherwise ignored; logging never prevents a run.
func New(config Config) *Logger {
	if config.Service == "" {
		config.Service = "mlsearch"
	}
	console := config.Console
	if console == nil {
		console = os.Stderr
	}

	level := new(slog.LevelVar)
	level.Set(config.Level.toSlogLevel())
	opts := &slog.HandlerOptions{Level: level}

	logger := &Logger{config: config, level: level}

	var handlers []slog.Handler
	var consoleHandler slog.Handler
	if config.JSON {
		consoleHandler = slog.NewJSONHandler(console, opts)
	} else {
		consoleHandler = slog.NewTextHandler(console, opts)
	}
	if !config.Quiet {
		handlers = append(handlers, consoleHandler)
	}

	var fileErr error
	if config.LogDir != "" {
		fileErr = logger.openFile(expandPath(config.LogDir))
		if fileErr == nil {
			handlers = append(handlers, slog.NewJSONHandler(logger.file, opts))
		}
	}

	if len(handlers) == 0 {
		handlers = append(handlers, consoleHandler)
	}

	handler := slogmulti.Fanout(handlers...).WithAttrs([]slog.Attr{
		slog.String("service", config.Service),
	})
	logger.slog = slog.New(handler)

	if fileErr != nil {
		logger.slog.Warn("File logging disabled", slog.String("error", fileErr.Error()))
	}
	return logger
}

// Default returns a console-only logger at info level.
func Default() *Logger {
	return New(Config{Level: LevelInfo})
}

func (l *Logger) openFile(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.log", l.config.Service, time.Now().Format("2006-01-02"))
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	l.file = file
	l.logPath = path
	return nil
}

// Slog returns the underlying slog.Logger for passing to components.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// With returns a slog.Logger carrying additional attributes.
func (l *Logger) With(args ...any) *slog.Logger {
	return l.slog.With(args...)
}

// SetLevel changes the minimum level of every destination.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level.toSlogLevel())
}

// FilePath returns the log file path, or "" if file logging is off.
func (l *Logger) FilePath() string {
	return l.logPath
}

// Close flushes and closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Sync()
	if closeErr := l.file.Close(); err == nil {
		err = closeErr
	}
	l.file = nil
	return err
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
