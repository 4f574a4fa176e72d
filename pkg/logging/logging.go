// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging configures structured logging for relink commands.
//
// Output goes to stderr so document paths and reports on stdout stay
// pipeable. The stderr format follows the terminal: human-readable text
// when stderr is a TTY, JSON when it is redirected. An optional log
// directory adds a JSON file sink alongside stderr.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Config configures the process logger. The zero value logs Info and
// above to stderr only.
type Config struct {
	// Level is the minimum level: "debug", "info", "warn", or "error".
	// Blank means "info".
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// Dir enables an additional JSON file sink, one file per day named
	// relink_{YYYY-MM-DD}.log. Blank disables the sink.
	Dir string `yaml:"dir"`

	// Quiet drops the stderr sink. Only useful together with Dir.
	Quiet bool `yaml:"quiet"`

	// ForceJSON emits JSON on stderr even on a terminal.
	ForceJSON bool `yaml:"force_json"`
}

// ParseLevel maps a config string to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// Setup builds the process logger, installs it as slog's default, and
// returns it with a cleanup function that closes the file sink.
func Setup(cfg Config) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if !cfg.Quiet {
		if cfg.ForceJSON || !isatty.IsTerminal(os.Stderr.Fd()) {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	cleanup := func() error { return nil }
	if cfg.Dir != "" {
		dir := expandPath(cfg.Dir)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		name := fmt.Sprintf("relink_%s.log", time.Now().Format("2006-01-02"))
		file, err := os.OpenFile(filepath.Join(dir, name),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(file, opts))
		cleanup = func() error {
			if err := file.Sync(); err != nil {
				file.Close()
				return err
			}
			return file.Close()
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		// Quiet with no file sink still needs a valid logger.
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.Level(127),
		})
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

// expandPath resolves a leading ~ to the home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
