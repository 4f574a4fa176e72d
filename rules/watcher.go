// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadHandler is called with the freshly loaded rule set after the
// rules file changes on disk.
type ReloadHandler func(ruleset []Rule)

// Watcher re-loads a rules file whenever it changes, for long-running
// invocations that should pick up rule edits without a restart.
//
// # Description
//
// Watches the directory containing the rules file (editors commonly
// replace the file by rename, which drops a watch placed on the file
// itself) and debounces bursts of write events into a single reload.
// A reload that fails to parse keeps the previous rule set; the
// handler is only called with usable rules.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single
// goroutine.
type Watcher struct {
	path     string
	handler  ReloadHandler
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait for further writes before
	// reloading. Default: 200ms.
	DebounceWindow time.Duration
}

// NewWatcher creates a watcher for the rules file at path.
//
// # Inputs
//
//   - path: The rules file to watch.
//   - handler: Called with each successfully reloaded rule set.
//   - opts: Optional configuration (nil uses defaults).
func NewWatcher(path string, handler ReloadHandler, opts *WatcherOptions, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	debounce := 200 * time.Millisecond
	if opts != nil && opts.DebounceWindow > 0 {
		debounce = opts.DebounceWindow
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:     filepath.Clean(path),
		handler:  handler,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger.With("component", "rules.Watcher"),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It returns after registering the watch; the
// reload loop runs until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.loop(ctx)
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rules watch error", "error", err)
		case <-fire:
			timer = nil
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	ruleset, err := Load(w.path, w.logger)
	if err != nil {
		w.logger.Warn("rules reload failed, keeping previous rule set",
			"path", w.path,
			"error", err)
		return
	}
	w.logger.Info("rules reloaded", "path", w.path, "rules", len(ruleset))
	w.handler(ruleset)
}
