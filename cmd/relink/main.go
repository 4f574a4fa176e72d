// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// relink repairs and replaces hyperlinks in zip-packaged XML documents
// in bulk, resolving content identifiers against a lookup boundary and
// keeping a revertible backup of every batch.
package main

import (
	"fmt"
	"os"

	"github.com/AleutianAI/relink/cmd/relink/config"
	"github.com/AleutianAI/relink/pkg/logging"
)

var (
	cfg        *config.Config
	logCleanup func() error
)

func main() {
	err := rootCmd.Execute()
	if logCleanup != nil {
		if cerr := logCleanup(); cerr != nil {
			fmt.Fprintf(os.Stderr, "closing log file: %v\n", cerr)
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig runs in PersistentPreRunE so every subcommand sees the
// parsed config and the configured logger.
func loadConfig(path string) error {
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg = loaded

	logger, cleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	logCleanup = cleanup

	logger.Debug("configuration loaded", "path", path)
	return nil
}
