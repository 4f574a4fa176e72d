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
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/relink/backup"
)

func runRevert(cmd *cobra.Command, args []string) error {
	mgr, err := backup.NewManager(expandHome(cfg.Batch.BackupDir), slog.Default())
	if err != nil {
		return err
	}

	result, err := mgr.Revert(revertID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "restored %d file(s) from session %s\n", result.Restored, result.SessionID)
	for _, f := range result.Failures {
		fmt.Fprintf(out, "  failed: %s: %v\n", f.Path, f.Err)
	}
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d file(s) could not be restored", len(result.Failures))
	}
	return nil
}

// expandHome resolves a leading ~ in configured paths.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
