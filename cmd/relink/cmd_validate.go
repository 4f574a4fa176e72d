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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/relink/validate"
)

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	pipeline := validate.New(slog.Default(), validate.WithStrictOrphans())

	report, err := pipeline.File(path, validate.PreProcessing)
	if err != nil {
		return fmt.Errorf("validating %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	if report.OK() {
		fmt.Fprintf(out, "%s: valid\n", path)
		return nil
	}

	fmt.Fprintf(out, "%s: %d violation(s)\n", path, len(report.Violations))
	for _, v := range report.Violations {
		fmt.Fprintf(out, "  %s\n", v)
	}
	return fmt.Errorf("document failed validation")
}
