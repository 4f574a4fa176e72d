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
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/relink/rules"
)

func runRulesLint(cmd *cobra.Command, args []string) error {
	path := args[0]
	issues, err := rules.LintFile(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(issues) == 0 {
		fmt.Fprintf(out, "%s: all rules well-formed\n", path)
		return nil
	}

	labels := make([]string, 0, len(issues))
	for label := range issues {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	fmt.Fprintf(out, "%s: %d defective rule(s)\n", path, len(issues))
	for _, label := range labels {
		fmt.Fprintf(out, "  %s: %s\n", label, issues[label])
	}
	return fmt.Errorf("rule file has defects")
}
