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
)

var (
	configPath string
	reportOnly bool
	revertID   string

	rootCmd = &cobra.Command{
		Use:   "relink",
		Short: "Bulk hyperlink repair for zip-packaged XML documents",
		Long: `relink scans document packages for content identifiers, resolves
them against the lookup boundary, repoints stale hyperlinks at their
canonical targets, and applies replacement rules. Every batch keeps a
revertible backup generation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(configPath)
		},
	}

	processCmd = &cobra.Command{
		Use:   "process <file>...",
		Short: "Process documents as one batch",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runProcess,
	}

	revertCmd = &cobra.Command{
		Use:   "revert",
		Short: "Restore every file of the retained backup generation",
		Args:  cobra.NoArgs,
		RunE:  runRevert,
	}

	validateCmd = &cobra.Command{
		Use:   "validate <file>",
		Short: "Run the on-disk validation report for one document",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	rulesCmd = &cobra.Command{
		Use:   "rules",
		Short: "Inspect replacement rule files",
	}

	rulesLintCmd = &cobra.Command{
		Use:   "lint <rules.yaml>",
		Short: "Check a rule file for defective rules",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesLint,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml",
		"path to the configuration file")

	processCmd.Flags().BoolVar(&reportOnly, "report-only", false,
		"record findings without mutating any document")

	revertCmd.Flags().StringVar(&revertID, "session", "",
		"backup session id to revert (required)")
	_ = revertCmd.MarkFlagRequired("session")

	rulesCmd.AddCommand(rulesLintCmd)
	rootCmd.AddCommand(processCmd, revertCmd, validateCmd, rulesCmd)
}
