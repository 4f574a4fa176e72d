// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules loads and applies document replacement rules.
//
// A rule is a tagged variant over two kinds: hyperlink rules, which match
// a link's display title and repoint it at a resolved content id, and
// text rules, which rewrite literal occurrences of a source string in
// text runs while mirroring the casing of each matched span. Rules with
// blank required fields are inert and excluded at load time, never
// evaluated per match.
package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind discriminates the rule variants.
type Kind string

const (
	// KindHyperlink matches a hyperlink title and repoints the link.
	KindHyperlink Kind = "hyperlink"

	// KindText rewrites literal text occurrences in runs.
	KindText Kind = "text"
)

var (
	// ErrNoRules is returned when a rules file contains no usable rules.
	ErrNoRules = errors.New("rules file contains no usable rules")
)

// Rule is one replacement rule. Which fields are required depends on
// Kind; Lint reports the exact requirement that failed.
type Rule struct {
	// Kind selects the variant: "hyperlink" or "text".
	Kind Kind `yaml:"kind"`

	// Name identifies the rule in logs and error reports. Optional; a
	// blank name falls back to a positional label at load time.
	Name string `yaml:"name,omitempty"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty"`

	// MatchTitle is the hyperlink display title to match, compared
	// case-insensitively after stripping any trailing inline content
	// id. Hyperlink rules only.
	MatchTitle string `yaml:"match_title,omitempty"`

	// TargetContentID is resolved through the lookup boundary before
	// the link is repointed. Hyperlink rules only.
	TargetContentID string `yaml:"target_content_id,omitempty"`

	// Source is the literal text to find in runs. Text rules only.
	Source string `yaml:"source,omitempty"`

	// Replacement substitutes each match, with its casing mirrored
	// from the matched span. Text rules only.
	Replacement string `yaml:"replacement,omitempty"`
}

// Label returns the rule's name, or a positional fallback.
func (r Rule) Label(index int) string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("rule[%d]", index)
}

func (r Rule) enabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Lint reports why the rule is inert, or "" if it is usable. Disabled
// rules are inert by request, not defect, and lint as "".
func (r Rule) Lint() string {
	switch r.Kind {
	case KindHyperlink:
		if strings.TrimSpace(r.MatchTitle) == "" {
			return "hyperlink rule requires match_title"
		}
		if strings.TrimSpace(r.TargetContentID) == "" {
			return "hyperlink rule requires target_content_id"
		}
	case KindText:
		if r.Source == "" {
			return "text rule requires source"
		}
		if r.Replacement == "" {
			return "text rule requires replacement"
		}
		if r.Source == r.Replacement {
			return "text rule source and replacement must differ"
		}
	default:
		return fmt.Sprintf("unknown rule kind %q", r.Kind)
	}
	return ""
}

// sourcePattern compiles the case-insensitive literal matcher for a
// text rule. Only valid after Lint returned "".
func (r Rule) sourcePattern() *regexp.Regexp {
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(r.Source))
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LintFile parses a rules file and returns one message per defective
// rule, keyed by rule label. A parse failure is returned as the error;
// an empty map means every rule is well-formed.
func LintFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	issues := make(map[string]string)
	for i, rule := range file.Rules {
		if msg := rule.Lint(); msg != "" {
			issues[rule.Label(i)] = msg
		}
	}
	return issues, nil
}

// Load parses a YAML rules file and returns the usable rules. Inert
// rules (defective or disabled) are excluded here so the engine never
// has to re-check them per hyperlink.
//
// # Outputs
//
//   - []Rule: Enabled, well-formed rules in file order.
//   - error: Parse failure, or ErrNoRules when nothing usable remains.
func Load(path string, logger *slog.Logger) ([]Rule, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "rules.Load")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	usable := make([]Rule, 0, len(file.Rules))
	for i, rule := range file.Rules {
		if msg := rule.Lint(); msg != "" {
			logger.Warn("excluding defective rule",
				"rule", rule.Label(i),
				"reason", msg)
			continue
		}
		if !rule.enabled() {
			logger.Debug("skipping disabled rule", "rule", rule.Label(i))
			continue
		}
		usable = append(usable, rule)
	}

	if len(usable) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRules, path)
	}
	return usable, nil
}
