// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the relink YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/relink/pkg/logging"
)

// Lookup configures the identifier resolution boundary.
type Lookup struct {
	// BaseURL is the resolve endpoint.
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// TimeoutSeconds bounds one HTTP attempt.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"omitempty,min=1,max=300"`

	// RequestsPerSecond throttles boundary calls batch-wide.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"omitempty,gt=0"`

	// CacheTTLMinutes is the resolution cache lifetime.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" validate:"omitempty,min=1"`

	// CacheDir enables the persistent on-disk cache layer.
	CacheDir string `yaml:"cache_dir"`
}

// Batch configures document processing.
type Batch struct {
	// Concurrency bounds in-flight documents.
	Concurrency int `yaml:"concurrency" validate:"omitempty,min=1,max=20"`

	// BackupDir holds the per-batch revertible snapshots.
	BackupDir string `yaml:"backup_dir"`

	// TargetURLTemplate builds canonical content URLs; %s receives the
	// content id.
	TargetURLTemplate string `yaml:"target_url_template"`
}

// Rules configures the replacement rule set.
type Rules struct {
	// Path is the YAML rule file. Blank disables rules.
	Path string `yaml:"path"`

	// Watch reloads the rule file on change.
	Watch bool `yaml:"watch"`
}

// Config is the root of config.yaml.
type Config struct {
	Lookup  Lookup         `yaml:"lookup"`
	Batch   Batch          `yaml:"batch"`
	Rules   Rules          `yaml:"rules"`
	Logging logging.Config `yaml:"logging"`

	// TraceExporter is "none" or "stdout".
	TraceExporter string `yaml:"trace_exporter" validate:"omitempty,oneof=none stdout"`
}

// ApplyDefaults fills zero values with the shipped defaults.
func (c *Config) ApplyDefaults() {
	if c.Lookup.TimeoutSeconds == 0 {
		c.Lookup.TimeoutSeconds = 15
	}
	if c.Lookup.RequestsPerSecond == 0 {
		c.Lookup.RequestsPerSecond = 10
	}
	if c.Lookup.CacheTTLMinutes == 0 {
		c.Lookup.CacheTTLMinutes = 30
	}
	if c.Batch.Concurrency == 0 {
		c.Batch.Concurrency = 5
	}
	if c.Batch.BackupDir == "" {
		c.Batch.BackupDir = "~/.relink/backups"
	}
	if c.TraceExporter == "" {
		c.TraceExporter = "none"
	}
}

// Validate checks field constraints beyond what YAML parsing enforces.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if t := c.Batch.TargetURLTemplate; t != "" && !strings.Contains(t, "%s") {
		return fmt.Errorf("batch.target_url_template must contain %%s, got %q", t)
	}
	return nil
}

// RequestTimeout returns the lookup timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Lookup.TimeoutSeconds) * time.Second
}

// CacheTTL returns the cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Lookup.CacheTTLMinutes) * time.Minute
}

// Load reads, defaults, and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
