// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestSetupRejectsBadLevel(t *testing.T) {
	_, _, err := Setup(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestSetupFileSink(t *testing.T) {
	dir := t.TempDir()
	logger, cleanup, err := Setup(Config{Level: "debug", Dir: dir, Quiet: true})
	require.NoError(t, err)

	logger.Info("session finished", "status", "Completed", "updated", 3)
	require.NoError(t, cleanup())

	name := "relink_" + time.Now().Format("2006-01-02") + ".log"
	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "session finished", entry["msg"])
	assert.Equal(t, "Completed", entry["status"])
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&a, nil),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "test")}))

	logger.Info("only json")
	logger.Warn("both sinks")

	assert.Equal(t, 2, strings.Count(a.String(), "\n"))
	assert.Contains(t, b.String(), "both sinks")
	assert.NotContains(t, b.String(), "only json")
	assert.Contains(t, a.String(), `"component":"test"`)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".relink", "logs"), expandPath("~/.relink/logs"))
	assert.Equal(t, "/var/log/relink", expandPath("/var/log/relink"))
}
