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
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() map[string]answer {
	return map[string]answer{
		"CMS-FIN-100001": {Title: "Quarterly Report", Status: "valid", ContentID: "654321"},
		"TSRC-OLD-000042": {Title: "Retired Page", Status: "expired", ContentID: "111111"},
	}
}

func TestResolveKnownAndUnknown(t *testing.T) {
	router := newServer(testTable(), slog.Default())

	body := `{"identifiers": ["CMS-FIN-100001", "CMS-NEW-999999"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/resolve", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var results map[string]answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "valid", results["CMS-FIN-100001"].Status)
	assert.Equal(t, "654321", results["CMS-FIN-100001"].ContentID)
	assert.Equal(t, "not_found", results["CMS-NEW-999999"].Status)
}

func TestResolveRejectsEmptyRequest(t *testing.T) {
	router := newServer(testTable(), slog.Default())

	for _, body := range []string{`{}`, `{"identifiers": []}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/api/resolve", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestHealthz(t *testing.T) {
	router := newServer(testTable(), slog.Default())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
CMS-FIN-100001:
  title: Quarterly Report
  status: valid
  content_id: "654321"
`), 0o644))

	table, err := loadFixtures(path)
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.Equal(t, "Quarterly Report", table["CMS-FIN-100001"].Title)
}

func TestLoadFixturesMissingFile(t *testing.T) {
	_, err := loadFixtures(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
