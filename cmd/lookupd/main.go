// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command lookupd is a development stub for the identifier resolution
// boundary. It answers the {"identifiers": [...]} contract from a YAML
// fixture table, so relink batches can be exercised end to end without
// the real content management backend.
//
// # Environment Variables
//
//   - LOOKUPD_PORT: HTTP server port (default: 12340)
//   - LOOKUPD_FIXTURES: YAML fixture table path (default: fixtures.yaml)
//
// # Fixture Format
//
//	CMS-FIN-100001:
//	  title: Quarterly Report
//	  status: valid
//	  content_id: "654321"
//	TSRC-OLD-000042:
//	  title: Retired Page
//	  status: expired
//	  content_id: "111111"
//
// Identifiers absent from the table resolve as not_found.
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := getEnvInt("LOOKUPD_PORT", 12340)
	fixturePath := getEnvString("LOOKUPD_FIXTURES", "fixtures.yaml")

	table, err := loadFixtures(fixturePath)
	if err != nil {
		log.Fatalf("Failed to load fixtures: %v", err)
	}

	logger.Info("starting lookupd",
		"port", port,
		"fixtures", fixturePath,
		"identifiers", len(table))

	srv := newServer(table, logger)
	if err := srv.Run(":" + strconv.Itoa(port)); err != nil {
		log.Fatalf("lookupd error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
