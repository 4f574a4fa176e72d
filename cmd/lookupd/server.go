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
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"
)

// answer is one fixture row, shaped like the boundary's response value.
type answer struct {
	Title     string `yaml:"title" json:"title"`
	Status    string `yaml:"status" json:"status"`
	ContentID string `yaml:"content_id" json:"content_id"`
}

// resolveRequest is the boundary's request contract.
type resolveRequest struct {
	Identifiers []string `json:"identifiers" binding:"required,min=1"`
}

// loadFixtures reads the identifier table.
func loadFixtures(path string) (map[string]answer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures %s: %w", path, err)
	}
	table := make(map[string]answer)
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing fixtures %s: %w", path, err)
	}
	return table, nil
}

// newServer builds the gin router. Split from main for tests.
func newServer(table map[string]answer, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/api/resolve", func(c *gin.Context) {
		var req resolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		results := make(map[string]answer, len(req.Identifiers))
		for _, id := range req.Identifiers {
			if a, ok := table[id]; ok {
				results[id] = a
				continue
			}
			results[id] = answer{Status: "not_found"}
		}

		logger.Info("resolved batch",
			"identifiers", len(req.Identifiers))
		c.JSON(http.StatusOK, results)
	})

	return router
}
