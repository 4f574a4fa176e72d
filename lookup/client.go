// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/relink/retry"
)

// ClientConfig configures the resolution client.
type ClientConfig struct {
	// BaseURL is the lookup boundary endpoint, e.g.
	// "https://lookup.internal/api/resolve".
	BaseURL string

	// RequestTimeout bounds one HTTP attempt. Default: 15s.
	RequestTimeout time.Duration

	// RequestsPerSecond throttles boundary calls across all concurrent
	// sessions. Default: 10. Zero or negative disables throttling.
	RequestsPerSecond float64

	// RetryPolicy governs transient transport failures.
	// Default: retry.NetworkPolicy().
	RetryPolicy retry.Policy
}

// ApplyDefaults fills zero values.
func (c *ClientConfig) ApplyDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 10
	}
	if c.RetryPolicy.MaxAttempts == 0 {
		c.RetryPolicy = retry.NetworkPolicy()
	}
}

// lookupRequest is the boundary request shape: {"identifiers": [...]}.
type lookupRequest struct {
	Identifiers []string `json:"identifiers"`
}

// lookupAnswer is one entry of the boundary response map.
type lookupAnswer struct {
	Title     string `json:"title"`
	Status    string `json:"status"`
	ContentID string `json:"content_id"`
}

// Client resolves identifiers against the lookup boundary, rate-limited
// and retried under the network policy, memoized through a Cache.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	config  ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	cache   *Cache
	logger  *slog.Logger
}

// NewClient creates a resolution client.
//
// Inputs:
//   - config: Client configuration; BaseURL is required.
//   - cache: Shared resolution cache. If nil, a private cache with
//     default TTL is created.
//   - logger: If nil, slog.Default() is used.
func NewClient(config ClientConfig, cache *Cache, logger *slog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", retry.ErrMalformedRequest)
	}
	config.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewCache(logger)
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.RequestTimeout},
		limiter: limiter,
		cache:   cache,
		logger:  logger.With("component", "lookup.Client"),
	}, nil
}

// Resolve returns the canonical metadata for one identifier.
//
// The answer's status (Valid, Expired, NotFound) is classified from the
// response payload. A transport failure that survives the retry policy
// propagates as an error; the caller records it against the owning
// hyperlink rather than failing the batch.
func (c *Client) Resolve(ctx context.Context, identifier string) (Resolution, error) {
	if identifier == "" {
		return Resolution{}, ErrEmptyIdentifier
	}
	return c.cache.GetOrResolve(ctx, identifier, c.resolveRemote)
}

// ResolveBatch resolves a set of identifiers through the shared cache.
// Per-identifier failures come back in the error map rather than failing
// the whole set.
func (c *Client) ResolveBatch(ctx context.Context, identifiers []string) (map[string]Resolution, map[string]error) {
	resolved := make(map[string]Resolution, len(identifiers))
	failed := make(map[string]error)
	for _, id := range identifiers {
		if _, done := resolved[id]; done {
			continue
		}
		if _, done := failed[id]; done {
			continue
		}
		res, err := c.Resolve(ctx, id)
		if err != nil {
			failed[id] = err
			continue
		}
		resolved[id] = res
	}
	return resolved, failed
}

// resolveRemote performs the rate-limited, retried boundary call for one
// identifier.
func (c *Client) resolveRemote(ctx context.Context, identifier string) (Resolution, error) {
	var result Resolution

	err := retry.Execute(ctx, c.config.RetryPolicy, func(ctx context.Context, attempt int) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if attempt > 1 {
			c.logger.Debug("retrying lookup",
				"identifier", identifier,
				"attempt", attempt)
		}

		answer, err := c.post(ctx, []string{identifier})
		if err != nil {
			return err
		}

		entry, ok := answer[identifier]
		if !ok {
			// The boundary omits unknown identifiers in some versions.
			result = Resolution{Identifier: identifier, Status: StatusNotFound}
			return nil
		}
		result = classify(identifier, entry)
		return nil
	})
	if err != nil {
		return Resolution{}, err
	}
	return result, nil
}

// post sends one boundary request and decodes the response map.
func (c *Client) post(ctx context.Context, identifiers []string) (map[string]lookupAnswer, error) {
	body, err := json.Marshal(lookupRequest{Identifiers: identifiers})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", retry.ErrMalformedRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", retry.ErrMalformedRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection is reusable.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("lookup boundary returned %s", resp.Status)
	}

	var answer map[string]lookupAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBoundaryResponse, err)
	}
	return answer, nil
}

// classify maps a payload entry to a Resolution. Status comes from the
// payload fields, not the transport.
func classify(identifier string, entry lookupAnswer) Resolution {
	res := Resolution{
		Identifier: identifier,
		Title:      entry.Title,
		ContentID:  entry.ContentID,
	}
	switch entry.Status {
	case "valid", "active", "ok":
		res.Status = StatusValid
	case "expired", "retired":
		res.Status = StatusExpired
	default:
		res.Status = StatusNotFound
	}
	return res
}
