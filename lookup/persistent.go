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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// PersistentStore is a badger-backed second cache level that survives
// process restarts. Entries carry badger's native TTL, so expiry is
// enforced by the store itself.
//
// Thread Safety: Safe for concurrent use; badger transactions serialize
// access.
type PersistentStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenPersistentStore opens (or creates) the store at dir.
func OpenPersistentStore(dir string, logger *slog.Logger) (*PersistentStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening lookup cache store at %s: %w", dir, err)
	}
	return &PersistentStore{
		db:     db,
		logger: logger.With("component", "lookup.PersistentStore"),
	}, nil
}

// OpenInMemoryStore opens a non-persistent store for tests.
func OpenInMemoryStore(logger *slog.Logger) (*PersistentStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory lookup cache store: %w", err)
	}
	return &PersistentStore{
		db:     db,
		logger: logger.With("component", "lookup.PersistentStore"),
	}, nil
}

// Get returns the stored resolution for key if present and unexpired.
func (s *PersistentStore) Get(key string) (Resolution, bool, error) {
	var value Resolution
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &value)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Resolution{}, false, nil
	}
	if err != nil {
		return Resolution{}, false, err
	}
	return value, true, nil
}

// Put stores the resolution under key with the given TTL.
func (s *PersistentStore) Put(key string, value Resolution, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding resolution: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// Close releases the store.
func (s *PersistentStore) Close() error {
	return s.db.Close()
}
