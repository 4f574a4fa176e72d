// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package batch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/relink/backup"
	"github.com/AleutianAI/relink/docpkg/testdoc"
	"github.com/AleutianAI/relink/lookup"
	"github.com/AleutianAI/relink/rules"
	"github.com/AleutianAI/relink/session"
	"github.com/AleutianAI/relink/validate"
)

type fakeResolver struct {
	answers map[string]lookup.Resolution
}

func (f *fakeResolver) Resolve(_ context.Context, id string) (lookup.Resolution, error) {
	res, ok := f.answers[id]
	if !ok {
		return lookup.Resolution{Identifier: id, Status: lookup.StatusNotFound}, nil
	}
	return res, nil
}

func newProcessor(t *testing.T, dir string, resolver *fakeResolver) *Processor {
	t.Helper()
	mgr, err := backup.NewManager(filepath.Join(dir, "backups"), nil)
	require.NoError(t, err)
	engine := rules.NewEngine(resolver, nil)
	return NewProcessor(mgr, resolver, engine, validate.New(nil), nil)
}

func TestRunThreeDocumentScenario(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{answers: map[string]lookup.Resolution{
		"CMS-FIN-100001": {
			Identifier: "CMS-FIN-100001",
			Status:     lookup.StatusValid,
			Title:      "Quarterly Report",
			ContentID:  "654321",
		},
	}}
	p := newProcessor(t, dir, resolver)

	matching := testdoc.Simple(t, dir, "match.docx",
		"https://plain.example.com/report", "Quarterly Report")
	plainA := testdoc.Simple(t, dir, "plain-a.docx",
		"https://plain.example.com/a", "Unrelated Link")
	plainB := testdoc.Simple(t, dir, "plain-b.docx",
		"https://plain.example.com/b", "Another Link")

	report, err := p.Run(context.Background(), Request{
		Paths:       []string{matching, plainA, plainB},
		Concurrency: 2,
		Rules: []rules.Rule{{
			Kind:            rules.KindHyperlink,
			Name:            "quarterly",
			MatchTitle:      "Quarterly Report",
			TargetContentID: "CMS-FIN-100001",
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Completed)
	assert.Zero(t, report.Recovered)
	assert.Zero(t, report.Failed)
	require.Len(t, report.Results, 3)

	byPath := make(map[string]session.Result, 3)
	for _, r := range report.Results {
		byPath[r.Path] = r
	}

	var updated int
	for _, e := range byPath[matching].Changelog {
		if e.Category == session.CategoryUpdated {
			updated++
		}
	}
	assert.Equal(t, 1, updated, "matching document gets exactly one Updated entry")

	for _, path := range []string{plainA, plainB} {
		r := byPath[path]
		assert.Equal(t, session.StatusCompleted, r.Status)
		var changes int
		for _, e := range r.Changelog {
			if e.Category == session.CategoryUpdated || e.Category == session.CategoryTitleChanged {
				changes++
			}
		}
		assert.Zero(t, changes, "%s must report zero changes", path)
	}
}

func TestRunEmptyRequest(t *testing.T) {
	p := newProcessor(t, t.TempDir(), &fakeResolver{})
	_, err := p.Run(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestRunCanceledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	p := newProcessor(t, dir, &fakeResolver{})
	doc := testdoc.Simple(t, dir, "doc.docx", "https://x.example.com/a", "Link")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.Run(ctx, Request{Paths: []string{doc}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 1)
	assert.ErrorIs(t, report.Results[0].Err, session.ErrCanceled)
}

func TestSnapshotAggregates(t *testing.T) {
	dir := t.TempDir()
	p := newProcessor(t, dir, &fakeResolver{})

	docs := []string{
		testdoc.Simple(t, dir, "a.docx", "https://x.example.com/a", "A"),
		testdoc.Simple(t, dir, "b.docx", "https://x.example.com/b", "B"),
	}
	report, err := p.Run(context.Background(), Request{Paths: docs})
	require.NoError(t, err)
	require.Equal(t, 2, report.Completed)

	snap := p.Snapshot()
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 2, snap.Done)
	assert.Equal(t, 2, snap.Completed)
	assert.Zero(t, snap.EstimatedRemaining)
}

func TestEventsCarrySessionProgress(t *testing.T) {
	dir := t.TempDir()
	p := newProcessor(t, dir, &fakeResolver{})
	doc := testdoc.Simple(t, dir, "a.docx", "https://x.example.com/a", "A")

	_, err := p.Run(context.Background(), Request{Paths: []string{doc}})
	require.NoError(t, err)

	// At least the first stage boundary must have been pushed.
	select {
	case snap := <-p.Events():
		assert.Equal(t, doc, snap.Path)
	default:
		t.Fatal("no progress events emitted")
	}
}
