// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package docpkg

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var txnTracer = otel.Tracer("relink.docpkg.transaction")

// SwapResult describes a completed relationship swap.
type SwapResult struct {
	// OldID is the relationship id the element was bound to before.
	OldID string

	// NewID is the relationship id the element is bound to now.
	NewID string

	// Orphaned is true when the old relationship could not be deleted
	// after the rebind succeeded. The element is correctly bound; the
	// stale entry is recorded on the package for later compaction.
	Orphaned bool
}

// Swap atomically repoints one hyperlink to a new target.
//
// The step order is the invariant this function exists to enforce:
//
//  1. Verify the element's current relationship id still resolves.
//     An element that lost its relationship is not repaired here;
//     fabricating one would mask earlier corruption.
//  2. Create the new relationship bound to newTarget.
//  3. Rebind the hyperlink element to the new id.
//  4. Only now delete the old relationship.
//
// If step 2 or 3 fails, the just-created relationship (if any) is deleted
// and the old binding is left intact: pre-state == post-state. If step 4
// fails, the element is already correctly bound, so the stale old
// relationship is recorded as an orphan rather than treated as a mutation
// failure. At no point, even transiently on the in-memory model, does the
// package have zero or two relationships answering for the element.
func Swap(ctx context.Context, pkg *Package, h *Hyperlink, newTarget string) (result SwapResult, err error) {
	logger := slog.Default().With("component", "docpkg.Swap")

	ctx, span := txnTracer.Start(ctx, "relationship.swap")
	span.SetAttributes(
		attribute.String("rel.old_id", h.RelationshipID),
		attribute.String("rel.new_target", newTarget),
	)
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("rel.new_id", result.NewID))
		}
		span.End()
	}()
	_ = ctx

	if err := pkg.mutable(); err != nil {
		return SwapResult{}, err
	}

	oldID := h.RelationshipID

	// Step 1: the old id must still answer.
	if _, ok := pkg.rels.Lookup(oldID); !ok {
		recordSwap("verify_failed")
		return SwapResult{}, fmt.Errorf("verifying %s: %w", oldID, ErrRelationshipNotFound)
	}

	// Step 2: create the replacement first.
	newID := pkg.rels.Add(HyperlinkRelType, newTarget, true)

	// Step 3: rebind the element.
	if err := pkg.RebindHyperlink(oldID, newID); err != nil {
		// Undo step 2; the old binding is untouched.
		if delErr := pkg.rels.Delete(newID); delErr != nil {
			logger.Error("failed to undo created relationship",
				"new_id", newID,
				"error", delErr)
		}
		recordSwap("rebind_failed")
		return SwapResult{}, fmt.Errorf("rebinding %s: %w", oldID, err)
	}

	// Step 4: the old relationship is now unreferenced; drop it.
	if err := pkg.rels.Delete(oldID); err != nil {
		// The element is correctly bound to newID. Record the stale
		// entry for compaction instead of failing the mutation.
		pkg.RecordOrphan(oldID)
		h.RelationshipID = newID
		recordSwap("orphaned")
		logger.Warn("old relationship left orphaned",
			"old_id", oldID,
			"new_id", newID,
			"error", err)
		return SwapResult{OldID: oldID, NewID: newID, Orphaned: true}, nil
	}

	h.RelationshipID = newID
	recordSwap("ok")
	logger.Debug("relationship swapped",
		"old_id", oldID,
		"new_id", newID,
		"target", newTarget)
	return SwapResult{OldID: oldID, NewID: newID}, nil
}
