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
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// relsNamespace is the single namespace of the relationships part. The
// part uses no prefixes, which is why it round-trips through encoding/xml.
const relsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"

// Relationship is one entry in the relationships part.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// relationshipsXML is the wire form of the relationships part.
type relationshipsXML struct {
	XMLName xml.Name       `xml:"Relationships"`
	Xmlns   string         `xml:"xmlns,attr"`
	Rels    []Relationship `xml:"Relationship"`
}

// Relationships is the mutable relationship set of one document part.
// Not safe for concurrent use; it is owned by its Package.
type Relationships struct {
	byID  map[string]Relationship
	order []string

	// reserved holds ids that must not be reallocated while the package
	// is open: ids recorded as orphans after a partial transaction.
	reserved map[string]struct{}
}

func parseRelationships(data []byte) (*Relationships, error) {
	var wire relationshipsXML
	if err := xml.Unmarshal(data, &wire); err != nil {
		return nil, err
	}

	r := &Relationships{
		byID:     make(map[string]Relationship, len(wire.Rels)),
		reserved: make(map[string]struct{}),
	}
	for _, rel := range wire.Rels {
		if _, ok := r.byID[rel.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRelationship, rel.ID)
		}
		r.byID[rel.ID] = rel
		r.order = append(r.order, rel.ID)
	}
	return r, nil
}

// Lookup returns the relationship for id.
func (r *Relationships) Lookup(id string) (Relationship, bool) {
	rel, ok := r.byID[id]
	return rel, ok
}

// All returns relationships in part order.
func (r *Relationships) All() []Relationship {
	out := make([]Relationship, 0, len(r.order))
	for _, id := range r.order {
		if rel, ok := r.byID[id]; ok {
			out = append(out, rel)
		}
	}
	return out
}

// Len returns the number of live relationships.
func (r *Relationships) Len() int { return len(r.byID) }

// Add creates a new relationship with a freshly allocated id.
//
// Inputs:
//   - relType: Relationship type URI.
//   - target: Target URL or part path.
//   - external: True for TargetMode="External" (hyperlinks).
//
// Outputs:
//   - string: The allocated id ("rIdN").
func (r *Relationships) Add(relType, target string, external bool) string {
	id := r.nextID()
	rel := Relationship{ID: id, Type: relType, Target: target}
	if external {
		rel.TargetMode = "External"
	}
	r.byID[id] = rel
	r.order = append(r.order, id)
	return id
}

// AddWithID inserts a relationship under a caller-chosen id. Duplicate
// ids are rejected; the relationship graph must answer each id exactly
// once.
func (r *Relationships) AddWithID(rel Relationship) error {
	if _, ok := r.byID[rel.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRelationship, rel.ID)
	}
	if _, ok := r.reserved[rel.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRelationship, rel.ID)
	}
	r.byID[rel.ID] = rel
	r.order = append(r.order, rel.ID)
	return nil
}

// Delete removes the relationship for id.
func (r *Relationships) Delete(id string) error {
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRelationshipNotFound, id)
	}
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// reserve marks an id as unavailable for reallocation.
func (r *Relationships) reserve(id string) {
	r.reserved[id] = struct{}{}
}

// nextID allocates the lowest free rIdN above the current maximum,
// skipping reserved ids.
func (r *Relationships) nextID() string {
	max := 0
	consider := func(id string) {
		if n, ok := ridNumber(id); ok && n > max {
			max = n
		}
	}
	for id := range r.byID {
		consider(id)
	}
	for id := range r.reserved {
		consider(id)
	}
	return "rId" + strconv.Itoa(max+1)
}

func ridNumber(id string) (int, bool) {
	if !strings.HasPrefix(id, "rId") {
		return 0, false
	}
	n, err := strconv.Atoi(id[len("rId"):])
	if err != nil {
		return 0, false
	}
	return n, true
}

// marshal serializes the relationship set back to part bytes.
func (r *Relationships) marshal() ([]byte, error) {
	wire := relationshipsXML{
		Xmlns: relsNamespace,
		Rels:  r.All(),
	}
	body, err := xml.Marshal(wire)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// DuplicateIDs returns ids that appear more than once in part order.
// Always empty for sets built through Add/AddWithID; used by validation
// against hand-edited packages.
func (r *Relationships) DuplicateIDs() []string {
	seen := make(map[string]int)
	for _, id := range r.order {
		seen[id]++
	}
	var dups []string
	for id, n := range seen {
		if n > 1 {
			dups = append(dups, id)
		}
	}
	sort.Strings(dups)
	return dups
}
