// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package graph

import (
	"errors"
	"strings"
)

// ErrRelationshipProperties is returned when a caller tries to attach
// payload properties to an edge. Only the bookkeeping timestamps exist on
// relationships; RDF has no place to express edge properties short of
// reification, which the store does not model.
var ErrRelationshipProperties = errors.New("graph: relationship properties are not supported")

type relPair struct {
	from string
	to   string
}

// RelationshipQueryComposer batches (from, to) pairs for one relationship
// type. Like its node counterpart it lives for the life of the store, and
// it deduplicates pairs across subjects so re-asserted edges cost one
// merge, not many.
type RelationshipQueryComposer struct {
	relType      string
	createdField string
	updatedField string

	pairs []relPair
	seen  map[string]struct{}
}

func NewRelationshipQueryComposer(relType, createdField, updatedField string) *RelationshipQueryComposer {
	return &RelationshipQueryComposer{
		relType:      relType,
		createdField: createdField,
		updatedField: updatedField,
		seen:         make(map[string]struct{}),
	}
}

// AddPair buffers one edge. It reports whether the pair was new; duplicates
// are dropped without growing the batch.
func (c *RelationshipQueryComposer) AddPair(from, to string) bool {
	key := from + labelKeySep + to
	if _, dup := c.seen[key]; dup {
		return false
	}
	c.seen[key] = struct{}{}
	c.pairs = append(c.pairs, relPair{from: from, to: to})
	return true
}

// SetProperty always fails; see ErrRelationshipProperties.
func (c *RelationshipQueryComposer) SetProperty(name string, value any) error {
	return ErrRelationshipProperties
}

// Type returns the relationship type this composer renders.
func (c *RelationshipQueryComposer) Type() string {
	return c.relType
}

// PairCount reports how many deduplicated pairs are buffered.
func (c *RelationshipQueryComposer) PairCount() int {
	return len(c.pairs)
}

// Params returns the buffered pairs as the $params value.
func (c *RelationshipQueryComposer) Params() []any {
	rows := make([]any, len(c.pairs))
	for i, p := range c.pairs {
		rows[i] = map[string]any{"from": p.from, "to": p.to}
	}
	return rows
}

// Redundant reports whether flushing this composer would do nothing.
func (c *RelationshipQueryComposer) Redundant() bool {
	return len(c.pairs) == 0
}

// Render builds the merge statement. Endpoints are merged on the base
// label first, so an edge whose target never appears as a subject still
// lands: the target exists as a bare stub node until its own triples show
// up. The created timestamp is written once, the updated one on every
// merge of the same edge.
func (c *RelationshipQueryComposer) Render() string {
	var b strings.Builder
	b.WriteString("UNWIND $params AS param\n")
	b.WriteString("MERGE (from:")
	b.WriteString(baseLabel)
	b.WriteString(" {uri: param.from})\n")
	b.WriteString("MERGE (to:")
	b.WriteString(baseLabel)
	b.WriteString(" {uri: param.to})\n")
	b.WriteString("MERGE (from)-[r:")
	b.WriteString(quoteName(c.relType))
	b.WriteString("]->(to)\n")
	b.WriteString("ON CREATE SET r.")
	b.WriteString(quoteName(c.createdField))
	b.WriteString(" = datetime()\n")
	b.WriteString("SET r.")
	b.WriteString(quoteName(c.updatedField))
	b.WriteString(" = datetime()")
	return b.String()
}

// Reset drops buffered pairs and the dedup set. Pairs seen before a flush
// merge again if re-asserted afterwards, which is harmless: the merge is
// idempotent apart from the updated timestamp.
func (c *RelationshipQueryComposer) Reset() {
	c.pairs = nil
	c.seen = make(map[string]struct{})
}
