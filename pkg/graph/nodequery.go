// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package graph

import (
	"strings"

	"github.com/kraklabs/rdfsink/pkg/vocab"
)

// NodeQueryComposer batches parameter rows for one label set and renders
// them into a single UNWIND + MERGE statement. A composer lives for the
// life of the store: property-name unions only grow, so one rendered query
// covers every row in the batch even when rows carry different subsets.
type NodeQueryComposer struct {
	labels   []string
	multival vocab.MultivalStrategy

	singleProps []string
	multiProps  []string
	rows        []any
}

// NewNodeQueryComposer creates a composer for one label set. labels must
// already be sorted; nil means the untyped group, which merges on the base
// label alone.
func NewNodeQueryComposer(labels []string, multival vocab.MultivalStrategy) *NodeQueryComposer {
	return &NodeQueryComposer{labels: labels, multival: multival}
}

// MergePropNames folds a subject's property names into the composer's
// running unions, keeping first-seen order.
func (c *NodeQueryComposer) MergePropNames(single, multi []string) {
	for _, name := range single {
		c.singleProps = appendUnique(c.singleProps, name)
	}
	for _, name := range multi {
		c.multiProps = appendUnique(c.multiProps, name)
	}
}

// AddRow buffers one subject's parameter row.
func (c *NodeQueryComposer) AddRow(row map[string]any) {
	c.rows = append(c.rows, row)
}

// RowCount reports how many rows are buffered.
func (c *NodeQueryComposer) RowCount() int {
	return len(c.rows)
}

// Labels returns the composer's label set.
func (c *NodeQueryComposer) Labels() []string {
	return c.labels
}

// Params returns the buffered rows as the $params value. Never nil: an
// empty list keeps the rendered UNWIND a clean zero-row no-op.
func (c *NodeQueryComposer) Params() []any {
	if c.rows == nil {
		return []any{}
	}
	return c.rows
}

// Redundant reports whether flushing this composer would do nothing at
// all: neither labels nor properties to set and no rows buffered.
// Subjects that only ever appeared in relationships fall here; the
// relationship queries materialize their nodes.
func (c *NodeQueryComposer) Redundant() bool {
	return len(c.labels) == 0 && len(c.singleProps) == 0 && len(c.multiProps) == 0 && len(c.rows) == 0
}

// Render builds the merge statement for the current property unions.
// Rows missing a property pass null for it; coalesce keeps nulls from
// erasing stored values. With an empty $params list the UNWIND produces
// no rows and the statement is a no-op.
func (c *NodeQueryComposer) Render() string {
	var b strings.Builder
	b.WriteString("UNWIND $params AS param\n")
	b.WriteString("MERGE (n:")
	b.WriteString(baseLabel)
	b.WriteString(" {uri: param.uri})")
	if len(c.labels) > 0 {
		b.WriteString("\nSET ")
		for i, label := range c.labels {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("n:")
			b.WriteString(quoteName(label))
		}
	}
	if len(c.singleProps) > 0 || len(c.multiProps) > 0 {
		b.WriteString("\nSET ")
		first := true
		for _, name := range c.singleProps {
			if !first {
				b.WriteString(", ")
			}
			first = false
			c.writeSingleAssignment(&b, name)
		}
		for _, name := range c.multiProps {
			if !first {
				b.WriteString(", ")
			}
			first = false
			c.writeMultiAssignment(&b, name)
		}
	}
	return b.String()
}

// writeSingleAssignment emits n.`p` = coalesce(param.`p`, n.`p`).
func (c *NodeQueryComposer) writeSingleAssignment(b *strings.Builder, name string) {
	q := quoteName(name)
	b.WriteString("n.")
	b.WriteString(q)
	b.WriteString(" = coalesce(param.")
	b.WriteString(q)
	b.WriteString(", n.")
	b.WriteString(q)
	b.WriteString(")")
}

// writeMultiAssignment emits the array-union form: stored list plus the
// incoming values not already present. Under the overwrite strategy no
// names ever reach the multivalued union, so the plain assignment form is
// never needed here.
func (c *NodeQueryComposer) writeMultiAssignment(b *strings.Builder, name string) {
	q := quoteName(name)
	b.WriteString("n.")
	b.WriteString(q)
	b.WriteString(" = coalesce(n.")
	b.WriteString(q)
	b.WriteString(", []) + [val IN coalesce(param.")
	b.WriteString(q)
	b.WriteString(", []) WHERE NOT val IN coalesce(n.")
	b.WriteString(q)
	b.WriteString(", [])]")
}

// Reset drops the buffered rows but keeps the label set and property
// unions: the composer persists across flushes.
func (c *NodeQueryComposer) Reset() {
	c.rows = nil
}
