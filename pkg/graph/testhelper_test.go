// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package graph

import (
	"context"
	"strings"

	"github.com/knakk/rdf"

	"github.com/kraklabs/rdfsink/pkg/storage"
)

// executedStatement is one write the fake backend accepted.
type executedStatement struct {
	cypher string
	params map[string]any
}

// fakeBackend records writes so tests can replay them. failContains makes
// Execute fail for statements containing the substring, mimicking a server
// rejecting one batch while the connection stays usable.
type fakeBackend struct {
	openErr      error
	queryErr     error
	execErr      error
	failContains string
	constraints  *storage.QueryResult

	opened   bool
	closed   bool
	executed []executedStatement
	queried  []string
}

var _ storage.Backend = &fakeBackend{}

func (f *fakeBackend) Open(ctx context.Context) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = true
	return nil
}

func (f *fakeBackend) Query(ctx context.Context, cypher string, params map[string]any) (*storage.QueryResult, error) {
	f.queried = append(f.queried, cypher)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if cypher == showConstraintsQuery && f.constraints != nil {
		return f.constraints, nil
	}
	return &storage.QueryResult{}, nil
}

func (f *fakeBackend) Execute(ctx context.Context, cypher string, params map[string]any) error {
	if f.execErr != nil {
		return f.execErr
	}
	if f.failContains != "" && strings.Contains(cypher, f.failContains) {
		return &storage.TypeMismatchError{Code: "Neo.ClientError.Statement.TypeError", Msg: "boom"}
	}
	f.executed = append(f.executed, executedStatement{cypher: cypher, params: params})
	return nil
}

func (f *fakeBackend) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

// nodeStatements filters executed writes down to node merges.
func (f *fakeBackend) nodeStatements() []executedStatement {
	var out []executedStatement
	for _, st := range f.executed {
		if strings.Contains(st.cypher, "MERGE (n:") {
			out = append(out, st)
		}
	}
	return out
}

// relStatements filters executed writes down to relationship merges.
func (f *fakeBackend) relStatements() []executedStatement {
	var out []executedStatement
	for _, st := range f.executed {
		if strings.Contains(st.cypher, "MERGE (from:") {
			out = append(out, st)
		}
	}
	return out
}

// mustIRI builds an IRI term from a known-good URI.
func mustIRI(s string) rdf.IRI {
	iri, err := rdf.NewIRI(s)
	if err != nil {
		panic(err)
	}
	return iri
}

// xsdIRI names an XML Schema datatype.
func xsdIRI(local string) rdf.IRI {
	return mustIRI(xsdNS + local)
}

// spo builds a triple whose object is a named resource.
func spo(s, p, o string) rdf.Triple {
	return rdf.Triple{Subj: mustIRI(s), Pred: mustIRI(p), Obj: mustIRI(o)}
}

// spLit builds a triple whose object is a literal.
func spLit(s, p string, o rdf.Literal) rdf.Triple {
	return rdf.Triple{Subj: mustIRI(s), Pred: mustIRI(p), Obj: o}
}

// plainLit builds an untyped string literal.
func plainLit(v string) rdf.Literal {
	lit, err := rdf.NewLiteral(v)
	if err != nil {
		panic(err)
	}
	return lit
}

// langLit builds a language-tagged literal.
func langLit(v, lang string) rdf.Literal {
	lit, err := rdf.NewLangLiteral(v, lang)
	if err != nil {
		panic(err)
	}
	return lit
}

// paramRows unpacks the $params payload of an executed statement.
func paramRows(st executedStatement) []map[string]any {
	list, _ := st.params["params"].([]any)
	rows := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// fakeNode mirrors the write semantics of the rendered node merges.
type fakeNode struct {
	labels map[string]bool
	props  map[string]any
}

// fakeGraph replays executed statements with the same semantics the
// database would apply: merge by uri, additive labels, coalesce for
// single values, set-union append for lists.
type fakeGraph struct {
	nodes map[string]*fakeNode
	rels  map[string]int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{nodes: make(map[string]*fakeNode), rels: make(map[string]int)}
}

func (g *fakeGraph) replay(statements []executedStatement) {
	for _, st := range statements {
		switch {
		case strings.Contains(st.cypher, "MERGE (from:"):
			g.applyRel(st)
		case strings.Contains(st.cypher, "MERGE (n:"):
			g.applyNode(st)
		}
	}
}

func (g *fakeGraph) merge(uri string) *fakeNode {
	n, ok := g.nodes[uri]
	if !ok {
		n = &fakeNode{labels: make(map[string]bool), props: make(map[string]any)}
		g.nodes[uri] = n
	}
	return n
}

func (g *fakeGraph) applyNode(st executedStatement) {
	labels := parseNodeLabels(st.cypher)
	for _, row := range paramRows(st) {
		uri, _ := row[uriParam].(string)
		n := g.merge(uri)
		for _, label := range labels {
			n.labels[label] = true
		}
		for k, v := range row {
			if k == uriParam {
				continue
			}
			if incoming, ok := v.([]any); ok {
				existing, _ := n.props[k].([]any)
				for _, item := range incoming {
					if !containsValue(existing, item) {
						existing = append(existing, item)
					}
				}
				n.props[k] = existing
				continue
			}
			if v != nil {
				n.props[k] = v
			}
		}
	}
}

func (g *fakeGraph) applyRel(st executedStatement) {
	relType := parseRelType(st.cypher)
	for _, row := range paramRows(st) {
		from, _ := row["from"].(string)
		to, _ := row["to"].(string)
		g.merge(from)
		g.merge(to)
		g.rels[from+" -"+relType+"-> "+to]++
	}
}

// parseNodeLabels extracts the label list from a rendered node merge. The
// label clause is the one SET line using colons instead of dots.
func parseNodeLabels(cypher string) []string {
	for _, line := range strings.Split(cypher, "\n") {
		if !strings.HasPrefix(line, "SET n:") {
			continue
		}
		var labels []string
		for _, part := range strings.Split(strings.TrimPrefix(line, "SET "), ", ") {
			part = strings.TrimPrefix(part, "n:")
			labels = append(labels, strings.Trim(part, "`"))
		}
		return labels
	}
	return nil
}

// parseRelType extracts the relationship type from a rendered merge.
func parseRelType(cypher string) string {
	start := strings.Index(cypher, "[r:`")
	if start < 0 {
		return ""
	}
	rest := cypher[start+len("[r:`"):]
	end := strings.Index(rest, "`]")
	if end < 0 {
		return ""
	}
	return rest[:end]
}
