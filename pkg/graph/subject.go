// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package graph

import (
	"github.com/knakk/rdf"

	"github.com/kraklabs/rdfsink/pkg/vocab"
)

// rdfTypeURI is the one predicate with graph-shape meaning: its objects
// become node labels instead of properties or relationships.
const rdfTypeURI = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// uriParam is the reserved row key carrying the subject URI. Property
// names never collide with it because resolved names come from predicate
// URIs, not bare words.
const uriParam = "uri"

// relation is one outgoing edge accumulated for the open subject.
type relation struct {
	relType string
	from    string
	to      string
}

// subjectState accumulates everything asserted about the currently open
// subject. It is flushed into the per-group composers when the subject
// boundary is crossed, so triples for one subject must arrive contiguously
// to merge into a single parameter row.
type subjectState struct {
	uri   string
	vocab *vocab.Config

	labels      []string
	singleProps map[string]any
	singleOrder []string
	multiProps  map[string][]any
	multiOrder  []string
	rels        []relation
}

func newSubjectState(uri string, vc *vocab.Config) *subjectState {
	return &subjectState{
		uri:         uri,
		vocab:       vc,
		singleProps: make(map[string]any),
		multiProps:  make(map[string][]any),
	}
}

// addTriple files one triple under the subject. The caller has already
// checked that subject and predicate are named resources; objects decide
// the shape. Blank-node objects are skipped.
func (s *subjectState) addTriple(t rdf.Triple) error {
	predURI := t.Pred.String()
	switch t.Obj.Type() {
	case rdf.TermLiteral:
		lit, ok := t.Obj.(rdf.Literal)
		if !ok {
			return nil
		}
		return s.addProperty(predURI, lit)
	case rdf.TermIRI:
		if predURI == rdfTypeURI {
			return s.addLabel(t.Obj.String())
		}
		return s.addRelation(predURI, t.Obj.String())
	default:
		return nil
	}
}

// addProperty records a literal object under the predicate's resolved
// name. Multivalue membership is decided on the full predicate URI before
// rewriting. Single-valued properties keep the last value seen; multivalued
// ones build a deduplicated list.
func (s *subjectState) addProperty(predURI string, lit rdf.Literal) error {
	name, err := s.vocab.ResolveName(predURI)
	if err != nil {
		return err
	}
	value := convertLiteral(lit)
	if s.vocab.IsMultival(predURI) {
		if !containsValue(s.multiProps[name], value) {
			s.multiProps[name] = append(s.multiProps[name], value)
		}
		s.multiOrder = appendUnique(s.multiOrder, name)
		return nil
	}
	s.singleProps[name] = value
	s.singleOrder = appendUnique(s.singleOrder, name)
	return nil
}

// addLabel records a type assertion as a node label.
func (s *subjectState) addLabel(classURI string) error {
	name, err := s.vocab.ResolveName(classURI)
	if err != nil {
		return err
	}
	s.labels = appendUnique(s.labels, name)
	return nil
}

// addRelation records an outgoing edge. Duplicate (type, target) pairs
// within one subject collapse here; cross-subject duplicates collapse in
// the relationship composer.
func (s *subjectState) addRelation(predURI, objURI string) error {
	relType, err := s.vocab.ResolveName(predURI)
	if err != nil {
		return err
	}
	for _, r := range s.rels {
		if r.relType == relType && r.to == objURI {
			return nil
		}
	}
	s.rels = append(s.rels, relation{relType: relType, from: s.uri, to: objURI})
	return nil
}

// labelKey is the node-composer grouping key for this subject.
func (s *subjectState) labelKey() string {
	return labelSetKey(s.labels)
}

// sortedLabels returns the label set in the order it is rendered.
func (s *subjectState) sortedLabels() []string {
	if len(s.labels) == 0 {
		return nil
	}
	return sortedCopy(s.labels)
}

// params builds the parameter row for this subject: the uri key plus one
// entry per property, multivalued entries as lists.
func (s *subjectState) params() map[string]any {
	row := make(map[string]any, 1+len(s.singleOrder)+len(s.multiOrder))
	row[uriParam] = s.uri
	for _, name := range s.singleOrder {
		row[name] = s.singleProps[name]
	}
	for _, name := range s.multiOrder {
		values := s.multiProps[name]
		out := make([]any, len(values))
		copy(out, values)
		row[name] = out
	}
	return row
}
