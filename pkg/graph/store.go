// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/knakk/rdf"

	"github.com/kraklabs/rdfsink/pkg/storage"
	"github.com/kraklabs/rdfsink/pkg/vocab"
)

// DefaultBatchSize is the flush threshold used when batching is enabled
// and no explicit size is configured.
const DefaultBatchSize = 5000

var (
	// ErrStoreClosed is returned by operations on a store that has not
	// been opened or has already been closed.
	ErrStoreClosed = errors.New("graph: store is not open")

	// ErrRemoveUnsupported is returned by Remove. The store only merges;
	// deleting statements from the graph is out of its contract.
	ErrRemoveUnsupported = errors.New("graph: remove is not supported; the store is append-only")
)

// Config configures a Store.
type Config struct {
	// URI, Username, Password and Database describe the Neo4j target.
	// They are used by NewStore to build its own backend and ignored by
	// NewStoreWithBackend.
	URI      string
	Username string
	Password string
	Database string

	// Batching buffers rows and flushes per side when BatchSize rows
	// accumulate. Without it every added triple commits immediately.
	Batching  bool
	BatchSize int

	// CreateConstraint makes Open issue the uniqueness constraint on
	// (Resource, uri) when it is missing. When false a missing
	// constraint only logs a warning.
	CreateConstraint bool

	// Vocab holds the URI rewriting and multivalue policy. nil means the
	// ignore strategy with single-valued properties.
	Vocab *vocab.Config

	// CreatedField and UpdatedField name the bookkeeping timestamps on
	// relationships. Empty means createdAt and updatedAt.
	CreatedField string
	UpdatedField string
}

func (c *Config) normalize() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.CreatedField == "" {
		c.CreatedField = "createdAt"
	}
	if c.UpdatedField == "" {
		c.UpdatedField = "updatedAt"
	}
	if c.Vocab == nil {
		c.Vocab = vocab.NewConfig(vocab.StrategyIgnore, vocab.MultivalOverwrite)
	}
}

// Stats is a snapshot of ingestion counters.
type Stats struct {
	TriplesSeen      int `json:"triples_seen"`
	TriplesSkipped   int `json:"triples_skipped"`
	SubjectsClosed   int `json:"subjects_closed"`
	BufferedNodeRows int `json:"buffered_node_rows"`
	BufferedRelRows  int `json:"buffered_rel_rows"`
	NodeFlushes      int `json:"node_flushes"`
	RelFlushes       int `json:"rel_flushes"`
}

// Store ingests RDF triples and materializes them as a labeled property
// graph. Triples accumulate per subject; on subject boundaries the
// accumulated row moves into per-label-set and per-relationship-type
// composers, which flush as parameterized batch merges.
//
// A Store is single-threaded by contract. Callers that ingest from
// multiple goroutines must serialize access themselves; the daemon in
// pkg/ingest does exactly that.
type Store struct {
	config  Config
	backend storage.Backend
	logger  *slog.Logger

	open    bool
	current *subjectState

	nodeGroups map[string]*NodeQueryComposer
	nodeOrder  []string
	relGroups  map[string]*RelationshipQueryComposer
	relOrder   []string

	bufferedNodeRows int
	bufferedRelRows  int

	triplesSeen    int
	triplesSkipped int
	subjectsClosed int
	nodeFlushes    int
	relFlushes     int
}

// NewStore creates a store that owns its database connection, using the
// default logger.
func NewStore(cfg Config) (*Store, error) {
	return NewStoreWithLogger(cfg, nil)
}

// NewStoreWithLogger creates a store that owns its database connection.
// Connection parameters are validated here; no I/O happens until Open.
func NewStoreWithLogger(cfg Config, logger *slog.Logger) (*Store, error) {
	backend, err := storage.NewNeo4jBackend(storage.Neo4jConfig{
		URI:      cfg.URI,
		Username: cfg.Username,
		Password: cfg.Password,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}
	return NewStoreWithBackend(backend, cfg, logger)
}

// NewStoreWithBackend creates a store on an injected backend. No
// connection validation happens; the backend is trusted to be usable
// once opened.
func NewStoreWithBackend(backend storage.Backend, cfg Config, logger *slog.Logger) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.normalize()
	return &Store{
		config:     cfg,
		backend:    backend,
		logger:     logger,
		nodeGroups: make(map[string]*NodeQueryComposer),
		relGroups:  make(map[string]*RelationshipQueryComposer),
	}, nil
}

// Open connects the backend and bootstraps the uniqueness constraint.
func (s *Store) Open(ctx context.Context) error {
	if s.open {
		return fmt.Errorf("graph: store is already open")
	}
	if err := s.backend.Open(ctx); err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	if err := EnsureConstraint(ctx, s.backend, s.config.CreateConstraint, s.logger); err != nil {
		return fmt.Errorf("ensure constraint: %w", err)
	}
	s.open = true
	s.logger.Debug("graph store opened",
		"batching", s.config.Batching,
		"batch_size", s.config.BatchSize)
	return nil
}

// Add ingests one triple. Triples whose subject or predicate is not a
// named resource are skipped silently. A subject different from the open
// one closes the open accumulator first; with batching enabled that is
// also the moment either side flushes if its buffer reached the
// threshold, and without batching every call commits in full.
//
// Statements for one subject must arrive contiguously to merge into a
// single row. Interleaved subjects still land, but as separate rows whose
// merges only union correctly because the queries coalesce per property.
func (s *Store) Add(ctx context.Context, t rdf.Triple) error {
	if !s.open {
		return ErrStoreClosed
	}
	s.triplesSeen++
	if !isIRI(t.Subj) || !isIRI(t.Pred) {
		s.triplesSkipped++
		return nil
	}
	subjURI := t.Subj.String()
	if s.current != nil && s.current.uri != subjURI {
		s.closeSubject()
		if s.config.Batching {
			if s.bufferedNodeRows >= s.config.BatchSize {
				if err := s.flushNodes(ctx); err != nil {
					return err
				}
			}
			if s.bufferedRelRows >= s.config.BatchSize {
				if err := s.flushRelationships(ctx); err != nil {
					return err
				}
			}
		}
	}
	if s.current == nil {
		s.current = newSubjectState(subjURI, s.config.Vocab)
	}
	if err := s.current.addTriple(t); err != nil {
		return err
	}
	if !s.config.Batching {
		return s.Commit(ctx)
	}
	return nil
}

// Remove always fails; see ErrRemoveUnsupported.
func (s *Store) Remove(ctx context.Context, t rdf.Triple) error {
	return ErrRemoveUnsupported
}

// Commit closes the open subject and flushes everything buffered, nodes
// fully before relationships so endpoint merges find labeled nodes
// instead of creating bare stubs.
func (s *Store) Commit(ctx context.Context) error {
	if !s.open {
		return ErrStoreClosed
	}
	s.closeSubject()
	if err := s.flushNodes(ctx); err != nil {
		return err
	}
	return s.flushRelationships(ctx)
}

// CommitNodes closes the open subject and flushes only the node side.
// Relationship rows stay buffered.
func (s *Store) CommitNodes(ctx context.Context) error {
	if !s.open {
		return ErrStoreClosed
	}
	s.closeSubject()
	return s.flushNodes(ctx)
}

// CommitRelationships closes the open subject and flushes only the
// relationship side. Node rows stay buffered.
func (s *Store) CommitRelationships(ctx context.Context) error {
	if !s.open {
		return ErrStoreClosed
	}
	s.closeSubject()
	return s.flushRelationships(ctx)
}

// Close shuts the store down. With commitPending it flushes whatever is
// buffered first, nodes fully before relationships. The backend is always
// closed, even when the final commit fails; the commit error wins.
// Closing a store that never opened is a no-op.
func (s *Store) Close(ctx context.Context, commitPending bool) error {
	if !s.open {
		return nil
	}
	var commitErr error
	if commitPending {
		commitErr = s.Commit(ctx)
	}
	s.open = false
	closeErr := s.backend.Close(ctx)
	s.logger.Debug("graph store closed",
		"triples", s.triplesSeen,
		"subjects", s.subjectsClosed)
	if commitErr != nil {
		return commitErr
	}
	return closeErr
}

// Stats returns a snapshot of the ingestion counters.
func (s *Store) Stats() Stats {
	return Stats{
		TriplesSeen:      s.triplesSeen,
		TriplesSkipped:   s.triplesSkipped,
		SubjectsClosed:   s.subjectsClosed,
		BufferedNodeRows: s.bufferedNodeRows,
		BufferedRelRows:  s.bufferedRelRows,
		NodeFlushes:      s.nodeFlushes,
		RelFlushes:       s.relFlushes,
	}
}

// closeSubject moves the open accumulator, if any, into the composers.
func (s *Store) closeSubject() {
	sub := s.current
	if sub == nil {
		return
	}
	s.current = nil

	key := sub.labelKey()
	nc, ok := s.nodeGroups[key]
	if !ok {
		nc = NewNodeQueryComposer(sub.sortedLabels(), s.config.Vocab.Multival)
		s.nodeGroups[key] = nc
		s.nodeOrder = append(s.nodeOrder, key)
	}
	nc.MergePropNames(sub.singleOrder, sub.multiOrder)
	nc.AddRow(sub.params())
	s.bufferedNodeRows++

	for _, rel := range sub.rels {
		rc, ok := s.relGroups[rel.relType]
		if !ok {
			rc = NewRelationshipQueryComposer(rel.relType, s.config.CreatedField, s.config.UpdatedField)
			s.relGroups[rel.relType] = rc
			s.relOrder = append(s.relOrder, rel.relType)
		}
		if rc.AddPair(rel.from, rel.to) {
			s.bufferedRelRows++
		}
	}
	s.subjectsClosed++
}

// flushNodes writes every non-redundant node composer. On a write failure
// the remaining composers on this side are drained without writing, the
// buffer counter resets, and the first error propagates; the store stays
// open for further ingestion.
func (s *Store) flushNodes(ctx context.Context) error {
	var firstErr error
	for _, key := range s.nodeOrder {
		nc := s.nodeGroups[key]
		if nc.Redundant() {
			continue
		}
		if firstErr != nil {
			nc.Reset()
			continue
		}
		rows := nc.RowCount()
		err := s.backend.Execute(ctx, nc.Render(), map[string]any{"params": nc.Params()})
		nc.Reset()
		if err != nil {
			firstErr = fmt.Errorf("flush nodes: %w", err)
			continue
		}
		s.logger.Debug("flushed node group", "labels", nc.Labels(), "rows", rows)
	}
	s.bufferedNodeRows = 0
	if firstErr != nil {
		return firstErr
	}
	s.nodeFlushes++
	return nil
}

// flushRelationships writes every non-redundant relationship composer,
// draining the side on failure the same way flushNodes does.
func (s *Store) flushRelationships(ctx context.Context) error {
	var firstErr error
	for _, relType := range s.relOrder {
		rc := s.relGroups[relType]
		if rc.Redundant() {
			continue
		}
		if firstErr != nil {
			rc.Reset()
			continue
		}
		pairs := rc.PairCount()
		err := s.backend.Execute(ctx, rc.Render(), map[string]any{"params": rc.Params()})
		rc.Reset()
		if err != nil {
			firstErr = fmt.Errorf("flush relationships: %w", err)
			continue
		}
		s.logger.Debug("flushed relationship group", "type", rc.Type(), "pairs", pairs)
	}
	s.bufferedRelRows = 0
	if firstErr != nil {
		return firstErr
	}
	s.relFlushes++
	return nil
}

// isIRI reports whether a term is a named resource.
func isIRI(term rdf.Term) bool {
	return term != nil && term.Type() == rdf.TermIRI
}
