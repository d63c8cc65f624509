// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// typeErrorCode is the server code for mixed-type property values.
const typeErrorCode = "Neo.ClientError.Statement.TypeError"

// Neo4jBackend implements Backend over a Bolt connection. One backend owns
// exactly one session; sessions are not safe for concurrent use, so callers
// that multiplex (the ingest daemon) serialize access themselves.
type Neo4jBackend struct {
	driver     neo4j.DriverWithContext
	database   string
	ownsDriver bool

	mu      sync.Mutex
	session neo4j.SessionWithContext
	closed  bool
}

// Neo4jConfig configures the backend connection.
type Neo4jConfig struct {
	// URI is the Bolt endpoint, e.g. "neo4j://localhost:7687".
	URI string

	// Username and Password authenticate via basic auth. Both are required;
	// missing credentials are a configuration error, never defaulted.
	Username string
	Password string

	// Database selects the target database. Defaults to "neo4j".
	Database string
}

// NewNeo4jBackend creates a backend that owns its driver. No network I/O
// happens until Open.
func NewNeo4jBackend(config Neo4jConfig) (*Neo4jBackend, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("storage: connection URI is required")
	}
	if config.Username == "" {
		return nil, fmt.Errorf("storage: username is required")
	}
	if config.Password == "" {
		return nil, fmt.Errorf("storage: password is required")
	}
	if config.Database == "" {
		config.Database = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(config.URI, neo4j.BasicAuth(config.Username, config.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}

	return &Neo4jBackend{
		driver:     driver,
		database:   config.Database,
		ownsDriver: true,
	}, nil
}

// NewNeo4jBackendWithDriver creates a backend over an externally supplied
// driver. Close releases only the session; the driver stays open and its
// lifecycle remains the caller's.
func NewNeo4jBackendWithDriver(driver neo4j.DriverWithContext, database string) *Neo4jBackend {
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jBackend{
		driver:   driver,
		database: database,
	}
}

// Open verifies connectivity and establishes the session.
func (b *Neo4jBackend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("backend is closed")
	}
	if b.session != nil {
		return nil
	}

	if err := b.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("verify connectivity: %w", err)
	}

	b.session = b.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: b.database,
	})
	return nil
}

// Query executes a read query on the session.
func (b *Neo4jBackend) Query(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return nil, err
	}

	result, err := b.session.Run(ctx, cypher, params)
	if err != nil {
		return nil, translateNeo4jError(err)
	}

	qr := &QueryResult{}
	for result.Next(ctx) {
		record := result.Record()
		if qr.Headers == nil {
			qr.Headers = record.Keys
		}
		qr.Rows = append(qr.Rows, record.Values)
	}
	if err := result.Err(); err != nil {
		return nil, translateNeo4jError(err)
	}
	return qr, nil
}

// Execute runs a mutation on the session and waits for server-side
// completion, so deferred statement errors surface here.
func (b *Neo4jBackend) Execute(ctx context.Context, cypher string, params map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ready(); err != nil {
		return err
	}

	result, err := b.session.Run(ctx, cypher, params)
	if err != nil {
		return translateNeo4jError(err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return translateNeo4jError(err)
	}
	return nil
}

// Close releases the session and, when the backend owns the driver, the
// driver. A borrowed driver is never closed here.
func (b *Neo4jBackend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	if b.session != nil {
		firstErr = b.session.Close(ctx)
		b.session = nil
	}
	if b.ownsDriver {
		if err := b.driver.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *Neo4jBackend) ready() error {
	if b.closed {
		return fmt.Errorf("backend is closed")
	}
	if b.session == nil {
		return fmt.Errorf("backend is not open")
	}
	return nil
}

// translateNeo4jError maps the known type-mismatch server code onto the
// domain error; everything else passes through unchanged.
func translateNeo4jError(err error) error {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && neoErr.Code == typeErrorCode {
		return &TypeMismatchError{Code: neoErr.Code, Msg: neoErr.Msg}
	}
	return err
}
