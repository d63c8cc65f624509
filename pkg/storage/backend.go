// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"fmt"
)

// Backend is the interface the ingestion engine writes through.
// It provides parameterized Cypher execution and connection lifecycle.
type Backend interface {
	// Open establishes the session and verifies connectivity.
	Open(ctx context.Context) error

	// Query executes a read query and returns the results. Used only for
	// schema introspection and operational status; the engine itself is
	// write-only.
	Query(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error)

	// Execute runs a mutation statement with parameters.
	Execute(ctx context.Context, cypher string, params map[string]any) error

	// Close releases the session and, when the backend owns it, the
	// underlying connection.
	Close(ctx context.Context) error
}

// QueryResult represents the rows returned by a query.
type QueryResult struct {
	Headers []string
	Rows    [][]any
}

// Column returns the index of a named column, or false when absent.
func (r *QueryResult) Column(name string) (int, bool) {
	for i, h := range r.Headers {
		if h == name {
			return i, true
		}
	}
	return 0, false
}

// TypeMismatchError is the translated form of the known server failure
// raised when a multivalued property has accumulated values of mixed types
// (graph arrays must be uniformly typed). Other transport errors pass
// through untranslated.
type TypeMismatchError struct {
	Code string
	Msg  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("storage: property type mismatch (mixed-type values in a multivalued property?): %s: %s", e.Code, e.Msg)
}
