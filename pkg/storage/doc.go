// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

// Package storage provides the database backend abstraction for rdfsink.
//
// This package defines the Backend interface the ingestion engine writes
// through. The abstraction keeps the engine (pkg/graph) free of driver
// details and lets its tests run against an in-memory fake.
//
// # Available Backends
//
//   - Neo4jBackend: parameterized Cypher over Bolt via the official
//     neo4j-go-driver. The only production backend.
//
// # Quick Start
//
// Create and open a backend, then execute statements:
//
//	backend, err := storage.NewNeo4jBackend(storage.Neo4jConfig{
//	    URI:      "neo4j://localhost:7687",
//	    Username: "neo4j",
//	    Password: "secret",
//	    Database: "neo4j",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := backend.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close(ctx)
//
//	err = backend.Execute(ctx,
//	    "UNWIND $params AS param MERGE (n:Resource {uri: param.uri})",
//	    map[string]any{"params": rows})
//
// # Query vs Execute
//
// Use Query for reads (schema introspection, status counts) and Execute for
// mutations. Execute waits for server-side completion, so statement errors
// that the server reports lazily still surface at the call site.
//
// # Session Ownership
//
// A backend owns exactly one session, created by Open. Bolt sessions are not
// safe for concurrent use; the engine is single-threaded and any
// multiplexing caller (the ingest daemon) serializes access. Close releases
// the session; the driver itself is closed only when this backend created
// it. A driver supplied via NewNeo4jBackendWithDriver is left open for its
// owner.
//
// # Error Translation
//
// The one server failure the engine is known to provoke, the
// Neo.ClientError.Statement.TypeError raised when a multivalued property
// accumulates values of mixed types, is translated to *TypeMismatchError.
// All other transport errors pass through unchanged.
package storage
