// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package graph

import (
	"context"
	"log/slog"

	"github.com/kraklabs/rdfsink/pkg/storage"
)

const (
	showConstraintsQuery = "SHOW CONSTRAINTS"

	createConstraintStmt = "CREATE CONSTRAINT resource_uri_unique IF NOT EXISTS " +
		"FOR (n:Resource) REQUIRE n.uri IS UNIQUE"
)

// EnsureConstraint checks for a uniqueness constraint on (Resource, uri)
// and, when create is set, issues the create statement if none exists.
// Every merge the store emits matches on that pair, so without the
// constraint large imports degrade to label scans. Failures here are
// non-fatal: restricted users may lack schema privileges, and the store
// still works without the index, just slowly. Both cases log a warning.
func EnsureConstraint(ctx context.Context, backend storage.Backend, create bool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	present, err := HasConstraint(ctx, backend)
	if err != nil {
		logger.Warn("could not inspect constraints", "error", err)
		if !create {
			return nil
		}
		return createConstraint(ctx, backend, logger)
	}
	if present {
		return nil
	}
	if !create {
		logger.Warn("no uniqueness constraint on (Resource, uri); merges will not be index-backed")
		return nil
	}
	return createConstraint(ctx, backend, logger)
}

// HasConstraint reports whether a uniqueness constraint covering exactly
// (Resource, uri) exists. It never modifies the schema.
func HasConstraint(ctx context.Context, backend storage.Backend) (bool, error) {
	result, err := backend.Query(ctx, showConstraintsQuery, nil)
	if err != nil {
		return false, err
	}
	return hasResourceURIConstraint(result), nil
}

func createConstraint(ctx context.Context, backend storage.Backend, logger *slog.Logger) error {
	if err := backend.Execute(ctx, createConstraintStmt, nil); err != nil {
		logger.Warn("could not create uniqueness constraint", "error", err)
	}
	return nil
}

// hasResourceURIConstraint scans a SHOW CONSTRAINTS result for a
// uniqueness constraint covering exactly (Resource, uri).
func hasResourceURIConstraint(result *storage.QueryResult) bool {
	typeIdx, ok := result.Column("type")
	if !ok {
		return false
	}
	labelsIdx, ok := result.Column("labelsOrTypes")
	if !ok {
		return false
	}
	propsIdx, ok := result.Column("properties")
	if !ok {
		return false
	}
	for _, row := range result.Rows {
		kind, _ := row[typeIdx].(string)
		if kind != "UNIQUENESS" && kind != "NODE_KEY" {
			continue
		}
		if singleElement(row[labelsIdx]) == baseLabel && singleElement(row[propsIdx]) == uriParam {
			return true
		}
	}
	return false
}

// singleElement unpacks a one-element string list column value. The driver
// hands lists back as []any.
func singleElement(v any) string {
	switch list := v.(type) {
	case []any:
		if len(list) == 1 {
			s, _ := list[0].(string)
			return s
		}
	case []string:
		if len(list) == 1 {
			return list[0]
		}
	}
	return ""
}
