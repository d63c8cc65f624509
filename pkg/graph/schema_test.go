// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kraklabs/rdfsink/pkg/storage"
)

func constraintRows(rows ...[]any) *storage.QueryResult {
	return &storage.QueryResult{
		Headers: []string{"id", "name", "type", "labelsOrTypes", "properties"},
		Rows:    rows,
	}
}

func TestHasResourceURIConstraint(t *testing.T) {
	tests := []struct {
		name   string
		result *storage.QueryResult
		want   bool
	}{
		{
			"uniqueness on resource uri",
			constraintRows([]any{int64(1), "c1", "UNIQUENESS", []any{"Resource"}, []any{"uri"}}),
			true,
		},
		{
			"node key also satisfies",
			constraintRows([]any{int64(1), "c1", "NODE_KEY", []any{"Resource"}, []any{"uri"}}),
			true,
		},
		{
			"string slices from a fake driver",
			constraintRows([]any{int64(1), "c1", "UNIQUENESS", []string{"Resource"}, []string{"uri"}}),
			true,
		},
		{
			"wrong label",
			constraintRows([]any{int64(1), "c1", "UNIQUENESS", []any{"Person"}, []any{"uri"}}),
			false,
		},
		{
			"wrong property",
			constraintRows([]any{int64(1), "c1", "UNIQUENESS", []any{"Resource"}, []any{"name"}}),
			false,
		},
		{
			"composite property set",
			constraintRows([]any{int64(1), "c1", "UNIQUENESS", []any{"Resource"}, []any{"uri", "name"}}),
			false,
		},
		{
			"existence constraint does not count",
			constraintRows([]any{int64(1), "c1", "NODE_PROPERTY_EXISTENCE", []any{"Resource"}, []any{"uri"}}),
			false,
		},
		{
			"no rows",
			constraintRows(),
			false,
		},
		{
			"missing columns",
			&storage.QueryResult{Headers: []string{"name"}, Rows: [][]any{{"c1"}}},
			false,
		},
	}
	for _, tt := range tests {
		if got := hasResourceURIConstraint(tt.result); got != tt.want {
			t.Errorf("%s: hasResourceURIConstraint = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEnsureConstraintCreatesWhenMissing(t *testing.T) {
	backend := &fakeBackend{constraints: constraintRows()}
	if err := EnsureConstraint(context.Background(), backend, true, nil); err != nil {
		t.Fatalf("EnsureConstraint: %v", err)
	}
	if len(backend.executed) != 1 || !strings.Contains(backend.executed[0].cypher, "CREATE CONSTRAINT") {
		t.Errorf("expected one create statement, got %v", backend.executed)
	}
}

func TestEnsureConstraintSkipsWhenPresent(t *testing.T) {
	backend := &fakeBackend{
		constraints: constraintRows([]any{int64(1), "c1", "UNIQUENESS", []any{"Resource"}, []any{"uri"}}),
	}
	if err := EnsureConstraint(context.Background(), backend, true, nil); err != nil {
		t.Fatalf("EnsureConstraint: %v", err)
	}
	if len(backend.executed) != 0 {
		t.Errorf("constraint already present, nothing should execute: %v", backend.executed)
	}
}

func TestEnsureConstraintWarnsWithoutCreate(t *testing.T) {
	backend := &fakeBackend{constraints: constraintRows()}
	if err := EnsureConstraint(context.Background(), backend, false, nil); err != nil {
		t.Fatalf("EnsureConstraint: %v", err)
	}
	if len(backend.executed) != 0 {
		t.Errorf("create disabled, nothing should execute: %v", backend.executed)
	}
}

func TestEnsureConstraintSwallowsCreateFailure(t *testing.T) {
	backend := &fakeBackend{
		constraints: constraintRows(),
		execErr:     errors.New("Neo.ClientError.Security.Forbidden"),
	}
	if err := EnsureConstraint(context.Background(), backend, true, nil); err != nil {
		t.Errorf("EnsureConstraint must swallow create failures, got %v", err)
	}
}

func TestEnsureConstraintSwallowsInspectFailure(t *testing.T) {
	backend := &fakeBackend{queryErr: errors.New("show constraints denied")}
	if err := EnsureConstraint(context.Background(), backend, true, nil); err != nil {
		t.Errorf("EnsureConstraint must swallow inspection failures, got %v", err)
	}
	if len(backend.executed) != 1 {
		t.Errorf("create should still be attempted after failed inspection: %v", backend.executed)
	}
}
