// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package storage

import (
	"strings"
	"testing"
)

// TestBackendInterface verifies that Neo4jBackend implements the Backend interface.
func TestBackendInterface(t *testing.T) {
	var _ Backend = &Neo4jBackend{}
}

func TestQueryResultColumn(t *testing.T) {
	qr := &QueryResult{
		Headers: []string{"name", "type", "labelsOrTypes", "properties"},
		Rows: [][]any{
			{"resource_uri_unique", "UNIQUENESS", []any{"Resource"}, []any{"uri"}},
		},
	}

	idx, ok := qr.Column("labelsOrTypes")
	if !ok || idx != 2 {
		t.Errorf("Column(labelsOrTypes) = %d, %v, want 2, true", idx, ok)
	}
	if _, ok := qr.Column("missing"); ok {
		t.Error("Column should report absent columns")
	}

	empty := &QueryResult{}
	if _, ok := empty.Column("anything"); ok {
		t.Error("empty result should have no columns")
	}
}

func TestTypeMismatchErrorMessage(t *testing.T) {
	err := &TypeMismatchError{Code: typeErrorCode, Msg: "Collections containing mixed types can not be stored in properties."}
	msg := err.Error()
	if msg == "" {
		t.Fatal("empty error message")
	}
	// The translated error keeps the server code for debugging.
	if !strings.Contains(msg, typeErrorCode) {
		t.Errorf("error message should contain %q: %s", typeErrorCode, msg)
	}
}
