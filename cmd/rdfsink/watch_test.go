// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/rdfsink/pkg/graph"
	"github.com/kraklabs/rdfsink/pkg/storage"
)

// stubBackend counts writes and answers every query with an empty result.
type stubBackend struct {
	executed int
}

var _ storage.Backend = (*stubBackend)(nil)

func (b *stubBackend) Open(ctx context.Context) error  { return nil }
func (b *stubBackend) Close(ctx context.Context) error { return nil }

func (b *stubBackend) Query(ctx context.Context, cypher string, params map[string]any) (*storage.QueryResult, error) {
	return &storage.QueryResult{}, nil
}

func (b *stubBackend) Execute(ctx context.Context, cypher string, params map[string]any) error {
	b.executed++
	return nil
}

func TestIsRDFFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"data.nt", true},
		{"data.ttl", true},
		{"data.rdf", true},
		{"data.owl", true},
		{"data.nt.gz", true},
		{"DATA.NT", true},
		{"data.txt", false},
		{"data.gz", false},
		{"data", false},
		{"dir/.hidden.nt", true},
	}
	for _, tt := range tests {
		if got := isRDFFile(tt.path); got != tt.want {
			t.Errorf("isRDFFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestContentHash(t *testing.T) {
	a := contentHash([]byte("alpha"))
	b := contentHash([]byte("beta"))
	if a == b {
		t.Error("different content should hash differently")
	}
	if a != contentHash([]byte("alpha")) {
		t.Error("hash should be stable")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestImportSettledFileSkipsUnchanged(t *testing.T) {
	backend := &stubBackend{}
	store, err := graph.NewStoreWithBackend(backend, graph.Config{Batching: true}, nil)
	if err != nil {
		t.Fatalf("NewStoreWithBackend: %v", err)
	}
	ctx := context.Background()
	if err := store.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close(ctx, false)

	path := filepath.Join(t.TempDir(), "drop.nt")
	line1 := "<http://example.org/alice> <http://example.org/name> \"Alice\" .\n"
	if err := os.WriteFile(path, []byte(line1), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	hashes := make(map[string]string)
	logger := slog.Default()
	quiet := GlobalFlags{Quiet: true}

	importSettledFile(ctx, store, cfg, path, hashes, logger, quiet)
	if got := store.Stats().TriplesSeen; got != 1 {
		t.Fatalf("TriplesSeen = %d, want 1", got)
	}

	// Same content again: the hash check must keep it out of the store.
	importSettledFile(ctx, store, cfg, path, hashes, logger, quiet)
	if got := store.Stats().TriplesSeen; got != 1 {
		t.Errorf("TriplesSeen after unchanged re-import = %d, want 1", got)
	}

	line2 := line1 + "<http://example.org/alice> <http://example.org/age> \"34\" .\n"
	if err := os.WriteFile(path, []byte(line2), 0o600); err != nil {
		t.Fatal(err)
	}
	importSettledFile(ctx, store, cfg, path, hashes, logger, quiet)
	if got := store.Stats().TriplesSeen; got != 3 {
		t.Errorf("TriplesSeen after change = %d, want 3", got)
	}
}
