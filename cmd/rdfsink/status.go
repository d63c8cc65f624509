// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/rdfsink/pkg/graph"
	"github.com/kraklabs/rdfsink/pkg/ingest"
	"github.com/kraklabs/rdfsink/pkg/storage"
)

const (
	countNodesQuery = "MATCH (n:Resource) RETURN count(n) AS count"
	countRelsQuery  = "MATCH ()-[r]->() RETURN count(r) AS count"
)

// StatusResult is the machine-readable shape of rdfsink status.
type StatusResult struct {
	Timestamp     string       `json:"timestamp"`
	URI           string       `json:"uri"`
	Database      string       `json:"database"`
	Batching      bool         `json:"batching"`
	BatchSize     int          `json:"batch_size"`
	Strategy      string       `json:"strategy"`
	Multival      string       `json:"multival"`
	DaemonRunning bool         `json:"daemon_running"`
	DaemonStats   *graph.Stats `json:"daemon_stats,omitempty"`
	Connected     bool         `json:"connected"`
	Constraint    bool         `json:"constraint"`
	Nodes         int64        `json:"nodes"`
	Relationships int64        `json:"relationships"`
	Error         string       `json:"error,omitempty"`
}

func runStatus(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rdfsink status

Description:
  Shows the effective configuration, whether the ingest daemon answers,
  and what the target database holds. Use --json for scripting.

`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfigOrDefault(configPath, globals)
	result := gatherStatus(cfg)

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitGeneral)
		}
		return
	}
	printStatus(result)
}

func gatherStatus(cfg *Config) StatusResult {
	result := StatusResult{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		URI:       cfg.Neo4j.URI,
		Database:  cfg.Neo4j.Database,
		Batching:  cfg.Batching.Enabled,
		BatchSize: cfg.Batching.BatchSize,
		Strategy:  cfg.Vocab.Strategy,
		Multival:  cfg.Vocab.Multival,
	}

	if client, err := ingest.Dial(ingest.DefaultSocketPath()); err == nil {
		if pingErr := client.Ping(); pingErr == nil {
			result.DaemonRunning = true
			if stats, statsErr := client.Stats(); statsErr == nil {
				result.DaemonStats = &stats
			}
		}
		client.Close()
	}

	backend, err := storage.NewNeo4jBackend(storage.Neo4jConfig{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := backend.Open(ctx); err != nil {
		result.Error = err.Error()
		return result
	}
	defer backend.Close(ctx)
	result.Connected = true

	if present, err := graph.HasConstraint(ctx, backend); err == nil {
		result.Constraint = present
	}
	if n, ok := queryCount(ctx, backend, countNodesQuery); ok {
		result.Nodes = n
	}
	if n, ok := queryCount(ctx, backend, countRelsQuery); ok {
		result.Relationships = n
	}
	return result
}

func queryCount(ctx context.Context, backend storage.Backend, cypher string) (int64, bool) {
	result, err := backend.Query(ctx, cypher, nil)
	if err != nil {
		return 0, false
	}
	idx, ok := result.Column("count")
	if !ok || len(result.Rows) == 0 {
		return 0, false
	}
	n, ok := result.Rows[0][idx].(int64)
	return n, ok
}

func printStatus(result StatusResult) {
	fmt.Printf("rdfsink status (%s)\n\n", result.Timestamp)

	fmt.Println("Configuration:")
	fmt.Printf("  URI:         %s\n", result.URI)
	fmt.Printf("  Database:    %s\n", result.Database)
	if result.Batching {
		fmt.Printf("  Batching:    enabled (%d rows)\n", result.BatchSize)
	} else {
		fmt.Printf("  Batching:    disabled\n")
	}
	fmt.Printf("  Vocab:       %s / %s\n", result.Strategy, result.Multival)
	fmt.Println()

	fmt.Println("Daemon:")
	if result.DaemonRunning {
		fmt.Printf("  Running:     yes\n")
		if s := result.DaemonStats; s != nil {
			fmt.Printf("  Triples:     %d seen, %d skipped\n", s.TriplesSeen, s.TriplesSkipped)
			fmt.Printf("  Buffered:    %d node rows, %d rel rows\n", s.BufferedNodeRows, s.BufferedRelRows)
		}
	} else {
		fmt.Printf("  Running:     no\n")
	}
	fmt.Println()

	fmt.Println("Database:")
	if !result.Connected {
		fmt.Printf("  Connected:   no\n")
		if result.Error != "" {
			fmt.Printf("  Error:       %s\n", result.Error)
		}
		return
	}
	fmt.Printf("  Connected:   yes\n")
	if result.Constraint {
		fmt.Printf("  Constraint:  present\n")
	} else {
		fmt.Printf("  Constraint:  missing\n")
	}
	fmt.Printf("  Nodes:       %d (:Resource)\n", result.Nodes)
	fmt.Printf("  Rels:        %d\n", result.Relationships)
}
