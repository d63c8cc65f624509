// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/knakk/rdf"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/rdfsink/pkg/graph"
	"github.com/kraklabs/rdfsink/pkg/storage"
	"github.com/kraklabs/rdfsink/pkg/vocab"
)

// progressEvery is how many triples pass between progress lines.
const progressEvery = 100000

type importSummary struct {
	RunID    string  `json:"run_id"`
	Files    int     `json:"files"`
	Duration float64 `json:"duration_seconds"`
	graph.Stats
}

func runImport(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	format := fs.String("format", "", "Input format: nt, ttl or rdf (default: by file extension)")
	batchSize := fs.Int("batch-size", 0, "Override the configured batch size")
	noBatch := fs.Bool("no-batch", false, "Commit after every triple instead of batching")
	dryRun := fs.Bool("dry-run", false, "Parse and count triples without writing to Neo4j")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rdfsink import [options] <file>...

Description:
  Parses RDF files and merges them into the configured Neo4j database.
  Files ending in .gz are decompressed on the fly. The format is taken
  from --format, then the config file, then the file extension.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  rdfsink import data.nt
  rdfsink import --format ttl dump1.txt dump2.txt
  rdfsink import --dry-run huge.nt.gz

`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(ExitGeneral)
	}

	cfg := loadConfigOrDefault(configPath, globals)
	if *format != "" {
		cfg.Import.Format = *format
	}
	if *batchSize > 0 {
		cfg.Batching.BatchSize = *batchSize
	}
	if *noBatch {
		cfg.Batching.Enabled = false
	}

	if *dryRun {
		runImportDryRun(fs.Args(), cfg, globals)
		return
	}

	storeCfg, err := cfg.StoreConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitConfig)
	}
	store, err := graph.NewStoreWithLogger(storeCfg, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		fmt.Fprintf(os.Stderr, "Interrupted, stopping import\n")
		cancel()
	}()

	if err := store.Open(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitDatabase)
	}

	runID := uuid.NewString()[:8]
	started := time.Now()
	if !globals.Quiet {
		fmt.Fprintf(os.Stderr, "Import %s: %d file(s) into %s\n", runID, fs.NArg(), cfg.Neo4j.URI)
	}

	for _, path := range fs.Args() {
		if err := importFile(ctx, store, path, cfg.Import.Format, globals.Quiet); err != nil {
			// Drain buffers but keep what already committed.
			closeErr := store.Close(context.Background(), false)
			if closeErr != nil {
				slog.Warn("close after failed import", "error", closeErr)
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(importExitCode(err))
		}
	}

	if err := store.Close(ctx, true); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitDatabase)
	}

	summary := importSummary{
		RunID:    runID,
		Files:    fs.NArg(),
		Duration: time.Since(started).Seconds(),
		Stats:    store.Stats(),
	}
	printImportSummary(summary, globals)
}

// importFile streams one file into the store. The triple count is folded
// into the store's own stats; the error carries the file path.
func importFile(ctx context.Context, store *graph.Store, path, configuredFormat string, quiet bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("decompress %s: %w", path, err)
		}
		defer gz.Close()
		reader = gz
	}

	format, err := resolveFormat(path, configuredFormat)
	if err != nil {
		return err
	}

	dec := rdf.NewTripleDecoder(reader, format)
	count := 0
	for {
		if ctx.Err() != nil {
			return fmt.Errorf("import %s: %w", path, ctx.Err())
		}
		triple, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("parse %s (after %d triples): %w", path, count, err)
		}
		if err := store.Add(ctx, triple); err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		count++
		if !quiet && count%progressEvery == 0 {
			fmt.Fprintf(os.Stderr, "  %s: %d triples\n", filepath.Base(path), count)
		}
	}
	return nil
}

// runImportDryRun only parses, so bad files can be checked without a
// database connection.
func runImportDryRun(files []string, cfg *Config, globals GlobalFlags) {
	total := 0
	for _, path := range files {
		count, err := countTriples(path, cfg.Import.Format)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitParse)
		}
		if !globals.Quiet {
			fmt.Printf("%s: %d triples\n", path, count)
		}
		total += count
	}
	fmt.Printf("%d triples in %d file(s), nothing written\n", total, len(files))
}

func countTriples(path, configuredFormat string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("decompress %s: %w", path, err)
		}
		defer gz.Close()
		reader = gz
	}

	format, err := resolveFormat(path, configuredFormat)
	if err != nil {
		return 0, err
	}
	dec := rdf.NewTripleDecoder(reader, format)
	count := 0
	for {
		_, err := dec.Decode()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("parse %s (after %d triples): %w", path, count, err)
		}
		count++
	}
}

// resolveFormat picks the serialization for a file: an explicit name wins,
// otherwise the extension decides (with .gz stripped first).
func resolveFormat(path, configured string) (rdf.Format, error) {
	if configured != "" {
		return parseFormat(configured)
	}
	name := strings.TrimSuffix(path, ".gz")
	switch strings.ToLower(filepath.Ext(name)) {
	case ".nt", ".ntriples":
		return rdf.NTriples, nil
	case ".ttl", ".turtle":
		return rdf.Turtle, nil
	case ".rdf", ".xml", ".owl":
		return rdf.RDFXML, nil
	default:
		return rdf.NTriples, fmt.Errorf("cannot detect format of %s; use --format nt|ttl|rdf", path)
	}
}

func parseFormat(name string) (rdf.Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nt", "ntriples", "n-triples":
		return rdf.NTriples, nil
	case "ttl", "turtle":
		return rdf.Turtle, nil
	case "rdf", "rdfxml", "rdf/xml", "xml":
		return rdf.RDFXML, nil
	default:
		return rdf.NTriples, fmt.Errorf("unknown format %q (want nt, ttl or rdf)", name)
	}
}

// importExitCode separates configuration mistakes from parse and database
// failures for scripting.
func importExitCode(err error) int {
	var strict *vocab.ShortenStrictError
	if errors.As(err, &strict) {
		return ExitConfig
	}
	var mismatch *storage.TypeMismatchError
	if errors.As(err, &mismatch) {
		return ExitDatabase
	}
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, context.Canceled):
		return ExitGeneral
	case strings.Contains(err.Error(), "ingest "):
		return ExitDatabase
	default:
		return ExitParse
	}
}

func printImportSummary(summary importSummary, globals GlobalFlags) {
	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitGeneral)
		}
		return
	}
	if globals.Quiet {
		return
	}
	fmt.Printf("Import %s finished in %.1fs\n", summary.RunID, summary.Duration)
	fmt.Printf("  triples seen:     %d\n", summary.TriplesSeen)
	fmt.Printf("  triples skipped:  %d\n", summary.TriplesSkipped)
	fmt.Printf("  subjects:         %d\n", summary.SubjectsClosed)
	fmt.Printf("  node flushes:     %d\n", summary.NodeFlushes)
	fmt.Printf("  rel flushes:      %d\n", summary.RelFlushes)
}
