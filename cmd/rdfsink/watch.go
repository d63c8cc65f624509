// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/rdfsink/pkg/graph"
)

// watchTick is how often settled files are checked for.
const watchTick = 500 * time.Millisecond

func runWatch(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	debounce := fs.Duration("debounce", 2*time.Second, "Quiet period before a changed file is imported")
	format := fs.String("format", "", "Input format: nt, ttl or rdf (default: by file extension)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rdfsink watch [options] <directory>

Description:
  Watches a directory tree and imports RDF files as they appear or
  change. A file is imported once it has been quiet for the debounce
  period, and skipped when its content hash matches the last import.
  Each file commits on its own, so the graph follows the directory.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  rdfsink watch ./drops
  rdfsink watch --debounce 10s /var/spool/rdf

`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(ExitGeneral)
	}
	root := fs.Arg(0)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "Error: %s is not a directory\n", root)
		os.Exit(ExitGeneral)
	}

	cfg := loadConfigOrDefault(configPath, globals)
	if *format != "" {
		cfg.Import.Format = *format
	}
	storeCfg, err := cfg.StoreConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitConfig)
	}

	logger := slog.Default()
	store, err := graph.NewStoreWithLogger(storeCfg, logger)
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
		logger.Info("signal received, shutting down")
		cancel()
	}()

	if err := store.Open(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitDatabase)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	defer watcher.Close()
	if err := addWatchesRecursive(watcher, root, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}

	if !globals.Quiet {
		fmt.Fprintf(os.Stderr, "Watching %s (debounce %s)\n", root, *debounce)
	}
	watchLoop(ctx, watcher, store, cfg, *debounce, logger, globals)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()
	if err := store.Close(closeCtx, true); err != nil {
		fmt.Fprintf(os.Stderr, "Error: commit on shutdown: %v\n", err)
		os.Exit(ExitDatabase)
	}
}

// watchLoop owns all watch state, so no locking is needed: pending maps a
// path to its last event time, hashes to the content hash last imported.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, store *graph.Store, cfg *Config, debounce time.Duration, logger *slog.Logger, globals GlobalFlags) {
	pending := make(map[string]time.Time)
	hashes := make(map[string]string)
	ticker := time.NewTicker(watchTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					watchNewDirectory(watcher, event.Name, logger)
					continue
				}
			}
			if !isRDFFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(pending, event.Name)
				delete(hashes, event.Name)
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error", "error", err)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < debounce {
					continue
				}
				delete(pending, path)
				importSettledFile(ctx, store, cfg, path, hashes, logger, globals)
			}
		}
	}
}

// importSettledFile imports one quiet file and commits, so each drop is
// visible in the graph before the next one lands.
func importSettledFile(ctx context.Context, store *graph.Store, cfg *Config, path string, hashes map[string]string, logger *slog.Logger, globals GlobalFlags) {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("read changed file", "path", path, "error", err)
		return
	}
	hash := contentHash(content)
	if hashes[path] == hash {
		logger.Debug("content unchanged, skipping", "path", path)
		return
	}

	before := store.Stats().TriplesSeen
	if err := importFile(ctx, store, path, cfg.Import.Format, true); err != nil {
		logger.Warn("import failed", "path", path, "error", err)
		return
	}
	if err := store.Commit(ctx); err != nil {
		logger.Warn("commit failed", "path", path, "error", err)
		return
	}
	hashes[path] = hash
	if !globals.Quiet {
		fmt.Fprintf(os.Stderr, "Imported %s (%d triples)\n", path, store.Stats().TriplesSeen-before)
	}
}

func addWatchesRecursive(watcher *fsnotify.Watcher, root string, logger *slog.Logger) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && path != root {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			logger.Warn("watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func watchNewDirectory(watcher *fsnotify.Watcher, path string, logger *slog.Logger) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	if err := watcher.Add(path); err != nil {
		logger.Warn("watch new directory", "path", path, "error", err)
	}
}

// isRDFFile matches the extensions resolveFormat understands, with .gz
// stripped first.
func isRDFFile(path string) bool {
	name := strings.TrimSuffix(path, ".gz")
	switch strings.ToLower(filepath.Ext(name)) {
	case ".nt", ".ntriples", ".ttl", ".turtle", ".rdf", ".xml", ".owl":
		return true
	}
	return false
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
