// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"
)

const version = "0.1.0"

// Exit codes returned by the CLI.
const (
	ExitGeneral  = 1
	ExitConfig   = 2
	ExitDatabase = 3
	ExitParse    = 4
)

// GlobalFlags carries flags that apply to every subcommand.
type GlobalFlags struct {
	Quiet   bool
	JSON    bool
	Verbose bool
}

func usage() {
	fmt.Fprintf(os.Stderr, `rdfsink %s - stream RDF triples into a Neo4j property graph

Usage: rdfsink [global options] <command> [options]

Commands:
  init      Create a .rdfsink/config.yaml configuration file
  import    Import RDF files directly into Neo4j
  serve     Manage the shared ingest daemon (start|stop|status|logs)
  send      Stream N-Triples to the ingest daemon
  status    Show configuration, daemon and database status
  watch     Watch a directory and import RDF files as they change
  version   Print the version

Global options:
  --config <path>   Configuration file (default: ./.rdfsink/config.yaml)
  --quiet           Suppress progress output
  --json            Machine-readable output where supported
  --verbose         Debug logging

Run 'rdfsink <command> --help' for command-specific options.

`, version)
}

func main() {
	fs := flag.NewFlagSet("rdfsink", flag.ExitOnError)
	fs.SetInterspersed(false)
	configPath := fs.String("config", "", "Path to configuration file")
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	jsonOut := fs.Bool("json", false, "Machine-readable output where supported")
	verbose := fs.Bool("verbose", false, "Debug logging")
	fs.Usage = usage

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(ExitGeneral)
	}

	globals := GlobalFlags{Quiet: *quiet, JSON: *jsonOut, Verbose: *verbose}
	setupLogging(globals)

	args := fs.Args()
	if len(args) == 0 {
		usage()
		os.Exit(ExitGeneral)
	}

	command, rest := args[0], args[1:]
	switch command {
	case "init":
		runInit(rest, globals)
	case "import":
		runImport(rest, *configPath, globals)
	case "serve":
		runServe(rest, *configPath, globals)
	case "send":
		runSend(rest, *configPath, globals)
	case "status":
		runStatus(rest, *configPath, globals)
	case "watch":
		runWatch(rest, *configPath, globals)
	case "version":
		fmt.Printf("rdfsink %s\n", version)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		usage()
		os.Exit(ExitGeneral)
	}
}

// setupLogging points slog at stderr so stdout stays parseable. Progress
// and data are printed separately; the logger carries diagnostics.
func setupLogging(globals GlobalFlags) {
	level := slog.LevelWarn
	if globals.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
