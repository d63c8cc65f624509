// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/rdfsink/pkg/storage"
)

func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration")
	interview := fs.Bool("interview", false, "Prompt for connection details")
	skipVerify := fs.Bool("skip-verify", false, "Do not test the Neo4j connection")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rdfsink init [options]

Description:
  Creates .rdfsink/config.yaml in the current directory. With --interview
  the connection details are prompted for; otherwise defaults are written
  and the standard NEO4J_* environment variables fill in credentials.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  rdfsink init
  rdfsink init --interview
  rdfsink init --force

`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	path := ConfigPath(cwd)

	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists. Use --force to overwrite.\n", path)
		os.Exit(ExitConfig)
	}

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	if *interview {
		runInterview(cfg)
	}

	if err := SaveConfig(cfg, path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitConfig)
	}
	if !globals.Quiet {
		fmt.Printf("Wrote %s\n", path)
	}

	if *skipVerify {
		return
	}
	if err := verifyConnection(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not verify Neo4j connection: %v\n", err)
		fmt.Fprintf(os.Stderr, "Check the neo4j section of %s or set NEO4J_URI / NEO4J_USERNAME / NEO4J_PASSWORD.\n", path)
		return
	}
	if !globals.Quiet {
		fmt.Printf("Connected to %s\n", cfg.Neo4j.URI)
	}
}

// runInterview fills the connection settings from stdin. Empty answers keep
// the current value; none/n/a clears it.
func runInterview(cfg *Config) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Neo4j connection")
	fmt.Println()

	if v := prompt(reader, fmt.Sprintf("URI [%s]:", cfg.Neo4j.URI)); v != "" {
		cfg.Neo4j.URI = v
	}
	if v := prompt(reader, fmt.Sprintf("Username [%s]:", cfg.Neo4j.Username)); v != "" {
		if isNone(v) {
			cfg.Neo4j.Username = ""
		} else {
			cfg.Neo4j.Username = v
		}
	}
	if v := prompt(reader, "Password (stored in config, mode 0600):"); v != "" {
		if isNone(v) {
			cfg.Neo4j.Password = ""
		} else {
			cfg.Neo4j.Password = v
		}
	}
	if v := prompt(reader, fmt.Sprintf("Database [%s]:", cfg.Neo4j.Database)); v != "" {
		cfg.Neo4j.Database = v
	}
	if v := prompt(reader, fmt.Sprintf("Batch size [%d]:", cfg.Batching.BatchSize)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Batching.BatchSize = n
		} else {
			fmt.Printf("  keeping %d\n", cfg.Batching.BatchSize)
		}
	}
	fmt.Println()
}

func prompt(reader *bufio.Reader, question string) string {
	fmt.Printf("  %s ", question)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(answer)
}

func isNone(answer string) bool {
	switch strings.ToLower(answer) {
	case "", "none", "n/a", "-":
		return true
	}
	return false
}

// verifyConnection opens and closes a backend against the configured
// target. VerifyConnectivity inside Open is the actual test.
func verifyConnection(cfg *Config) error {
	backend, err := storage.NewNeo4jBackend(storage.Neo4jConfig{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := backend.Open(ctx); err != nil {
		return err
	}
	return backend.Close(ctx)
}
