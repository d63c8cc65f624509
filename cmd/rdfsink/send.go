// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/rdfsink/pkg/ingest"
)

func runSend(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	socketPath := fs.String("socket", ingest.DefaultSocketPath(), "Daemon socket")
	noCommit := fs.Bool("no-commit", false, "Leave rows buffered in the daemon instead of committing")
	noStart := fs.Bool("no-start", false, "Fail when the daemon is not running instead of starting it")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rdfsink send [options] [file]...

Description:
  Streams N-Triples lines to the ingest daemon, one statement per line.
  Reads stdin when no file (or -) is given. Blank lines and # comments
  are skipped. The daemon is started on demand unless --no-start is set.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  rdfsink send fresh.nt
  generate-triples | rdfsink send
  rdfsink send --no-commit part1.nt part2.nt

`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	var client *ingest.Client
	var err error
	if *noStart {
		client, err = ingest.Dial(*socketPath)
		if err == nil {
			err = client.Ping()
		}
	} else {
		client, err = connectOrStartDaemon(configPath, *socketPath, globals)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	defer client.Close()

	sources := fs.Args()
	if len(sources) == 0 {
		sources = []string{"-"}
	}

	total := 0
	for _, src := range sources {
		n, err := sendSource(client, src)
		total += n
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(sendExitCode(err))
		}
	}

	if !*noCommit {
		if err := client.Commit(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitDatabase)
		}
	}
	if !globals.Quiet {
		fmt.Printf("Sent %d triples\n", total)
		if *noCommit {
			fmt.Println("Rows remain buffered; rdfsink serve status shows the counts")
		}
	}
}

// sendSource streams one file (or stdin for "-") line by line. It returns
// how many statements were accepted before any error.
func sendSource(client *ingest.Client, path string) (int, error) {
	var reader io.Reader
	name := path
	if path == "-" {
		reader = os.Stdin
		name = "stdin"
	} else {
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		reader = f
		if strings.HasSuffix(path, ".gz") {
			gz, err := gzip.NewReader(f)
			if err != nil {
				return 0, fmt.Errorf("decompress %s: %w", path, err)
			}
			defer gz.Close()
			reader = gz
		}
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)
	count := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := client.Add(line); err != nil {
			return count, fmt.Errorf("%s line %d: %w", name, lineNo, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("read %s: %w", name, err)
	}
	return count, nil
}

// sendExitCode classifies daemon-reported failures. The error text is all
// that crosses the socket, so this matches on it.
func sendExitCode(err error) int {
	if strings.Contains(err.Error(), "parse triple") {
		return ExitParse
	}
	return ExitDatabase
}
