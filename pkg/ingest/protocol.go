// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package ingest

import (
	"os"
	"path/filepath"

	"github.com/kraklabs/rdfsink/pkg/graph"
)

// Request is a request sent from a Client to the ingest daemon.
type Request struct {
	Op     string `json:"op"`
	ID     string `json:"id"`
	Triple string `json:"triple,omitempty"`
}

// Response is a response sent from the ingest daemon to a Client.
type Response struct {
	OK    bool         `json:"ok"`
	ID    string       `json:"id"`
	Error string       `json:"error,omitempty"`
	Stats *graph.Stats `json:"stats,omitempty"`
}

// Ingest protocol operation constants. Add carries one N-Triples line;
// the triple lands in the shared store's buffers. Commit flushes them.
const (
	OpAdd      = "add"
	OpCommit   = "commit"
	OpStats    = "stats"
	OpPing     = "ping"
	OpShutdown = "shutdown"
)

// DefaultSocketPath returns the default Unix socket path for the ingest
// daemon.
func DefaultSocketPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/rdfsink.sock"
	}
	return filepath.Join(home, ".rdfsink", "ingest.sock")
}

// DefaultPIDPath returns the default PID file path for the ingest daemon.
func DefaultPIDPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/rdfsink.pid"
	}
	return filepath.Join(home, ".rdfsink", "daemon.pid")
}

// DefaultLogPath returns the default log file path for the ingest daemon.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/rdfsink.log"
	}
	return filepath.Join(home, ".rdfsink", "daemon.log")
}
