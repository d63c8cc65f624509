// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/knakk/rdf"

	"github.com/kraklabs/rdfsink/pkg/graph"
)

// Daemon serves a single graph.Store over a Unix domain socket, allowing
// multiple producer processes to feed one batched ingestion session. The
// store is single-threaded by contract, so the daemon serializes every
// store operation behind one mutex regardless of how many clients are
// connected.
type Daemon struct {
	store      *graph.Store
	socketPath string
	logger     *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup
	connMu   sync.Mutex
	conns    map[net.Conn]struct{}

	storeMu sync.Mutex

	stopOnce sync.Once
	stop     chan struct{}
}

// NewDaemon creates a daemon serving the given store on a Unix socket.
// The store must already be open. A nil logger falls back to slog.Default.
func NewDaemon(store *graph.Store, socketPath string, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		store:      store,
		socketPath: socketPath,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Stop asks a serving daemon to shut down. Safe to call more than once
// and from any goroutine; the shutdown op uses it.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// Serve starts accepting connections. Blocks until ctx is cancelled or a
// shutdown op arrives. Cleans up the socket file on exit. On shutdown,
// closes all active client connections so handlers unblock promptly. The
// store is left open; closing it is the caller's job.
func (d *Daemon) Serve(ctx context.Context) error {
	// Remove stale socket file
	if err := os.Remove(d.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", d.socketPath, err)
	}

	// Restrict socket to owner-only to prevent local privilege escalation.
	if err := os.Chmod(d.socketPath, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	d.listener = ln
	d.conns = make(map[net.Conn]struct{})

	// Clean up socket file on exit
	defer func() {
		ln.Close()
		os.Remove(d.socketPath)
	}()

	// Close listener and all active connections when the context is
	// cancelled or a shutdown op arrives.
	go func() {
		select {
		case <-ctx.Done():
		case <-d.stop:
		}
		ln.Close()
		d.connMu.Lock()
		for conn := range d.conns {
			conn.Close()
		}
		d.connMu.Unlock()
	}()

	d.logger.Info("ingest daemon listening", "socket", d.socketPath)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if d.stopping(ctx) {
				done := make(chan struct{})
				go func() { d.wg.Wait(); close(done) }()
				select {
				case <-done:
				case <-time.After(5 * time.Second):
					d.logger.Warn("shutdown timeout, abandoning open connections")
				}
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		d.connMu.Lock()
		d.conns[conn] = struct{}{}
		d.connMu.Unlock()

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handleConn(ctx, conn)
			d.connMu.Lock()
			delete(d.conns, conn)
			d.connMu.Unlock()
		}()
	}
}

func (d *Daemon) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-d.stop:
		return true
	default:
		return false
	}
}

// handleConn reads requests from a client connection and writes responses.
// Triples can run long with KEEP-style URIs, so the scanner buffer is
// generous.
func (d *Daemon) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	connID := uuid.NewString()
	d.logger.Debug("client connected", "conn", connID)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			d.writeResponse(conn, Response{OK: false, Error: fmt.Sprintf("invalid request: %v", err)})
			continue
		}

		resp := d.dispatch(ctx, req)
		d.writeResponse(conn, resp)

		if req.Op == OpShutdown {
			d.logger.Info("shutdown requested", "conn", connID)
			d.Stop()
			return
		}
	}

	if err := scanner.Err(); err != nil {
		d.logger.Warn("scanner error", "conn", connID, "error", err)
	}
	d.logger.Debug("client disconnected", "conn", connID)
}

// dispatch handles a single request against the shared store. The store
// mutex makes concurrent clients take turns; within one op the store sees
// a single caller, which its contract requires.
func (d *Daemon) dispatch(ctx context.Context, req Request) Response {
	switch req.Op {
	case OpPing:
		return Response{OK: true, ID: req.ID}

	case OpAdd:
		triple, err := parseTripleLine(req.Triple)
		if err != nil {
			return Response{OK: false, ID: req.ID, Error: err.Error()}
		}
		d.storeMu.Lock()
		err = d.store.Add(ctx, triple)
		d.storeMu.Unlock()
		if err != nil {
			return Response{OK: false, ID: req.ID, Error: err.Error()}
		}
		return Response{OK: true, ID: req.ID}

	case OpCommit:
		d.storeMu.Lock()
		err := d.store.Commit(ctx)
		d.storeMu.Unlock()
		if err != nil {
			return Response{OK: false, ID: req.ID, Error: err.Error()}
		}
		return Response{OK: true, ID: req.ID}

	case OpStats:
		d.storeMu.Lock()
		stats := d.store.Stats()
		d.storeMu.Unlock()
		return Response{OK: true, ID: req.ID, Stats: &stats}

	case OpShutdown:
		return Response{OK: true, ID: req.ID}

	default:
		return Response{OK: false, ID: req.ID, Error: fmt.Sprintf("unknown op: %s", req.Op)}
	}
}

// writeResponse marshals and writes a response to the connection.
func (d *Daemon) writeResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		d.logger.Error("marshal response", "error", err)
		return
	}
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		d.logger.Warn("write response", "error", err)
	}
}

// parseTripleLine decodes one N-Triples statement.
func parseTripleLine(line string) (rdf.Triple, error) {
	if strings.TrimSpace(line) == "" {
		return rdf.Triple{}, fmt.Errorf("empty triple")
	}
	dec := rdf.NewTripleDecoder(strings.NewReader(line), rdf.NTriples)
	triple, err := dec.Decode()
	if err != nil {
		return rdf.Triple{}, fmt.Errorf("parse triple: %w", err)
	}
	return triple, nil
}
