// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/kraklabs/rdfsink/pkg/graph"
)

// Client talks to an ingest daemon over its Unix domain socket. Multiple
// producer processes can each hold a Client; the daemon serializes them
// onto the shared store.
type Client struct {
	socketPath string
	conn       net.Conn
	reader     *bufio.Reader
	mu         sync.Mutex
	reqID      atomic.Int64
	closed     bool
}

// Dial connects to the ingest daemon at the given socket path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w", socketPath, err)
	}
	return &Client{
		socketPath: socketPath,
		conn:       conn,
		reader:     bufio.NewReader(conn),
	}, nil
}

// Ping checks that the daemon is alive.
func (c *Client) Ping() error {
	resp, err := c.send(Request{Op: OpPing})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("ping failed: %s", resp.Error)
	}
	return nil
}

// Add sends one N-Triples statement to the daemon.
func (c *Client) Add(tripleLine string) error {
	resp, err := c.send(Request{Op: OpAdd, Triple: tripleLine})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("add failed: %s", resp.Error)
	}
	return nil
}

// Commit flushes everything the daemon's store has buffered.
func (c *Client) Commit() error {
	resp, err := c.send(Request{Op: OpCommit})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("commit failed: %s", resp.Error)
	}
	return nil
}

// Stats fetches the daemon store's ingestion counters.
func (c *Client) Stats() (graph.Stats, error) {
	resp, err := c.send(Request{Op: OpStats})
	if err != nil {
		return graph.Stats{}, err
	}
	if !resp.OK {
		return graph.Stats{}, fmt.Errorf("stats failed: %s", resp.Error)
	}
	if resp.Stats == nil {
		return graph.Stats{}, fmt.Errorf("stats missing from response")
	}
	return *resp.Stats, nil
}

// Shutdown asks the daemon to stop serving. Committing and closing the
// store afterwards is the daemon owner's job.
func (c *Client) Shutdown() error {
	resp, err := c.send(Request{Op: OpShutdown})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("shutdown failed: %s", resp.Error)
	}
	return nil
}

// Close disconnects from the daemon. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// send writes a serialized request to the daemon and reads the response
// line. Thread-safe: a mutex serializes access to the connection.
func (c *Client) send(req Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("ingest client is closed")
	}

	req.ID = fmt.Sprintf("%d", c.reqID.Add(1))

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if _, err := fmt.Fprintf(c.conn, "%s\n", data); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &resp, nil
}
