// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package ingest

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kraklabs/rdfsink/pkg/graph"
	"github.com/kraklabs/rdfsink/pkg/storage"
)

// nullBackend satisfies storage.Backend and counts writes. The daemon
// serializes store access, so the counter only needs a mutex for the
// test goroutine's reads.
type nullBackend struct {
	mu    sync.Mutex
	execs int
}

var _ storage.Backend = &nullBackend{}

func (b *nullBackend) Open(ctx context.Context) error { return nil }

func (b *nullBackend) Query(ctx context.Context, cypher string, params map[string]any) (*storage.QueryResult, error) {
	return &storage.QueryResult{}, nil
}

func (b *nullBackend) Execute(ctx context.Context, cypher string, params map[string]any) error {
	b.mu.Lock()
	b.execs++
	b.mu.Unlock()
	return nil
}

func (b *nullBackend) Close(ctx context.Context) error { return nil }

func (b *nullBackend) executed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.execs
}

// shortSockPath returns a short Unix socket path under /tmp to stay within
// macOS's 104-char sun_path limit. The long paths from t.TempDir() can
// exceed this limit for tests with long names.
func shortSockPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "rdfsink-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

// waitForSocket polls until the Unix socket is connectable.
func waitForSocket(t *testing.T, path string) {
	t.Helper()
	for i := 0; i < 50; i++ {
		conn, err := net.Dial("unix", path)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("socket %s never appeared", path)
}

type testDaemon struct {
	sockPath  string
	backend   *nullBackend
	serveDone chan struct{}
	cancel    context.CancelFunc
}

// startTestDaemon opens a store on a counting backend and serves it.
func startTestDaemon(t *testing.T) *testDaemon {
	t.Helper()

	backend := &nullBackend{}
	store, err := graph.NewStoreWithBackend(backend, graph.Config{Batching: true}, nil)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if err := store.Open(context.Background()); err != nil {
		t.Fatalf("open store: %v", err)
	}

	td := &testDaemon{
		sockPath:  shortSockPath(t),
		backend:   backend,
		serveDone: make(chan struct{}),
	}
	d := NewDaemon(store, td.sockPath, nil)
	ctx, cancel := context.WithCancel(context.Background())
	td.cancel = cancel

	go func() {
		_ = d.Serve(ctx)
		close(td.serveDone)
	}()
	waitForSocket(t, td.sockPath)

	t.Cleanup(func() {
		cancel()
		<-td.serveDone // Wait for Serve to finish before closing the store
		_ = store.Close(context.Background(), false)
	})

	return td
}

func dialTest(t *testing.T, sockPath string) *Client {
	t.Helper()
	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func ntLine(subj, pred, obj string) string {
	return fmt.Sprintf("<%s> <%s> <%s> .", subj, pred, obj)
}

func ntLiteralLine(subj, pred, value string) string {
	return fmt.Sprintf("<%s> <%s> %q .", subj, pred, value)
}

func TestDaemonPing(t *testing.T) {
	td := startTestDaemon(t)
	client := dialTest(t, td.sockPath)
	if err := client.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestDaemonAddCommitStats(t *testing.T) {
	td := startTestDaemon(t)
	client := dialTest(t, td.sockPath)

	lines := []string{
		ntLiteralLine("http://example.org/a", "http://example.org/ns#name", "Alice"),
		ntLine("http://example.org/a", "http://example.org/ns#knows", "http://example.org/b"),
		ntLiteralLine("http://example.org/b", "http://example.org/ns#name", "Bob"),
	}
	for _, line := range lines {
		if err := client.Add(line); err != nil {
			t.Fatalf("add %q: %v", line, err)
		}
	}

	stats, err := client.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TriplesSeen != 3 {
		t.Errorf("TriplesSeen = %d, want 3", stats.TriplesSeen)
	}
	if stats.SubjectsClosed != 1 {
		t.Errorf("SubjectsClosed = %d, want 1", stats.SubjectsClosed)
	}

	if err := client.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	stats, err = client.Stats()
	if err != nil {
		t.Fatalf("stats after commit: %v", err)
	}
	if stats.SubjectsClosed != 2 || stats.BufferedNodeRows != 0 {
		t.Errorf("stats after commit = %+v", stats)
	}
	if td.backend.executed() == 0 {
		t.Error("commit reached no writes")
	}
}

func TestDaemonRejectsBadTriple(t *testing.T) {
	td := startTestDaemon(t)
	client := dialTest(t, td.sockPath)

	err := client.Add("this is not a triple")
	if err == nil {
		t.Fatal("expected error for malformed triple")
	}
	if !strings.Contains(err.Error(), "parse triple") {
		t.Errorf("error = %v, want parse triple failure", err)
	}

	// The connection survives a bad request.
	if err := client.Ping(); err != nil {
		t.Fatalf("ping after error: %v", err)
	}
	if err := client.Add(""); err == nil {
		t.Error("expected error for empty triple")
	}
}

func TestDaemonConcurrentClients(t *testing.T) {
	td := startTestDaemon(t)

	const numClients = 5
	const triplesPerClient = 10
	var wg sync.WaitGroup

	for c := 0; c < numClients; c++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			client, err := Dial(td.sockPath)
			if err != nil {
				t.Errorf("client %d connect: %v", clientID, err)
				return
			}
			defer client.Close()

			for i := 0; i < triplesPerClient; i++ {
				subj := fmt.Sprintf("http://example.org/c%d/i%d", clientID, i)
				if err := client.Add(ntLiteralLine(subj, "http://example.org/ns#name", "x")); err != nil {
					t.Errorf("client %d add %d: %v", clientID, i, err)
					return
				}
			}
		}(c)
	}
	wg.Wait()

	client := dialTest(t, td.sockPath)
	stats, err := client.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if want := numClients * triplesPerClient; stats.TriplesSeen != want {
		t.Errorf("TriplesSeen = %d, want %d", stats.TriplesSeen, want)
	}
}

func TestDaemonShutdownOp(t *testing.T) {
	td := startTestDaemon(t)
	client := dialTest(t, td.sockPath)

	if err := client.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	select {
	case <-td.serveDone:
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop after shutdown op")
	}

	if _, err := os.Stat(td.sockPath); !os.IsNotExist(err) {
		t.Errorf("socket file not cleaned up: %v", err)
	}
}

func TestDaemonGracefulShutdownClosesConnections(t *testing.T) {
	td := startTestDaemon(t)
	client := dialTest(t, td.sockPath)

	if err := client.Ping(); err != nil {
		t.Fatalf("initial ping: %v", err)
	}

	td.cancel()

	// Give the daemon time to close connections
	time.Sleep(200 * time.Millisecond)

	if err := client.Ping(); err == nil {
		t.Error("expected error after daemon shutdown")
	}
}

func TestDaemonStaleSocketCleanup(t *testing.T) {
	sockPath := shortSockPath(t)

	// Create a stale socket file with nobody listening behind it
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("create stale socket: %v", err)
	}
	ln.Close()

	backend := &nullBackend{}
	store, err := graph.NewStoreWithBackend(backend, graph.Config{Batching: true}, nil)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if err := store.Open(context.Background()); err != nil {
		t.Fatalf("open store: %v", err)
	}

	d := NewDaemon(store, sockPath, nil)
	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan struct{})
	go func() {
		_ = d.Serve(ctx)
		close(serveDone)
	}()
	waitForSocket(t, sockPath)
	t.Cleanup(func() {
		cancel()
		<-serveDone
		_ = store.Close(context.Background(), false)
	})

	client := dialTest(t, sockPath)
	if err := client.Ping(); err != nil {
		t.Fatalf("ping after stale cleanup: %v", err)
	}
}

func TestDaemonSocketPermissions(t *testing.T) {
	td := startTestDaemon(t)

	info, err := os.Stat(td.sockPath)
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket permissions: got %04o, want 0600", perm)
	}
}

func TestClientDoubleClose(t *testing.T) {
	td := startTestDaemon(t)
	client, err := Dial(td.sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got: %v", err)
	}
}

func TestClientSendAfterClose(t *testing.T) {
	td := startTestDaemon(t)
	client, err := Dial(td.sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	client.Close()

	if err := client.Ping(); err == nil {
		t.Error("expected error after close")
	} else if !strings.Contains(err.Error(), "closed") {
		t.Errorf("expected 'closed' in error, got: %v", err)
	}
}

func TestParseTripleLine(t *testing.T) {
	triple, err := parseTripleLine(ntLine("http://example.org/a", "http://example.org/ns#knows", "http://example.org/b"))
	if err != nil {
		t.Fatalf("parseTripleLine: %v", err)
	}
	if triple.Subj.String() != "http://example.org/a" {
		t.Errorf("subject = %q", triple.Subj.String())
	}
	if _, err := parseTripleLine("   "); err == nil {
		t.Error("blank line must be rejected")
	}
}
