// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/rdfsink/pkg/graph"
	"github.com/kraklabs/rdfsink/pkg/ingest"
)

func runServe(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rdfsink serve <subcommand> [options]

Description:
  Manages the ingest daemon, a long-lived process that owns the single
  store instance and serializes triples arriving from rdfsink send.

Subcommands:
  start [--background] [--socket <path>]   Start the daemon
  stop                                      Signal the daemon to stop
  status                                    Show daemon state and counters
  logs [--lines <n>]                        Print the daemon log

`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(ExitGeneral)
	}

	switch fs.Arg(0) {
	case "start":
		runServeStart(fs.Args()[1:], configPath, globals)
	case "stop":
		runServeStop(globals)
	case "status":
		runServeStatus(globals)
	case "logs":
		runServeLogs(fs.Args()[1:], globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown serve subcommand: %s\n\n", fs.Arg(0))
		fs.Usage()
		os.Exit(ExitGeneral)
	}
}

func runServeStart(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve start", flag.ExitOnError)
	background := fs.Bool("background", false, "Detach and run in the background")
	socketPath := fs.String("socket", ingest.DefaultSocketPath(), "Unix socket to listen on")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rdfsink serve start [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *background {
		pid, err := spawnDaemon(configPath, *socketPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitGeneral)
		}
		if !globals.Quiet {
			fmt.Printf("Ingest daemon started (pid %d)\n", pid)
		}
		return
	}
	runServeForeground(configPath, *socketPath, globals)
}

func runServeForeground(configPath, socketPath string, globals GlobalFlags) {
	cfg := loadConfigOrDefault(configPath, globals)
	storeCfg, err := cfg.StoreConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitConfig)
	}

	pidPath := ingest.DefaultPIDPath()
	pidFile, err := acquirePIDFile(pidPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	defer releasePIDFile(pidFile, pidPath)

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

	daemon := ingest.NewDaemon(store, socketPath, logger)
	serveErr := daemon.Serve(ctx)

	// The serve context is already canceled here, so the commit gets its
	// own deadline.
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()
	if err := store.Close(closeCtx, true); err != nil {
		fmt.Fprintf(os.Stderr, "Error: commit on shutdown: %v\n", err)
		os.Exit(ExitDatabase)
	}
	if serveErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", serveErr)
		os.Exit(ExitGeneral)
	}
}

func runServeStop(globals GlobalFlags) {
	pidPath := ingest.DefaultPIDPath()
	data, err := os.ReadFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Daemon is not running")
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid pid file %s\n", pidPath)
		os.Exit(ExitGeneral)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) || strings.Contains(err.Error(), "no such process") {
			os.Remove(pidPath)
			fmt.Println("Daemon was not running; removed stale pid file")
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	if !globals.Quiet {
		fmt.Printf("Sent SIGTERM to daemon (pid %d)\n", pid)
	}
}

type serveStatusResult struct {
	Running bool         `json:"running"`
	Socket  string       `json:"socket"`
	Stats   *graph.Stats `json:"stats,omitempty"`
}

func runServeStatus(globals GlobalFlags) {
	socketPath := ingest.DefaultSocketPath()
	result := serveStatusResult{Socket: socketPath}

	client, err := ingest.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if pingErr := client.Ping(); pingErr == nil {
			result.Running = true
			if stats, statsErr := client.Stats(); statsErr == nil {
				result.Stats = &stats
			}
		}
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitGeneral)
		}
		return
	}
	if !result.Running {
		fmt.Println("Daemon is not running")
		return
	}
	fmt.Printf("Daemon is running on %s\n", result.Socket)
	if result.Stats != nil {
		fmt.Printf("  triples seen:       %d\n", result.Stats.TriplesSeen)
		fmt.Printf("  triples skipped:    %d\n", result.Stats.TriplesSkipped)
		fmt.Printf("  subjects:           %d\n", result.Stats.SubjectsClosed)
		fmt.Printf("  buffered node rows: %d\n", result.Stats.BufferedNodeRows)
		fmt.Printf("  buffered rel rows:  %d\n", result.Stats.BufferedRelRows)
	}
}

func runServeLogs(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve logs", flag.ExitOnError)
	lines := fs.Int("lines", 0, "Only print the last N lines")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rdfsink serve logs [--lines <n>]\n\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	path := ingest.DefaultLogPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("No daemon log at %s\n", path)
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	if *lines > 0 {
		data = tailLines(data, *lines)
	}
	os.Stdout.Write(data)
}

func tailLines(data []byte, n int) []byte {
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	if len(parts) > n {
		parts = parts[len(parts)-n:]
	}
	return []byte(strings.Join(parts, "\n") + "\n")
}

// acquirePIDFile takes an exclusive flock on the pid file so only one
// daemon runs per user. The lock dies with the process even on SIGKILL.
func acquirePIDFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create runtime directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open pid file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("another daemon is already running (pid file %s is locked)", path)
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return f, nil
}

func releasePIDFile(f *os.File, path string) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	f.Close()
	os.Remove(path)
}

// spawnDaemon re-executes the current binary as a detached foreground
// daemon with its output appended to the daemon log.
func spawnDaemon(configPath, socketPath string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locate executable: %w", err)
	}

	args := []string{"serve", "start"}
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	if socketPath != ingest.DefaultSocketPath() {
		args = append(args, "--socket", socketPath)
	}

	logPath := ingest.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return 0, fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, fmt.Errorf("open daemon log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(exe, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon: %w", err)
	}

	// Give it a moment to bind the socket or die on a bad config.
	time.Sleep(500 * time.Millisecond)
	if err := cmd.Process.Signal(syscall.Signal(0)); err != nil {
		return 0, fmt.Errorf("daemon exited immediately; check %s", logPath)
	}
	return cmd.Process.Pid, nil
}

// connectOrStartDaemon dials the daemon and transparently starts one when
// nothing answers.
func connectOrStartDaemon(configPath, socketPath string, globals GlobalFlags) (*ingest.Client, error) {
	client, err := ingest.Dial(socketPath)
	if err == nil {
		if pingErr := client.Ping(); pingErr == nil {
			return client, nil
		}
		client.Close()
	}

	pid, err := spawnDaemon(configPath, socketPath)
	if err != nil {
		return nil, err
	}
	if !globals.Quiet {
		fmt.Fprintf(os.Stderr, "Started ingest daemon (pid %d)\n", pid)
	}

	for _, delay := range []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, time.Second, 2 * time.Second} {
		time.Sleep(delay)
		client, err := ingest.Dial(socketPath)
		if err != nil {
			continue
		}
		if pingErr := client.Ping(); pingErr == nil {
			return client, nil
		}
		client.Close()
	}
	return nil, fmt.Errorf("daemon did not come up on %s; check %s", socketPath, ingest.DefaultLogPath())
}
