package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Probe reports whether a daemon answers health checks on socketPath.
func Probe(socketPath string) bool {
	c, err := New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.Ping(ctx) == nil
}

// Ensure starts soukd for the session when nothing answers on socketPath and
// waits for it to become healthy. Startup errors of the daemon go to stderr.
func Ensure(sessionName, socketPath string, timeout time.Duration, stderr io.Writer) error {
	if Probe(socketPath) {
		return nil
	}
	if err := startDaemon(sessionName, stderr); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if Probe(socketPath) {
			return nil
		}
		time.Sleep(300 * time.Millisecond)
	}
	return fmt.Errorf("daemon for session %q did not become ready", sessionName)
}

func startDaemon(sessionName string, stderr io.Writer) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	soukd := filepath.Join(filepath.Dir(executable), "soukd")

	if _, err := os.Stat(soukd); err != nil {
		soukd = "soukd"
	}

	cmd := exec.Command(soukd, "--session", sessionName)
	cmd.Stderr = stderr
	return cmd.Start()
}
