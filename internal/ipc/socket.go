package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning indicates another aitalk owner holds the socket.
var ErrAlreadyRunning = errors.New("aitalk owner already running")

const (
	socketName     = "aitalk.sock"
	acquireBackoff = 25 * time.Millisecond
)

// RuntimeSocketPath returns $XDG_RUNTIME_DIR/aitalk.sock.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, socketName), nil
}

// AcquireOptions tunes how Acquire treats an existing socket file.
type AcquireOptions struct {
	// PingTimeout bounds the status request sent to a possible live owner.
	PingTimeout time.Duration
	// Retries is how many extra bind attempts follow a stale-socket removal.
	Retries int
	// OnStale, when set, is called with the path of each removed stale socket.
	OnStale func(path string)
}

// Acquire binds the owner socket at path. A socket file whose owner no longer
// answers is removed and the bind retried; a live owner yields ErrAlreadyRunning.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return listener, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		if err := clearStale(ctx, path, opts); err != nil {
			return nil, err
		}
		if attempt >= opts.Retries {
			return nil, fmt.Errorf("acquire socket %s: still in use after %d retries", path, opts.Retries)
		}

		wait := time.NewTimer(acquireBackoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			wait.Stop()
			return nil, ctx.Err()
		case <-wait.C:
		}
	}
}

// clearStale removes path unless a responsive owner is behind it. An
// inconclusive ping leaves the file alone.
func clearStale(ctx context.Context, path string, opts AcquireOptions) error {
	alive, err := Ping(ctx, path, opts.PingTimeout)
	switch {
	case alive:
		return ErrAlreadyRunning
	case err != nil:
		return fmt.Errorf("ping existing socket %s: %w", path, err)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	if opts.OnStale != nil {
		opts.OnStale(path)
	}
	return nil
}
