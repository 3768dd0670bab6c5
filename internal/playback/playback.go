// Package playback owns the single audio output used for backend replies.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrDevice indicates the output device failed while playing.
	ErrDevice = errors.New("audio output device failed")
	// ErrEmptyAudio indicates Play was given no bytes.
	ErrEmptyAudio = errors.New("no audio to play")
)

// Device plays one audio file, blocking until it finishes or ctx is cancelled.
type Device interface {
	Play(ctx context.Context, path string, format string) error
}

// Outcome describes how one playback ended.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeFailed     Outcome = "failed"
	OutcomeSuperseded Outcome = "superseded"
	OutcomeStopped    Outcome = "stopped"
)

// Finished is reported once per started playback.
type Finished struct {
	ID      string
	Path    string
	Format  string
	Outcome Outcome
	Err     error
}

type run struct {
	id     string
	path   string
	format string
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	reason Outcome
}

func (r *run) interrupt(reason Outcome) {
	r.mu.Lock()
	if r.reason == "" {
		r.reason = reason
	}
	r.mu.Unlock()
	r.cancel()
}

func (r *run) interruptedBy() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason
}

// Controller plays at most one reply at a time. A new Play releases the previous one.
type Controller struct {
	device   Device
	dir      string
	logger   *slog.Logger
	onFinish func(Finished)

	playMu sync.Mutex
	mu     sync.Mutex
	active *run
}

// NewController builds a playback controller caching reply files under dir.
func NewController(device Device, dir string, logger *slog.Logger, onFinish func(Finished)) *Controller {
	if dir == "" {
		dir = os.TempDir()
	}
	if onFinish == nil {
		onFinish = func(Finished) {}
	}
	return &Controller{
		device:   device,
		dir:      dir,
		logger:   logger,
		onFinish: onFinish,
	}
}

// Play writes audio to a cache file and starts it on the device asynchronously.
// Errors returned here are synchronous setup failures; device failures arrive
// through the finish callback wrapped in ErrDevice.
func (c *Controller) Play(audio []byte, format string) error {
	if len(audio) == 0 {
		return ErrEmptyAudio
	}
	if c.device == nil {
		return fmt.Errorf("%w: no output device configured", ErrDevice)
	}

	c.playMu.Lock()
	defer c.playMu.Unlock()

	format = sanitizeFormat(format)
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return fmt.Errorf("create playback dir: %w", err)
	}

	id := uuid.NewString()
	path := filepath.Join(c.dir, fmt.Sprintf("reply-%s.%s", id, format))
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		return fmt.Errorf("write reply audio: %w", err)
	}

	c.release(OutcomeSuperseded)

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{id: id, path: path, format: format, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.active = r
	c.mu.Unlock()

	go c.play(ctx, r)
	return nil
}

// Stop interrupts the active playback, if any, and waits for it to end.
func (c *Controller) Stop() {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	c.release(OutcomeStopped)
}

// Wait blocks until no playback is active.
func (c *Controller) Wait() {
	for {
		c.mu.Lock()
		r := c.active
		c.mu.Unlock()
		if r == nil {
			return
		}
		<-r.done
	}
}

// Active reports whether a playback is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// release interrupts the active run and waits for it. Callers hold playMu.
func (c *Controller) release(reason Outcome) {
	c.mu.Lock()
	prev := c.active
	c.mu.Unlock()
	if prev == nil {
		return
	}
	prev.interrupt(reason)
	<-prev.done
}

func (c *Controller) play(ctx context.Context, r *run) {
	defer r.cancel()

	err := c.device.Play(ctx, r.path, r.format)

	finished := Finished{ID: r.id, Path: r.path, Format: r.format}
	switch reason := r.interruptedBy(); {
	case reason != "":
		finished.Outcome = reason
		_ = removeIfExists(r.path)
	case err != nil:
		finished.Outcome = OutcomeFailed
		finished.Err = fmt.Errorf("%w: %w", ErrDevice, err)
		c.logWarn("playback failed", "playback_id", r.id, "path", r.path, "error", err.Error())
	default:
		finished.Outcome = OutcomeCompleted
		_ = removeIfExists(r.path)
	}

	c.logDebug("playback finished", "playback_id", r.id, "outcome", string(finished.Outcome))
	// Report before clearing active so Wait observes the callback's effects.
	c.onFinish(finished)

	c.mu.Lock()
	if c.active == r {
		c.active = nil
	}
	c.mu.Unlock()
	close(r.done)
}

// sanitizeFormat keeps the cache file extension to a short alphanumeric token.
func sanitizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	var b strings.Builder
	for _, r := range format {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 || b.Len() > 8 {
		return "mp3"
	}
	return b.String()
}

func (c *Controller) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Controller) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
