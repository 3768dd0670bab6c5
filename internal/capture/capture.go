// Package capture owns the microphone recording lifecycle and its backing files.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyRecording indicates Start was called while a session is active.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrDeviceUnavailable indicates the recorder could not be started.
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
	// ErrNotRecording indicates Stop was called without an active session.
	ErrNotRecording = errors.New("not recording")
	// ErrNoData indicates the finished recording is missing or empty.
	ErrNoData = errors.New("recording produced no audio data")
)

// SessionState tracks one recording session.
type SessionState string

const (
	SessionIdle      SessionState = "idle"
	SessionRecording SessionState = "recording"
	SessionStopped   SessionState = "stopped"
)

// Format describes the container a recorder writes.
type Format struct {
	MimeType  string
	Extension string
}

// Session is one recording and the file that backs it.
type Session struct {
	ID        string
	FilePath  string
	MimeType  string
	StartedAt time.Time
	StoppedAt time.Time
	State     SessionState
}

// Recording is an active recorder handle.
type Recording interface {
	// Stop finalizes the output file. It is safe to call more than once.
	Stop() error
}

// Recorder writes microphone audio to a file until stopped.
type Recorder interface {
	Format() Format
	// Start begins writing to path. ctx bounds startup only.
	Start(ctx context.Context, path string) (Recording, error)
}

// Controller allows at most one active recording at a time.
type Controller struct {
	recorder Recorder
	dir      string
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	session   Session
	recording Recording
}

// NewController builds a controller writing recordings under dir.
func NewController(recorder Recorder, dir string, logger *slog.Logger) *Controller {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Controller{
		recorder: recorder,
		dir:      dir,
		logger:   logger,
		now:      time.Now,
		session:  Session{State: SessionIdle},
	}
}

// Recording reports whether a session is active.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording != nil
}

// Start opens a new recording backed by a fresh file.
func (c *Controller) Start(ctx context.Context) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording != nil {
		return Session{}, ErrAlreadyRecording
	}
	if c.recorder == nil {
		return Session{}, fmt.Errorf("%w: no recorder configured", ErrDeviceUnavailable)
	}

	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return Session{}, fmt.Errorf("create recording dir: %w", err)
	}

	format := c.recorder.Format()
	id := uuid.NewString()
	path := filepath.Join(c.dir, fmt.Sprintf("rec-%s.%s", id, format.Extension))

	rec, err := c.recorder.Start(ctx, path)
	if err != nil {
		_ = removeIfExists(path)
		return Session{}, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	c.recording = rec
	c.session = Session{
		ID:        id,
		FilePath:  path,
		MimeType:  format.MimeType,
		StartedAt: c.now(),
		State:     SessionRecording,
	}
	c.logDebug("recording started", "session_id", id, "path", path)
	return c.session, nil
}

// Stop finalizes the active recording. A recorder stop failure is logged and the
// session is still finalized; the result depends only on the file left behind.
func (c *Controller) Stop() (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording == nil {
		return Session{}, ErrNotRecording
	}

	stopErr := c.recording.Stop()
	c.recording = nil

	session := c.session
	session.StoppedAt = c.now()
	session.State = SessionStopped
	c.session = Session{State: SessionIdle}

	if stopErr != nil && c.logger != nil {
		c.logger.Warn("recorder stop failed", "session_id", session.ID, "error", stopErr.Error())
	}

	info, err := os.Stat(session.FilePath)
	if err != nil || info.Size() == 0 {
		_ = removeIfExists(session.FilePath)
		if stopErr != nil {
			return session, fmt.Errorf("%w: %v", ErrNoData, stopErr)
		}
		return session, ErrNoData
	}

	c.logDebug("recording stopped",
		"session_id", session.ID,
		"bytes", info.Size(),
		"duration_ms", session.StoppedAt.Sub(session.StartedAt).Milliseconds(),
	)
	return session, nil
}

// Discard removes the session's backing file. Missing files are not an error.
func (c *Controller) Discard(session Session) error {
	if session.FilePath == "" {
		return nil
	}
	if err := removeIfExists(session.FilePath); err != nil {
		return fmt.Errorf("discard recording: %w", err)
	}
	return nil
}

func (c *Controller) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
