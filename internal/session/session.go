// Package session coordinates the talk lifecycle: recording, upload, decode, and playback.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/empathyphone/aitalk/internal/backend"
	"github.com/empathyphone/aitalk/internal/capture"
	"github.com/empathyphone/aitalk/internal/fsm"
	"github.com/empathyphone/aitalk/internal/playback"
	"github.com/empathyphone/aitalk/internal/state"
	"github.com/empathyphone/aitalk/internal/talk"
)

var (
	// ErrBusy indicates a request is already in flight.
	ErrBusy = errors.New("session busy")
	// ErrBlankInput indicates SendText was called without text or voice.
	ErrBlankInput = errors.New("text and voice must not be blank")
)

// Notice texts shown to the user.
const (
	NoticeBackendUnreachable = "Backend unreachable"
	NoticeInvalidReply       = "Invalid reply from backend"
	NoticePlaybackFailed     = "Playback failed"
	NoticeCancelled          = "Request cancelled"
)

// Capture is the recording surface the controller drives.
type Capture interface {
	Start(context.Context) (capture.Session, error)
	Stop() (capture.Session, error)
	Discard(capture.Session) error
	Recording() bool
}

// Sender performs one backend round-trip.
type Sender interface {
	Send(context.Context, talk.Request) (talk.RawResponse, error)
}

// Player starts asynchronous playback of decoded reply audio.
type Player interface {
	Play(audio []byte, format string) error
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowRecording(context.Context)
	ShowProcessing(context.Context)
	ShowNotice(context.Context, state.Notice)
	CueStop(context.Context)
	CueComplete(context.Context)
	Hide(context.Context)
}

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context)            {}
func (noopIndicator) ShowProcessing(context.Context)           {}
func (noopIndicator) ShowNotice(context.Context, state.Notice) {}
func (noopIndicator) CueStop(context.Context)                  {}
func (noopIndicator) CueComplete(context.Context)              {}
func (noopIndicator) Hide(context.Context)                     {}

type noopPlayer struct{}

func (noopPlayer) Play([]byte, string) error { return nil }

// Options carries the per-request settings taken from config.
type Options struct {
	Voices         []string
	Language       string
	SystemPrompt   string
	KeepRecordings bool
}

type job struct {
	request talk.Request
	// recording is set for audio uploads and discarded once the upload attempt ends.
	recording *capture.Session
	queuedAt  time.Time
}

// Controller orchestrates session state transitions and side effects.
// Foreground callers (IPC, HTTP, CLI) invoke StartRecording, StopRecording, SendText, and Toggle;
// the network round-trip runs on the single Run worker.
type Controller struct {
	logger    *slog.Logger
	capture   Capture
	sender    Sender
	player    Player
	indicator Indicator
	store     *state.Store
	opts      Options

	// opMu serializes foreground operations so a state check and its side effect are atomic.
	opMu sync.Mutex

	mu    sync.RWMutex
	phase fsm.State

	jobs     chan job
	inflight pending
}

// pending counts queued and running jobs. Unlike sync.WaitGroup, add may race
// with wait: a send forwarded over IPC can arrive while a caller waits for idle.
type pending struct {
	mu   sync.Mutex
	cond *sync.Cond
	n    int
}

func (p *pending) init() {
	p.cond = sync.NewCond(&p.mu)
}

func (p *pending) add() {
	p.mu.Lock()
	p.n++
	p.mu.Unlock()
}

func (p *pending) done() {
	p.mu.Lock()
	p.n--
	if p.n == 0 {
		p.cond.Broadcast()
	}
	p.mu.Unlock()
}

func (p *pending) wait() {
	p.mu.Lock()
	for p.n > 0 {
		p.cond.Wait()
	}
	p.mu.Unlock()
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(
	logger *slog.Logger,
	capturer Capture,
	sender Sender,
	player Player,
	indicator Indicator,
	store *state.Store,
	opts Options,
) *Controller {
	if player == nil {
		player = noopPlayer{}
	}
	if indicator == nil {
		indicator = noopIndicator{}
	}
	if store == nil {
		store = state.NewStore()
	}

	c := &Controller{
		logger:    logger,
		capture:   capturer,
		sender:    sender,
		player:    player,
		indicator: indicator,
		store:     store,
		opts:      opts,
		phase:     fsm.StateIdle,
		jobs:      make(chan job, 1),
	}
	c.inflight.init()
	return c
}

// State returns the current FSM state.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Snapshot returns the observable session state.
func (c *Controller) Snapshot() state.Snapshot {
	return c.store.Snapshot()
}

// Store exposes the state store for subscribers.
func (c *Controller) Store() *state.Store {
	return c.store
}

// Voices returns the configured voice list in order.
func (c *Controller) Voices() []string {
	return append([]string(nil), c.opts.Voices...)
}

// Toggle maps the presentation record toggle: true starts recording, false stops it.
func (c *Controller) Toggle(ctx context.Context, start bool) error {
	if start {
		return c.StartRecording(ctx)
	}
	return c.StopRecording(ctx)
}

// StartRecording begins capture. On failure the session stays idle and a notice is raised.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	switch phase := c.State(); phase {
	case fsm.StateIdle:
	case fsm.StateRecording:
		return capture.ErrAlreadyRecording
	default:
		return fmt.Errorf("%w: cannot start from state %s", ErrBusy, phase)
	}
	if c.capture == nil {
		err := fmt.Errorf("%w: capture not configured", capture.ErrDeviceUnavailable)
		c.raise(ctx, recordingFailed(err))
		return err
	}

	session, err := c.capture.Start(ctx)
	if err != nil {
		c.logWarn("recording start failed", "error", err.Error())
		c.raise(ctx, recordingFailed(err))
		return err
	}

	if err := c.transition(fsm.EventStart, nil); err != nil {
		_ = c.discardAfterStop(session)
		return err
	}
	c.logInfo("recording started", "session_id", session.ID, "path", session.FilePath)
	c.indicator.ShowRecording(ctx)
	return nil
}

// StopRecording ends capture and queues the upload.
func (c *Controller) StopRecording(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if phase := c.State(); phase != fsm.StateRecording {
		return fmt.Errorf("%w: state is %s", capture.ErrNotRecording, phase)
	}

	session, err := c.capture.Stop()
	c.indicator.CueStop(ctx)
	if err != nil {
		c.logWarn("recording stop failed", "session_id", session.ID, "error", err.Error())
		c.toErrorAndReset(ctx, recordingFailed(err))
		return err
	}

	if err := c.transition(fsm.EventStop, nil); err != nil {
		_ = c.discardAfterStop(session)
		return err
	}
	c.indicator.ShowProcessing(ctx)

	upload := talk.AudioUpload{FilePath: session.FilePath, MimeType: session.MimeType}
	return c.enqueue(ctx, job{request: upload, recording: &session, queuedAt: time.Now()})
}

// Cancel abandons an active recording without uploading it. It is a no-op in any other phase.
func (c *Controller) Cancel(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State() != fsm.StateRecording {
		return nil
	}

	session, err := c.capture.Stop()
	c.indicator.CueStop(ctx)
	if err == nil {
		err = c.discardAfterStop(session)
	}
	c.logInfo("recording cancelled", "session_id", session.ID)
	c.toErrorAndReset(ctx, state.Notice{Kind: state.NoticeError, Message: NoticeCancelled})
	return err
}

// SendText queues a typed prompt. Blank text or voice is rejected without a network call.
func (c *Controller) SendText(ctx context.Context, text string, voice string) error {
	text = strings.TrimSpace(text)
	voice = strings.TrimSpace(voice)
	if text == "" || voice == "" {
		c.logWarn("send ignored: blank input", "text_blank", text == "", "voice_blank", voice == "")
		return ErrBlankInput
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if phase := c.State(); phase != fsm.StateIdle {
		return fmt.Errorf("%w: cannot send from state %s", ErrBusy, phase)
	}
	if !c.knownVoice(voice) {
		c.logWarn("voice not in configured list", "voice", voice)
	}

	if err := c.transition(fsm.EventSend, nil); err != nil {
		return err
	}
	c.indicator.ShowProcessing(ctx)

	prompt := talk.TextPrompt{
		Text:         text,
		Voice:        voice,
		Language:     c.opts.Language,
		SystemPrompt: c.opts.SystemPrompt,
	}
	return c.enqueue(ctx, job{request: prompt, queuedAt: time.Now()})
}

// Run consumes queued jobs until ctx is cancelled. Jobs already started run to completion.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.drain()
			return
		case j := <-c.jobs:
			c.process(context.WithoutCancel(ctx), j)
		}
	}
}

// Wait blocks until no job is queued or in flight.
func (c *Controller) Wait() {
	c.inflight.wait()
}

// PlaybackFinished receives playback completion reports and raises a notice on device failure.
func (c *Controller) PlaybackFinished(finished playback.Finished) {
	if finished.Outcome != playback.OutcomeFailed {
		c.logDebug("playback finished", "playback_id", finished.ID, "outcome", finished.Outcome)
		return
	}
	errText := ""
	if finished.Err != nil {
		errText = finished.Err.Error()
	}
	c.logWarn("playback failed", "playback_id", finished.ID, "path", finished.Path, "error", errText)
	c.raise(context.Background(), state.Notice{Kind: state.NoticeError, Message: NoticePlaybackFailed})
}

// enqueue hands a job to the worker. The caller holds opMu and has moved the FSM to uploading.
func (c *Controller) enqueue(ctx context.Context, j job) error {
	c.inflight.add()
	select {
	case c.jobs <- j:
		return nil
	default:
		c.inflight.done()
		if j.recording != nil {
			_ = c.discardAfterStop(*j.recording)
		}
		c.toErrorAndReset(ctx, state.Notice{Kind: state.NoticeError, Message: "Request dropped: session busy"})
		return ErrBusy
	}
}

// drain abandons a queued job that never started.
func (c *Controller) drain() {
	select {
	case j := <-c.jobs:
		if j.recording != nil {
			_ = c.discardAfterStop(*j.recording)
		}
		c.toErrorAndReset(context.Background(), state.Notice{Kind: state.NoticeError, Message: NoticeCancelled})
		c.inflight.done()
	default:
	}
}

// process runs one upload → decode → playback round-trip. Every exit path returns the
// session to idle with Processing cleared.
func (c *Controller) process(ctx context.Context, j job) {
	defer c.inflight.done()
	defer func() {
		if c.State() != fsm.StateIdle {
			c.toErrorAndReset(ctx, state.Notice{Kind: state.NoticeError, Message: NoticeInvalidReply})
		}
	}()

	raw, err := c.sender.Send(ctx, j.request)
	if j.recording != nil {
		_ = c.discardAfterStop(*j.recording)
	}
	if err != nil {
		c.logError("talk request failed", "kind", j.request.Kind(), "error", err.Error())
		c.toErrorAndReset(ctx, sendFailed(err))
		return
	}

	resp, err := talk.Decode(raw)
	if err != nil {
		c.logError("talk reply rejected",
			"kind", j.request.Kind(),
			"status", raw.StatusCode,
			"attempts", raw.Attempts,
			"latency_ms", raw.Latency.Milliseconds(),
			"error", err.Error(),
		)
		c.toErrorAndReset(ctx, decodeFailed(err))
		return
	}

	if err := c.player.Play(resp.Audio, resp.AudioFormat); err != nil {
		c.logError("playback dispatch failed", "request_id", resp.RequestID, "error", err.Error())
		c.toErrorAndReset(ctx, state.Notice{Kind: state.NoticeError, Message: NoticePlaybackFailed})
		return
	}

	reply := &state.Reply{
		RequestID:   resp.RequestID,
		Text:        resp.ReplyText,
		AudioFormat: resp.AudioFormat,
		AudioBytes:  len(resp.Audio),
		At:          time.Now(),
	}
	if err := c.transition(fsm.EventDone, func(s *state.Snapshot) {
		s.Reply = reply
		s.Notice = nil
	}); err != nil {
		return
	}

	c.logInfo("talk round-trip complete",
		"kind", j.request.Kind(),
		"request_id", resp.RequestID,
		"status", resp.StatusCode,
		"attempts", raw.Attempts,
		"latency_ms", raw.Latency.Milliseconds(),
		"queued_ms", time.Since(j.queuedAt).Milliseconds(),
		"bytes", len(resp.Audio),
		"format", resp.AudioFormat,
	)
	c.indicator.CueComplete(ctx)
	if text := strings.TrimSpace(resp.ReplyText); text != "" {
		c.indicator.ShowNotice(ctx, state.Notice{Kind: state.NoticeInfo, Message: text, At: reply.At})
		return
	}
	c.indicator.Hide(ctx)
}

// transition applies one FSM event and publishes the resulting snapshot.
func (c *Controller) transition(event fsm.Event, mutate func(*state.Snapshot)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.phase, event)
	if err != nil {
		return err
	}
	c.phase = next
	c.store.Update(func(s *state.Snapshot) {
		s.Phase = next
		s.Recording = next == fsm.StateRecording
		s.Processing = next.Processing()
		if mutate != nil {
			mutate(s)
		}
	})
	return nil
}

// toErrorAndReset transitions to error and back to idle, publishing notice on the way.
func (c *Controller) toErrorAndReset(ctx context.Context, notice state.Notice) {
	if notice.At.IsZero() {
		notice.At = time.Now()
	}
	_ = c.transition(fsm.EventFail, nil)
	_ = c.transition(fsm.EventReset, func(s *state.Snapshot) { s.Notice = &notice })
	c.indicator.ShowNotice(ctx, notice)
}

// raise publishes a notice without changing phase.
func (c *Controller) raise(ctx context.Context, notice state.Notice) {
	if notice.At.IsZero() {
		notice.At = time.Now()
	}
	c.store.Update(func(s *state.Snapshot) { s.Notice = &notice })
	c.indicator.ShowNotice(ctx, notice)
}

func (c *Controller) discardAfterStop(session capture.Session) error {
	if c.opts.KeepRecordings || session.FilePath == "" || c.capture == nil {
		return nil
	}
	if err := c.capture.Discard(session); err != nil {
		c.logWarn("discard recording failed", "session_id", session.ID, "error", err.Error())
		return err
	}
	return nil
}

func (c *Controller) knownVoice(voice string) bool {
	if len(c.opts.Voices) == 0 {
		return true
	}
	for _, v := range c.opts.Voices {
		if v == voice {
			return true
		}
	}
	return false
}

func recordingFailed(err error) state.Notice {
	return state.Notice{Kind: state.NoticeError, Message: "Recording failed: " + err.Error()}
}

func sendFailed(err error) state.Notice {
	if errors.Is(err, backend.ErrExhausted) {
		return state.Notice{Kind: state.NoticeError, Message: NoticeBackendUnreachable}
	}
	return state.Notice{Kind: state.NoticeError, Message: "Request failed: " + err.Error()}
}

func decodeFailed(err error) state.Notice {
	var backendErr *talk.BackendError
	if errors.As(err, &backendErr) {
		return state.Notice{Kind: state.NoticeError, Message: fmt.Sprintf("Backend error (HTTP %d)", backendErr.StatusCode)}
	}
	return state.Notice{Kind: state.NoticeError, Message: NoticeInvalidReply}
}

func (c *Controller) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Controller) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Controller) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Controller) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
