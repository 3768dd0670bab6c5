package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/empathyphone/aitalk/internal/audio"
	"github.com/empathyphone/aitalk/internal/backend"
	"github.com/empathyphone/aitalk/internal/capture"
	"github.com/empathyphone/aitalk/internal/config"
	"github.com/empathyphone/aitalk/internal/fsm"
	"github.com/empathyphone/aitalk/internal/httpapi"
	"github.com/empathyphone/aitalk/internal/indicator"
	"github.com/empathyphone/aitalk/internal/ipc"
	"github.com/empathyphone/aitalk/internal/playback"
	"github.com/empathyphone/aitalk/internal/session"
	"github.com/empathyphone/aitalk/internal/state"
)

const (
	acquirePingTimeout = 180 * time.Millisecond
	acquireRetries      = 8
)

// owner is the in-process session stack: capture, backend, playback, and indicator
// wired around one session controller.
type owner struct {
	logger   *slog.Logger
	ctl      *session.Controller
	capture  *capture.Controller
	playback *playback.Controller
	notifier *indicator.Notifier
	client   *backend.Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
	errs   chan error
}

func newOwner(cfg config.Config, logger *slog.Logger) *owner {
	cacheDir := config.ResolveCacheDir(cfg)

	o := &owner{logger: logger, errs: make(chan error, 2)}
	o.client = backend.NewClient(backend.ConfigFrom(cfg.Backend), logger)
	o.notifier = indicator.NewNotifier(cfg.Indicator, logger)
	o.capture = capture.NewController(newRecorder(cfg.Capture, logger), filepath.Join(cacheDir, "recordings"), logger)
	o.playback = playback.NewController(newPlaybackDevice(cfg.Playback), filepath.Join(cacheDir, "replies"), logger, o.playbackFinished)
	o.ctl = session.NewController(logger, o.capture, o.client, o.playback, o.notifier, state.NewStore(), session.Options{
		Voices:         cfg.Voices,
		Language:       cfg.Text.Language,
		SystemPrompt:   cfg.Text.SystemPrompt,
		KeepRecordings: cfg.Debug.KeepRecordings,
	})
	return o
}

func (o *owner) playbackFinished(finished playback.Finished) {
	o.ctl.PlaybackFinished(finished)
}

func newRecorder(cfg config.CaptureConfig, logger *slog.Logger) capture.Recorder {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "pulse") {
		return audio.NewPulseRecorder(cfg.Input, cfg.Fallback, cfg.SampleRate, logger)
	}

	opts := audio.FFmpegOptions{
		InputFormat: cfg.InputFormat,
		Input:       cfg.Input,
		SampleRate:  cfg.SampleRate,
		BitrateKbps: cfg.BitrateKbps,
	}
	if argv := cfg.FFmpeg.Argv; len(argv) > 0 {
		opts.Command = argv[0]
		opts.ExtraArgs = argv[1:]
	}
	return audio.NewFFmpegRecorder(opts)
}

func newPlaybackDevice(cfg config.PlaybackConfig) playback.Device {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "pulse":
		return audio.PulsePlayer{}
	case "command":
		return audio.NewCommandPlayer(cfg.Command.Argv)
	default:
		return audio.NewAutoPlayer(cfg.Command.Argv)
	}
}

// start launches the job worker and the IPC server on listener.
func (o *owner) start(ctx context.Context, listener net.Listener) {
	ctx, o.cancel = context.WithCancel(ctx)

	o.wg.Add(2)
	go func() {
		defer o.wg.Done()
		o.ctl.Run(ctx)
	}()
	go func() {
		defer o.wg.Done()
		if err := ipc.Serve(ctx, listener, o.ctl); err != nil {
			o.errs <- fmt.Errorf("ipc server: %w", err)
		}
	}()
}

// serveHTTP adds the HTTP API to a started owner.
func (o *owner) serveHTTP(ctx context.Context, cfg config.HTTPConfig) {
	router := httpapi.NewRouter(o.ctl, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		BackendHealth:  o.client.Health,
		Logger:         o.logger,
	})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := httpapi.Serve(ctx, cfg.Addr, router, o.logger); err != nil {
			o.errs <- fmt.Errorf("http server: %w", err)
		}
	}()
}

// shutdown stops servers and the worker, then releases playback and pending cues.
// A request already on the wire runs to completion first.
func (o *owner) shutdown() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.playback.Stop()
	o.notifier.Wait()
}

func acquireSocket(ctx context.Context, socketPath string, logger *slog.Logger) (net.Listener, error) {
	return ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{
		PingTimeout: acquirePingTimeout,
		Retries:      acquireRetries,
		OnStale: func(path string) {
			logger.Warn("removed stale owner socket", "socket", path)
		},
	})
}

func releaseSocket(listener net.Listener, socketPath string) {
	_ = listener.Close()
	_ = os.Remove(socketPath)
}

func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := acquireSocket(ctx, socketPath, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer releaseSocket(listener, socketPath)

	o := newOwner(cfg, logger)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.start(runCtx, listener)
	if cfg.HTTP.Enable {
		o.serveHTTP(runCtx, cfg.HTTP)
	}
	logger.Info("owner serving", "socket", socketPath, "http", cfg.HTTP.Enable, "http_addr", cfg.HTTP.Addr)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-o.errs:
	}

	_ = o.ctl.Cancel(context.Background())
	cancel()
	o.shutdown()
	logger.Info("owner stopped")

	if serveErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", serveErr)
		return 1
	}
	return 0
}

// runOneShot owns the socket for one request: it starts req locally, lets later CLI
// invocations reach it (stop, cancel, status), and exits once the session is idle
// and playback has ended.
func (r Runner) runOneShot(ctx context.Context, socketPath string, req ipc.Request, cfg config.Config, logger *slog.Logger) int {
	listener, err := acquireSocket(ctx, socketPath, logger)
	if errors.Is(err, ipc.ErrAlreadyRunning) {
		resp, forwardErr := ipc.Forward(ctx, socketPath, req, forwardTimeout)
		return r.printForwarded(resp, forwardErr)
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer releaseSocket(listener, socketPath)

	o := newOwner(cfg, logger)
	updates, unsubscribe := o.ctl.Store().Subscribe()
	defer unsubscribe()

	o.start(ctx, listener)
	defer o.shutdown()

	resp := o.ctl.Handle(ctx, req)
	if !resp.OK {
		fmt.Fprintf(r.Stderr, "error: %s\n", resp.Error)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}

	if err := awaitIdle(ctx, o.ctl, updates); err != nil {
		_ = o.ctl.Cancel(context.Background())
		o.playback.Stop()
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	o.ctl.Wait()
	o.playback.Wait()

	return r.reportOutcome(o.ctl.Snapshot())
}

// awaitIdle blocks until the session returns to idle or ctx ends.
func awaitIdle(ctx context.Context, ctl *session.Controller, updates <-chan state.Snapshot) error {
	for {
		if ctl.State() == fsm.StateIdle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-updates:
		}
	}
}

func (r Runner) reportOutcome(snap state.Snapshot) int {
	if snap.Reply != nil && strings.TrimSpace(snap.Reply.Text) != "" {
		fmt.Fprintln(r.Stdout, strings.TrimSpace(snap.Reply.Text))
	}
	if snap.Notice == nil || snap.Notice.Kind != state.NoticeError {
		return 0
	}
	if snap.Notice.Message == session.NoticeCancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	fmt.Fprintf(r.Stderr, "error: %s\n", snap.Notice.Message)
	return 1
}
