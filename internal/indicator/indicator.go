// Package indicator handles visual state notifications and audio cue playback.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/empathyphone/aitalk/internal/config"
	"github.com/empathyphone/aitalk/internal/state"
)

// Controller is the session-facing indicator contract.
type Controller interface {
	ShowRecording(context.Context)
	ShowProcessing(context.Context)
	ShowNotice(context.Context, state.Notice)
	CueStop(context.Context)
	CueComplete(context.Context)
	Hide(context.Context)
}

// Notifier routes indicator output to desktop DBus notifications or Hyprland,
// based on the configured backend.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	cue      func(context.Context, cueKind) error

	mu                    sync.Mutex
	desktopNotificationID uint32
	soundMu               sync.Mutex
	cues                  sync.WaitGroup
}

// NewNotifier creates an indicator controller from config.
func NewNotifier(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
		cue:      emitCue,
	}
}

// style is how one indicator state is rendered on either backend.
type style struct {
	icon      int
	timeoutMS int
	color     string
	urgency   byte
}

var (
	styleRecording  = style{icon: 1, timeoutMS: 300000, color: "rgb(89b4fa)", urgency: urgencyNormal}
	styleProcessing = style{icon: 1, timeoutMS: 300000, color: "rgb(cba6f7)", urgency: urgencyNormal}
	styleInfo       = style{icon: 1, timeoutMS: 3000, color: "rgb(a6e3a1)", urgency: urgencyNormal}
	styleError      = style{icon: 3, timeoutMS: 1200, color: "rgb(f38ba8)", urgency: urgencyCritical}
)

// ShowRecording signals recording start and emits the start cue.
func (n *Notifier) ShowRecording(ctx context.Context) {
	n.playCue(cueStart)
	n.show(ctx, styleRecording, n.messages.recording)
}

// ShowProcessing signals that a request is in flight.
func (n *Notifier) ShowProcessing(ctx context.Context) {
	n.show(ctx, styleProcessing, n.messages.processing)
}

// ShowNotice displays a user-visible notice. Error notices also emit the error cue.
func (n *Notifier) ShowNotice(ctx context.Context, notice state.Notice) {
	text := strings.TrimSpace(notice.Message)
	if notice.Kind != state.NoticeError {
		if text != "" {
			n.show(ctx, styleInfo, text)
		}
		return
	}

	n.playCue(cueError)
	if text == "" {
		text = n.messages.errorText
	}
	s := styleError
	if n.cfg.ErrorTimeoutMS > 0 {
		s.timeoutMS = n.cfg.ErrorTimeoutMS
	}
	n.show(ctx, s, text)
}

// CueStop emits the stop cue.
func (n *Notifier) CueStop(context.Context) {
	n.playCue(cueStop)
}

// CueComplete emits the reply-ready cue.
func (n *Notifier) CueComplete(context.Context) {
	n.playCue(cueComplete)
}

// Hide dismisses the active indicator surface.
func (n *Notifier) Hide(ctx context.Context) {
	n.run(ctx, n.dismiss)
}

// Wait blocks until queued cues have finished.
func (n *Notifier) Wait() {
	n.cues.Wait()
}

func (n *Notifier) visual() bool {
	return n.cfg.Enable && n.backend() != "none"
}

func (n *Notifier) backend() string {
	return strings.ToLower(strings.TrimSpace(n.cfg.Backend))
}

func (n *Notifier) show(ctx context.Context, s style, text string) {
	n.run(ctx, func(ctx context.Context) error {
		if n.backend() == "hypr" {
			return sendHypr(ctx, s.icon, s.timeoutMS, s.color, text)
		}
		return n.showDesktop(ctx, s, text)
	})
}

func (n *Notifier) dismiss(ctx context.Context) error {
	if n.backend() == "hypr" {
		return clearHypr(ctx)
	}

	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return closeDesktop(ctx, id)
}

// showDesktop replaces the previous desktop notification so only one is visible.
func (n *Notifier) showDesktop(ctx context.Context, s style, text string) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	id, err := sendDesktop(ctx, desktopNote{
		appName:   n.cfg.DesktopAppName,
		replaceID: replaceID,
		summary:   text,
		urgency:   s.urgency,
		timeoutMS: s.timeoutMS,
	})
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

// run executes a visual indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	if !n.visual() {
		return
	}
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable || n.cue == nil {
		return
	}
	n.cues.Add(1)
	go func() {
		defer n.cues.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := n.cue(ctx, kind); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}

// Noop satisfies Controller without producing output.
type Noop struct{}

func (Noop) ShowRecording(context.Context)            {}
func (Noop) ShowProcessing(context.Context)           {}
func (Noop) ShowNotice(context.Context, state.Notice) {}
func (Noop) CueStop(context.Context)                  {}
func (Noop) CueComplete(context.Context)              {}
func (Noop) Hide(context.Context)                     {}
