package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/empathyphone/aitalk/internal/audio"
	"github.com/empathyphone/aitalk/internal/backend"
	"github.com/empathyphone/aitalk/internal/cli"
	"github.com/empathyphone/aitalk/internal/config"
	"github.com/empathyphone/aitalk/internal/doctor"
	"github.com/empathyphone/aitalk/internal/ipc"
	"github.com/empathyphone/aitalk/internal/logging"
	"github.com/empathyphone/aitalk/internal/version"
)

const (
	binaryName     = "aitalk"
	forwardTimeout = 2 * time.Second
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	var mirror io.Writer
	if parsed.Command == cli.CommandServe {
		mirror = r.Stderr
	}
	logRuntime, err := logging.New(mirror)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	loaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
	if level, err := config.ParseLogLevel(loaded.Config.Debug.LogLevel); err == nil {
		logRuntime.SetLevel(level)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", loaded.Path,
		"env_files", loaded.EnvFiles,
		"log", logRuntime.Path,
	)

	cfg := loaded.Config
	switch parsed.Command {
	case cli.CommandServe:
		return r.commandServe(ctx, cfg, logger)
	case cli.CommandToggle:
		return r.forwardOrOwn(ctx, ipc.Request{Command: ipc.CommandToggle}, cfg, logger)
	case cli.CommandStart:
		return r.forwardOrOwn(ctx, ipc.Request{Command: ipc.CommandStart}, cfg, logger)
	case cli.CommandSend:
		req := ipc.Request{Command: ipc.CommandSend, Text: parsed.Text, Voice: defaultVoice(parsed.Voice, cfg.Voices)}
		return r.forwardOrOwn(ctx, req, cfg, logger)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.CommandCancel)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandVoices:
		return r.commandVoices(ctx, cfg.Voices)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandHealth:
		return r.commandHealth(ctx, cfg, logger)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, loaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// defaultVoice picks the explicit voice, falling back to the first configured one.
func defaultVoice(explicit string, voices []string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	if len(voices) > 0 {
		return voices[0]
	}
	return ""
}

// forwardOrOwn hands req to a running owner. With no owner, this process becomes a
// one-shot owner for the duration of a single request.
func (r Runner) forwardOrOwn(ctx context.Context, req ipc.Request, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, err := ipc.Forward(ctx, socketPath, req, forwardTimeout)
	if errors.Is(err, ipc.ErrNoOwner) {
		return r.runOneShot(ctx, socketPath, req, cfg, logger)
	}
	return r.printForwarded(resp, err)
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, err := ipc.Forward(ctx, socketPath, ipc.Request{Command: command}, forwardTimeout)
	if errors.Is(err, ipc.ErrNoOwner) {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return r.printForwarded(resp, err)
}

func (r Runner) printForwarded(resp ipc.Response, err error) int {
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, err := ipc.Forward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus}, forwardTimeout)
	switch {
	case errors.Is(err, ipc.ErrNoOwner):
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if resp.State == "" {
		resp.State = "idle"
	}
	fmt.Fprintln(r.Stdout, resp.State)
	if resp.Notice != nil && resp.Notice.Message != "" {
		fmt.Fprintf(r.Stdout, "notice: %s (%s)\n", resp.Notice.Message, resp.Notice.Kind)
	}
	return 0
}

func (r Runner) commandVoices(ctx context.Context, configured []string) int {
	voices := configured
	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		resp, err := ipc.Forward(ctx, socketPath, ipc.Request{Command: ipc.CommandVoices}, forwardTimeout)
		switch {
		case err == nil:
			voices = resp.Voices
		case !errors.Is(err, ipc.ErrNoOwner):
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
	}

	for _, voice := range voices {
		fmt.Fprintln(r.Stdout, voice)
	}
	return 0
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}
	return 0
}

func (r Runner) commandHealth(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	client := backend.NewClient(backend.ConfigFrom(cfg.Backend), logger)
	healthURL, err := client.HealthURL()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if err := client.Health(ctx); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(r.Stdout, "backend ok (%s)\n", healthURL)
	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
