// Package doctor runs runtime readiness diagnostics for config, tools, audio, and the talk backend.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/empathyphone/aitalk/internal/audio"
	"github.com/empathyphone/aitalk/internal/backend"
	"github.com/empathyphone/aitalk/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func pass(name, format string, args ...any) Check {
	return Check{Name: name, Pass: true, Message: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) Check {
	return Check{Name: name, Pass: false, Message: fmt.Sprintf(format, args...)}
}

// Run executes environment, config, and runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{
		checkConfig(loaded),
		checkVoices(cfg.Voices),
		requireEnv("XDG_RUNTIME_DIR", "owner socket directory available", "XDG_RUNTIME_DIR is empty; toggle/send cannot reach a running owner"),
		checkCacheDir(config.ResolveCacheDir(cfg)),
		checkBackend(ctx, cfg),
	}

	if strings.EqualFold(cfg.Capture.Backend, "ffmpeg") {
		checks = append(checks, checkCommand(cfg.Capture.FFmpeg.Argv, "capture.ffmpeg_cmd"))
	}
	checks = append(checks, checkAudioSelection(ctx, cfg))

	if !strings.EqualFold(cfg.Playback.Backend, "pulse") {
		checks = append(checks, checkCommand(cfg.Playback.Command.Argv, "playback.command"))
	}

	if cfg.Indicator.Enable {
		switch strings.ToLower(cfg.Indicator.Backend) {
		case "desktop":
			checks = append(checks, checkBinary("busctl", "desktop notifications"))
		case "hypr":
			checks = append(checks,
				checkBinary("hyprctl", "hypr notifications"),
				requireEnv("HYPRLAND_INSTANCE_SIGNATURE", "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"),
			)
		}
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return pass("config", "%q not found; using defaults", loaded.Path)
	}
	if len(loaded.EnvFiles) > 0 {
		return pass("config", "loaded %q (+ %s)", loaded.Path, strings.Join(loaded.EnvFiles, ", "))
	}
	return pass("config", "loaded %q", loaded.Path)
}

// checkVoices passes with no voices; the backend then picks its own default.
func checkVoices(voices []string) Check {
	if len(voices) == 0 {
		return pass("voices", "none configured; backend default voice applies")
	}
	return pass("voices", "%d configured, default %q", len(voices), voices[0])
}

func requireEnv(name, okMsg, failMsg string) Check {
	if strings.TrimSpace(os.Getenv(name)) == "" {
		return fail(name, "%s", failMsg)
	}
	return pass(name, "%s", okMsg)
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return fail(name, "command is empty")
	}
	return checkBinary(argv[0], name+" command is available")
}

func checkBinary(bin string, purpose string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return fail(bin, "binary not found in PATH: %s", bin)
	}
	return pass(bin, "found at %s (%s)", path, purpose)
}

// checkCacheDir ensures recordings and replies can be written.
func checkCacheDir(dir string) Check {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fail("cache_dir", "%v", err)
	}
	scratch, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fail("cache_dir", "not writable: %v", err)
	}
	_ = scratch.Close()
	_ = os.Remove(scratch.Name())
	return pass("cache_dir", "%s", filepath.Clean(dir))
}

func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Capture.Input, cfg.Capture.Fallback)
	switch {
	case err != nil:
		return fail("audio.device", "%v", err)
	case selection.Warning != "":
		return pass("audio.device", "selected %q (%s)", selection.Device.ID, selection.Warning)
	}
	return pass("audio.device", "selected %q", selection.Device.ID)
}

// checkBackend calls the backend health endpoint with short timeouts.
func checkBackend(ctx context.Context, cfg config.Config) Check {
	bc := backend.ConfigFrom(cfg.Backend)
	bc.ConnectTimeout = 2 * time.Second
	bc.ReadTimeout = 2 * time.Second
	client := backend.NewClient(bc, nil)

	target, err := client.HealthURL()
	if err != nil {
		return fail("backend.health", "%v", err)
	}

	healthCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Health(healthCtx); err != nil {
		return fail("backend.health", "%s: %v", target, err)
	}
	return pass("backend.health", "ready at %s", target)
}
