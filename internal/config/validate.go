package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := validateBackend(cfg.Backend); err != nil {
		return nil, err
	}
	if cfg.Backend.MaxAttempts > 2 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("backend.max_attempts=%d exceeds 2; uploads may be retried more than once", cfg.Backend.MaxAttempts)})
	}

	if len(cfg.Voices) == 0 {
		return nil, fmt.Errorf("voices must list at least one voice")
	}
	seen := make(map[string]struct{}, len(cfg.Voices))
	for _, voice := range cfg.Voices {
		if strings.TrimSpace(voice) == "" {
			return nil, fmt.Errorf("voices must not contain blank entries")
		}
		if _, dup := seen[voice]; dup {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("voice %q listed more than once", voice)})
		}
		seen[voice] = struct{}{}
	}

	switch strings.ToLower(cfg.Capture.Backend) {
	case "ffmpeg":
		if len(cfg.Capture.FFmpeg.Argv) == 0 {
			return nil, fmt.Errorf("capture.ffmpeg_cmd must not be empty when capture.backend=ffmpeg")
		}
		if cfg.Capture.BitrateKbps <= 0 {
			return nil, fmt.Errorf("capture.bitrate_kbps must be > 0")
		}
	case "pulse":
	default:
		return nil, fmt.Errorf("capture.backend must be one of: ffmpeg, pulse")
	}
	if cfg.Capture.SampleRate <= 0 {
		return nil, fmt.Errorf("capture.sample_rate must be > 0")
	}
	if cfg.Capture.SampleRate != 16000 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("capture.sample_rate=%d differs from the 16000 Hz the backend expects", cfg.Capture.SampleRate)})
	}

	switch strings.ToLower(cfg.Playback.Backend) {
	case "auto", "pulse":
	case "command":
		if len(cfg.Playback.Command.Argv) == 0 {
			return nil, fmt.Errorf("playback.command must not be empty when playback.backend=command")
		}
	default:
		return nil, fmt.Errorf("playback.backend must be one of: auto, pulse, command")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	switch backend {
	case "desktop":
		if strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
			return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
		}
	case "hypr", "none":
	case "":
		return nil, fmt.Errorf("indicator.backend must not be empty")
	default:
		return nil, fmt.Errorf("indicator.backend must be one of: desktop, hypr, none")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if cfg.HTTP.Enable {
		if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
			return nil, fmt.Errorf("http.addr %q is invalid: %w", cfg.HTTP.Addr, err)
		}
	}

	if _, err := ParseLogLevel(cfg.Debug.LogLevel); err != nil {
		return nil, err
	}

	return warnings, nil
}

func validateBackend(b BackendConfig) error {
	u, err := url.Parse(strings.TrimSpace(b.URL))
	if err != nil {
		return fmt.Errorf("backend.url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.url must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("backend.url must include a host")
	}
	if !strings.HasPrefix(strings.TrimSpace(b.HealthPath), "/") {
		return fmt.Errorf("backend.health_path must start with '/'")
	}
	if b.ConnectTimeoutMS <= 0 || b.ReadTimeoutMS <= 0 || b.WriteTimeoutMS <= 0 {
		return fmt.Errorf("backend timeouts must be > 0")
	}
	if b.RetryDelayMS < 0 {
		return fmt.Errorf("backend.retry_delay_ms must be >= 0")
	}
	if b.MaxAttempts < 1 {
		return fmt.Errorf("backend.max_attempts must be >= 1")
	}
	if b.TextField != "text" && b.TextField != "prompt" {
		return fmt.Errorf("backend.text_field must be one of: text, prompt")
	}
	return nil
}

// ParseLogLevel maps debug.log_level to a slog level.
func ParseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("debug.log_level must be one of: debug, info, warn, error")
	}
}
