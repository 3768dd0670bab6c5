package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty backend url", mutate: func(c *Config) { c.Backend.URL = "" }, wantErr: "backend.url"},
		{name: "non http url", mutate: func(c *Config) { c.Backend.URL = "ftp://host/talk" }, wantErr: "http or https"},
		{name: "bad health path", mutate: func(c *Config) { c.Backend.HealthPath = "health" }, wantErr: "must start"},
		{name: "zero read timeout", mutate: func(c *Config) { c.Backend.ReadTimeoutMS = 0 }, wantErr: "timeouts"},
		{name: "negative retry delay", mutate: func(c *Config) { c.Backend.RetryDelayMS = -1 }, wantErr: "retry_delay_ms"},
		{name: "zero attempts", mutate: func(c *Config) { c.Backend.MaxAttempts = 0 }, wantErr: "max_attempts"},
		{name: "bad text field", mutate: func(c *Config) { c.Backend.TextField = "message" }, wantErr: "text_field"},
		{name: "no voices", mutate: func(c *Config) { c.Voices = nil }, wantErr: "voices"},
		{name: "blank voice", mutate: func(c *Config) { c.Voices = []string{"Kim", " "} }, wantErr: "blank"},
		{name: "unknown capture backend", mutate: func(c *Config) { c.Capture.Backend = "alsa" }, wantErr: "capture.backend"},
		{name: "empty ffmpeg argv", mutate: func(c *Config) { c.Capture.FFmpeg.Argv = nil }, wantErr: "ffmpeg_cmd"},
		{name: "zero sample rate", mutate: func(c *Config) { c.Capture.SampleRate = 0 }, wantErr: "sample_rate"},
		{name: "unknown playback backend", mutate: func(c *Config) { c.Playback.Backend = "alsa" }, wantErr: "playback.backend"},
		{name: "command playback without argv", mutate: func(c *Config) {
			c.Playback.Backend = "command"
			c.Playback.Command = CommandConfig{}
		}, wantErr: "playback.command"},
		{name: "unknown indicator backend", mutate: func(c *Config) { c.Indicator.Backend = "tray" }, wantErr: "indicator.backend"},
		{name: "desktop without app name", mutate: func(c *Config) { c.Indicator.DesktopAppName = "" }, wantErr: "desktop_app_name"},
		{name: "negative error timeout", mutate: func(c *Config) { c.Indicator.ErrorTimeoutMS = -1 }, wantErr: "error_timeout"},
		{name: "bad http addr", mutate: func(c *Config) {
			c.HTTP.Enable = true
			c.HTTP.Addr = "localhost"
		}, wantErr: "http.addr"},
		{name: "bad log level", mutate: func(c *Config) { c.Debug.LogLevel = "trace" }, wantErr: "log_level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.Voices = []string{"Kim", "Kim"}
	cfg.Backend.MaxAttempts = 3
	cfg.Capture.SampleRate = 44100

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 3)
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("DEBUG")
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)

	level, err = ParseLogLevel("")
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, level)

	_, err = ParseLogLevel("verbose")
	require.Error(t, err)
}

func TestBackendDurations(t *testing.T) {
	b := Default().Backend
	require.Equal(t, int64(10000), b.ConnectTimeout().Milliseconds())
	require.Equal(t, int64(90000), b.ReadTimeout().Milliseconds())
	require.Equal(t, int64(60000), b.WriteTimeout().Milliseconds())
	require.Equal(t, int64(300), b.RetryDelay().Milliseconds())
}
