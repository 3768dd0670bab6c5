// Package config resolves, parses, validates, and defaults aitalk configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by aitalk.
type Config struct {
	Backend   BackendConfig
	Voices    []string
	Text      TextConfig
	Capture   CaptureConfig
	Playback  PlaybackConfig
	Indicator IndicatorConfig
	HTTP      HTTPConfig
	CacheDir  string
	Debug     DebugConfig
}

// BackendConfig controls the talk endpoint, timeouts, and retry policy.
type BackendConfig struct {
	URL              string
	HealthPath       string
	ConnectTimeoutMS int
	ReadTimeoutMS    int
	WriteTimeoutMS   int
	RetryDelayMS     int
	MaxAttempts      int
	TextField        string
}

// ConnectTimeout converts the millisecond field to a duration.
func (b BackendConfig) ConnectTimeout() time.Duration { return ms(b.ConnectTimeoutMS) }

// ReadTimeout converts the millisecond field to a duration.
func (b BackendConfig) ReadTimeout() time.Duration { return ms(b.ReadTimeoutMS) }

// WriteTimeout converts the millisecond field to a duration.
func (b BackendConfig) WriteTimeout() time.Duration { return ms(b.WriteTimeoutMS) }

// RetryDelay converts the millisecond field to a duration.
func (b BackendConfig) RetryDelay() time.Duration { return ms(b.RetryDelayMS) }

// TextConfig holds optional hints sent with text prompts.
type TextConfig struct {
	Language     string
	SystemPrompt string
}

// CaptureConfig selects the recorder and its input source.
type CaptureConfig struct {
	Backend     string
	FFmpeg      CommandConfig
	InputFormat string
	Input       string
	Fallback    string
	SampleRate  int
	BitrateKbps int
}

// PlaybackConfig selects the reply output path.
type PlaybackConfig struct {
	Backend string
	Command CommandConfig
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	ErrorTimeoutMS int
}

// HTTPConfig controls the optional local HTTP API.
type HTTPConfig struct {
	Enable         bool
	Addr           string
	AllowedOrigins []string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls diagnostics.
type DebugConfig struct {
	KeepRecordings bool
	LogLevel       string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
