package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type jsoncConfig struct {
	Backend   *jsoncBackend    `json:"backend"`
	Voices    *jsoncStringList `json:"voices"`
	Text      *jsoncText       `json:"text"`
	Capture   *jsoncCapture    `json:"capture"`
	Playback  *jsoncPlayback   `json:"playback"`
	Indicator *jsoncIndicator  `json:"indicator"`
	HTTP      *jsoncHTTP       `json:"http"`
	CacheDir  *string          `json:"cache_dir"`
	Debug     *jsoncDebug      `json:"debug"`
}

type jsoncBackend struct {
	URL              *string `json:"url"`
	HealthPath       *string `json:"health_path"`
	ConnectTimeoutMS *int    `json:"connect_timeout_ms"`
	ReadTimeoutMS    *int    `json:"read_timeout_ms"`
	WriteTimeoutMS   *int    `json:"write_timeout_ms"`
	RetryDelayMS     *int    `json:"retry_delay_ms"`
	MaxAttempts      *int    `json:"max_attempts"`
	TextField        *string `json:"text_field"`
}

type jsoncText struct {
	Language     *string `json:"language"`
	SystemPrompt *string `json:"system_prompt"`
}

type jsoncCapture struct {
	Backend     *string `json:"backend"`
	FFmpegCmd   *string `json:"ffmpeg_cmd"`
	InputFormat *string `json:"input_format"`
	Input       *string `json:"input"`
	Fallback    *string `json:"fallback"`
	SampleRate  *int    `json:"sample_rate"`
	BitrateKbps *int    `json:"bitrate_kbps"`
}

type jsoncPlayback struct {
	Backend *string `json:"backend"`
	Command *string `json:"command"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncHTTP struct {
	Enable         *bool            `json:"enable"`
	Addr           *string          `json:"addr"`
	AllowedOrigins *jsoncStringList `json:"allowed_origins"`
}

type jsoncDebug struct {
	KeepRecordings *bool   `json:"keep_recordings"`
	LogLevel       *string `json:"log_level"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = compactList(list)
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = splitList(single)
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

// splitList splits a comma-delimited value and drops blank entries.
func splitList(raw string) []string {
	return compactList(strings.Split(raw, ","))
}

func compactList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	if b := payload.Backend; b != nil {
		setString(&cfg.Backend.URL, b.URL)
		setString(&cfg.Backend.HealthPath, b.HealthPath)
		setInt(&cfg.Backend.ConnectTimeoutMS, b.ConnectTimeoutMS)
		setInt(&cfg.Backend.ReadTimeoutMS, b.ReadTimeoutMS)
		setInt(&cfg.Backend.WriteTimeoutMS, b.WriteTimeoutMS)
		setInt(&cfg.Backend.RetryDelayMS, b.RetryDelayMS)
		setInt(&cfg.Backend.MaxAttempts, b.MaxAttempts)
		setString(&cfg.Backend.TextField, b.TextField)
	}

	if payload.Voices != nil {
		cfg.Voices = append([]string(nil), (*payload.Voices)...)
	}

	if t := payload.Text; t != nil {
		setString(&cfg.Text.Language, t.Language)
		if t.SystemPrompt != nil {
			cfg.Text.SystemPrompt = *t.SystemPrompt
		}
	}

	if c := payload.Capture; c != nil {
		setString(&cfg.Capture.Backend, c.Backend)
		if c.FFmpegCmd != nil {
			command, err := parseCommand("capture.ffmpeg_cmd", *c.FFmpegCmd)
			if err != nil {
				return err
			}
			cfg.Capture.FFmpeg = command
		}
		setString(&cfg.Capture.InputFormat, c.InputFormat)
		setString(&cfg.Capture.Input, c.Input)
		setString(&cfg.Capture.Fallback, c.Fallback)
		setInt(&cfg.Capture.SampleRate, c.SampleRate)
		setInt(&cfg.Capture.BitrateKbps, c.BitrateKbps)
	}

	if p := payload.Playback; p != nil {
		setString(&cfg.Playback.Backend, p.Backend)
		if p.Command != nil {
			command, err := parseCommand("playback.command", *p.Command)
			if err != nil {
				return err
			}
			cfg.Playback.Command = command
		}
	}

	if i := payload.Indicator; i != nil {
		setBool(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.Backend, i.Backend)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setBool(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setInt(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if h := payload.HTTP; h != nil {
		setBool(&cfg.HTTP.Enable, h.Enable)
		setString(&cfg.HTTP.Addr, h.Addr)
		if h.AllowedOrigins != nil {
			cfg.HTTP.AllowedOrigins = append([]string(nil), (*h.AllowedOrigins)...)
		}
	}

	setString(&cfg.CacheDir, payload.CacheDir)

	if d := payload.Debug; d != nil {
		setBool(&cfg.Debug.KeepRecordings, d.KeepRecordings)
		setString(&cfg.Debug.LogLevel, d.LogLevel)
	}

	return nil
}

func parseCommand(key string, raw string) (CommandConfig, error) {
	argv, err := parseArgv(raw)
	if err != nil {
		return CommandConfig{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
