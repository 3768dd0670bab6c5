package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	ffmpeg := "ffmpeg"
	player := "pw-play --media-role Speech"

	return Config{
		Backend: BackendConfig{
			URL:              "http://127.0.0.1:8000/talk",
			HealthPath:       "/health",
			ConnectTimeoutMS: 10000,
			ReadTimeoutMS:    90000,
			WriteTimeoutMS:   60000,
			RetryDelayMS:     300,
			MaxAttempts:      2,
			TextField:        "text",
		},
		Voices: []string{
			"EXAVITQu4vr4xnSDxMaL",
			"21m00Tcm4TlvDq8ikWAM",
			"pNInz6obpgDQGcFmaJgB",
		},
		Capture: CaptureConfig{
			Backend:     "ffmpeg",
			FFmpeg:      CommandConfig{Raw: ffmpeg, Argv: mustParseArgv(ffmpeg)},
			InputFormat: "pulse",
			Input:       "default",
			Fallback:    "default",
			SampleRate:  16000,
			BitrateKbps: 96,
		},
		Playback: PlaybackConfig{
			Backend: "auto",
			Command: CommandConfig{Raw: player, Argv: mustParseArgv(player)},
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "desktop",
			DesktopAppName: "aitalk",
			SoundEnable:    true,
			ErrorTimeoutMS: 2500,
		},
		HTTP: HTTPConfig{
			Enable:         false,
			Addr:           "127.0.0.1:8765",
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Debug: DebugConfig{LogLevel: "info"},
	}
}
