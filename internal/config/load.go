package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file values.
const (
	EnvBackendURL     = "AITALK_BACKEND_URL"
	EnvVoices         = "AITALK_VOICES"
	EnvHTTPAddr       = "AITALK_HTTP_ADDR"
	EnvCaptureBackend = "AITALK_CAPTURE_BACKEND"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
	EnvFiles []string
}

// Load resolves, reads, parses, applies environment overrides, and validates the runtime configuration.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath, Config: Default()}

	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		cfg, _, err := Parse(string(content), loaded.Config)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
		loaded.Config = cfg
		loaded.Exists = true
	}

	envFiles, err := loadDotEnv(filepath.Dir(resolvedPath))
	if err != nil {
		return Loaded{}, err
	}
	loaded.EnvFiles = envFiles

	overridden := applyEnv(&loaded.Config)
	warnings, err := Validate(loaded.Config)
	if err != nil {
		if overridden {
			return Loaded{}, fmt.Errorf("environment override: %w", err)
		}
		return Loaded{}, err
	}
	loaded.Warnings = append(loaded.Warnings, warnings...)

	return loaded, nil
}

// loadDotEnv loads .env from the config dir and then the working directory.
// Real environment variables always win.
func loadDotEnv(configDir string) ([]string, error) {
	candidates := []string{filepath.Join(configDir, ".env")}
	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, ".env")
		if local != candidates[0] {
			candidates = append(candidates, local)
		}
	}

	loaded := make([]string, 0, len(candidates))
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load env file %q: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// applyEnv overlays AITALK_* variables and reports whether any were set.
func applyEnv(cfg *Config) bool {
	applied := false
	if v, ok := lookupEnv(EnvBackendURL); ok {
		cfg.Backend.URL = v
		applied = true
	}
	if v, ok := lookupEnv(EnvVoices); ok {
		cfg.Voices = splitList(v)
		applied = true
	}
	if v, ok := lookupEnv(EnvHTTPAddr); ok {
		cfg.HTTP.Addr = v
		cfg.HTTP.Enable = true
		applied = true
	}
	if v, ok := lookupEnv(EnvCaptureBackend); ok {
		cfg.Capture.Backend = strings.ToLower(v)
		applied = true
	}
	return applied
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
