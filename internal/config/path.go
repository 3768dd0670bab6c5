package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDir         = "aitalk"
	configFileName = "config.jsonc"
)

// ResolvePath returns the explicit path (with ~ expanded) or config.jsonc under
// $XDG_CONFIG_HOME, falling back to ~/.config.
func ResolvePath(explicit string) (string, error) {
	if path := expandUserPath(explicit); path != "" {
		return path, nil
	}
	dir, ok := xdgDir("XDG_CONFIG_HOME", ".config")
	if !ok {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(dir, configFileName), nil
}

// ResolveCacheDir returns cache_dir when set, else the XDG cache dir, else a
// directory under os.TempDir.
func ResolveCacheDir(cfg Config) string {
	if dir := expandUserPath(cfg.CacheDir); dir != "" {
		return dir
	}
	if dir, ok := xdgDir("XDG_CACHE_HOME", ".cache"); ok {
		return dir
	}
	return filepath.Join(os.TempDir(), appDir)
}

// xdgDir resolves the aitalk directory under an XDG base variable, using
// ~/homeRel when the variable is unset.
func xdgDir(envVar, homeRel string) (string, bool) {
	if base := strings.TrimSpace(os.Getenv(envVar)); base != "" {
		return filepath.Join(base, appDir), true
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(home, homeRel, appDir), true
}

func expandUserPath(raw string) string {
	raw = strings.TrimSpace(raw)
	rest, ok := strings.CutPrefix(raw, "~")
	if !ok || (rest != "" && rest[0] != '/') {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, rest)
}
