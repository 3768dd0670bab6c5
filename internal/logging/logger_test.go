package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLogPathUsesXDGStateHome(t *testing.T) {
	xdgStateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("HOME", t.TempDir())

	path, err := resolveLogPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdgStateHome, "aitalk", "log.jsonl"), path)
}

func TestResolveLogPathFallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", home)

	path, err := resolveLogPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "state", "aitalk", "log.jsonl"), path)
}

func TestNewCreatesWritableJSONLogFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	runtime, err := New(nil)
	require.NoError(t, err)

	runtime.Logger.Info("unit-test-log", "component", "logging")
	require.NoError(t, runtime.Close())

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"msg":"unit-test-log"`)
	require.Contains(t, string(contents), `"component":"logging"`)
	require.Contains(t, string(contents), `"app":"aitalk"`)

	stat, err := os.Stat(runtime.Path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), stat.Mode().Perm())
}

func TestSetLevelFiltersAndMirrors(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	var mirror bytes.Buffer
	runtime, err := New(&mirror)
	require.NoError(t, err)

	runtime.Logger.Debug("hidden")
	runtime.SetLevel(slog.LevelDebug)
	runtime.Logger.Debug("visible")

	require.NotContains(t, mirror.String(), "hidden")
	require.Contains(t, mirror.String(), "msg=visible")
	require.Contains(t, mirror.String(), "app=aitalk")
	require.NoError(t, runtime.Close())

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"msg":"visible"`)
	require.NotContains(t, string(contents), "hidden")
}

func TestNewRotatesOversizedLog(t *testing.T) {
	stateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateHome)
	path := filepath.Join(stateHome, "aitalk", "log.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), maxLogBytes), 0o600))

	runtime, err := New(nil)
	require.NoError(t, err)
	runtime.Logger.Info("fresh")
	require.NoError(t, runtime.Close())

	rotated, err := os.Stat(path + ".1")
	require.NoError(t, err)
	require.EqualValues(t, maxLogBytes, rotated.Size())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"msg":"fresh"`)
	require.NotContains(t, string(contents), "xxx")
}
