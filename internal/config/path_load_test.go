package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearAITalkEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvBackendURL, EnvVoices, EnvHTTPAddr, EnvCaptureBackend} {
		if prev, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { _ = os.Setenv(key, prev) })
		} else {
			t.Cleanup(func() { _ = os.Unsetenv(key) })
		}
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.jsonc"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "aitalk", "config.jsonc"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "aitalk", "config.jsonc"), resolved)
}

func TestResolvePathExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	resolved, err := ResolvePath("~/talk.jsonc")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "talk.jsonc"), resolved)

	resolved, err = ResolvePath("~other/talk.jsonc")
	require.NoError(t, err)
	require.Equal(t, "~other/talk.jsonc", resolved)
}

func TestResolveCacheDir(t *testing.T) {
	cfg := Default()
	cfg.CacheDir = "/var/tmp/aitalk"
	require.Equal(t, "/var/tmp/aitalk", ResolveCacheDir(cfg))

	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)
	require.Equal(t, filepath.Join(cache, "aitalk"), ResolveCacheDir(Default()))

	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg.CacheDir = "~/talk-cache"
	require.Equal(t, filepath.Join(home, "talk-cache"), ResolveCacheDir(cfg))
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	clearAITalkEnv(t)
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingJSONCParsesAndValidates(t *testing.T) {
	clearAITalkEnv(t)
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `
{
  "backend": {
    "url": "http://192.168.1.20:8000/talk",
  },
  "voices": "Kim, Rachel",
  "debug": {"keep_recordings": true}
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, path, loaded.Path)
	require.Equal(t, "http://192.168.1.20:8000/talk", loaded.Config.Backend.URL)
	require.Equal(t, []string{"Kim", "Rachel"}, loaded.Config.Voices)
	require.True(t, loaded.Config.Debug.KeepRecordings)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	clearAITalkEnv(t)
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"backend":{"url":"http://10.0.0.1:8000/talk"}}`), 0o600))

	t.Setenv(EnvBackendURL, "http://10.0.0.2:8000/talk")
	t.Setenv(EnvVoices, "Adam,Bella")
	t.Setenv(EnvHTTPAddr, "127.0.0.1:9090")
	t.Setenv(EnvCaptureBackend, "PULSE")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://10.0.0.2:8000/talk", loaded.Config.Backend.URL)
	require.Equal(t, []string{"Adam", "Bella"}, loaded.Config.Voices)
	require.True(t, loaded.Config.HTTP.Enable)
	require.Equal(t, "127.0.0.1:9090", loaded.Config.HTTP.Addr)
	require.Equal(t, "pulse", loaded.Config.Capture.Backend)
}

func TestLoadDotEnvFromConfigDir(t *testing.T) {
	clearAITalkEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AITALK_BACKEND_URL=http://10.1.1.1:8000/talk\n"), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://10.1.1.1:8000/talk", loaded.Config.Backend.URL)
	require.Contains(t, loaded.EnvFiles, filepath.Join(dir, ".env"))
}

func TestLoadDotEnvDoesNotOverrideRealEnv(t *testing.T) {
	clearAITalkEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AITALK_BACKEND_URL=http://10.1.1.1:8000/talk\n"), 0o600))
	t.Setenv(EnvBackendURL, "http://10.9.9.9:8000/talk")

	loaded, err := Load(filepath.Join(dir, "config.jsonc"))
	require.NoError(t, err)
	require.Equal(t, "http://10.9.9.9:8000/talk", loaded.Config.Backend.URL)
}

func TestLoadInvalidEnvironmentOverride(t *testing.T) {
	clearAITalkEnv(t)
	t.Setenv(EnvCaptureBackend, "alsa")

	_, err := Load(filepath.Join(t.TempDir(), "config.jsonc"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "environment override")
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	clearAITalkEnv(t)
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}
