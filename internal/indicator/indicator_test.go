package indicator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/empathyphone/aitalk/internal/config"
	"github.com/empathyphone/aitalk/internal/state"
	"github.com/stretchr/testify/require"
)

func TestHyprBackendDispatchSequence(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installStub(t, "hyprctl", `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	cfg := config.Default().Indicator
	cfg.Backend = "hypr"
	cfg.SoundEnable = false
	cfg.ErrorTimeoutMS = 1600

	notifier := NewNotifier(cfg, nil)
	notifier.messages = indicatorMessages(localeEnglish)
	ctx := context.Background()
	notifier.ShowRecording(ctx)
	notifier.ShowProcessing(ctx)
	notifier.ShowNotice(ctx, state.Notice{Kind: state.NoticeError, Message: "Backend unreachable"})
	notifier.Hide(ctx)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, []string{
		"--quiet dispatch notify 1 300000 rgb(89b4fa) Recording…",
		"--quiet dispatch notify 1 300000 rgb(cba6f7) Thinking…",
		"--quiet dispatch notify 3 1600 rgb(f38ba8) Backend unreachable",
		"--quiet dispatch dismissnotify",
	}, lines)
}

func TestErrorNoticeDefaultsTextAndTimeout(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installStub(t, "hyprctl", `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	cfg := config.Default().Indicator
	cfg.Backend = "hypr"
	cfg.SoundEnable = false
	cfg.ErrorTimeoutMS = 0

	notifier := NewNotifier(cfg, nil)
	notifier.messages = indicatorMessages(localeEnglish)
	notifier.ShowNotice(context.Background(), state.Notice{Kind: state.NoticeError})

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "--quiet dispatch notify 3 1200 rgb(f38ba8) Talk request failed\n", string(data))
}

func TestDesktopBackendReplacesAndDismissesNotification(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installStub(t, "busctl", `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
if [[ "$*" == *" Notify "* ]]; then
  echo "u 42"
fi
`)

	cfg := config.Default().Indicator
	cfg.SoundEnable = false

	notifier := NewNotifier(cfg, nil)
	notifier.ShowRecording(context.Background())
	notifier.ShowProcessing(context.Background())
	notifier.Hide(context.Background())
	notifier.Hide(context.Background())

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "Notify susssasa{sv}i aitalk 0 ")
	require.Contains(t, lines[1], "Notify susssasa{sv}i aitalk 42 ")
	require.Contains(t, lines[2], "CloseNotification u 42")
}

func TestDesktopErrorNoticeIsCritical(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installStub(t, "busctl", `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
echo "u 7"
`)

	cfg := config.Default().Indicator
	cfg.SoundEnable = false
	cfg.ErrorTimeoutMS = 2500

	notifier := NewNotifier(cfg, nil)
	notifier.ShowNotice(context.Background(), state.Notice{Kind: state.NoticeInfo, Message: "Hi!"})
	notifier.ShowNotice(context.Background(), state.Notice{Kind: state.NoticeError, Message: "Playback failed"})

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasSuffix(lines[0], "Hi!  0 1 urgency y 1 3000"), lines[0])
	require.True(t, strings.HasSuffix(lines[1], "Playback failed  0 1 urgency y 2 2500"), lines[1])
	require.Contains(t, lines[1], "aitalk 7 ")
}

func TestDisabledOrNoneBackendSkipsDispatch(t *testing.T) {
	for _, mutate := range []func(*config.IndicatorConfig){
		func(c *config.IndicatorConfig) { c.Enable = false },
		func(c *config.IndicatorConfig) { c.Backend = "none" },
	} {
		argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
		t.Setenv("HYPR_ARGS_FILE", argsFile)
		installStub(t, "hyprctl", `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

		cfg := config.Default().Indicator
		cfg.Backend = "hypr"
		cfg.SoundEnable = false
		mutate(&cfg)

		notifier := NewNotifier(cfg, nil)
		notifier.ShowRecording(context.Background())
		notifier.ShowProcessing(context.Background())
		notifier.ShowNotice(context.Background(), state.Notice{Kind: state.NoticeError, Message: "ignored"})
		notifier.Hide(context.Background())

		_, err := os.Stat(argsFile)
		require.True(t, os.IsNotExist(err))
	}
}

func TestCuesFollowNotices(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.Backend = "none"

	var (
		mu    sync.Mutex
		kinds []cueKind
	)
	notifier := NewNotifier(cfg, nil)
	notifier.cue = func(_ context.Context, kind cueKind) error {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, kind)
		return nil
	}

	ctx := context.Background()
	notifier.ShowRecording(ctx)
	notifier.Wait()
	notifier.CueStop(ctx)
	notifier.Wait()
	notifier.ShowNotice(ctx, state.Notice{Kind: state.NoticeInfo, Message: "saved"})
	notifier.ShowNotice(ctx, state.Notice{Kind: state.NoticeError, Message: "Playback failed"})
	notifier.Wait()
	notifier.CueComplete(ctx)
	notifier.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []cueKind{cueStart, cueStop, cueError, cueComplete}, kinds)
}

func TestSoundDisabledSkipsCues(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.Backend = "none"
	cfg.SoundEnable = false

	called := false
	notifier := NewNotifier(cfg, nil)
	notifier.cue = func(context.Context, cueKind) error {
		called = true
		return nil
	}
	notifier.ShowRecording(context.Background())
	notifier.CueComplete(context.Background())
	notifier.Wait()
	require.False(t, called)
}

func installStub(t *testing.T, name string, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
