package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o700))
	return path
}

func TestFFmpegRecorderArgs(t *testing.T) {
	rec := NewFFmpegRecorder(FFmpegOptions{})
	args := rec.Args("/tmp/rec.m4a")

	require.Equal(t, "/tmp/rec.m4a", args[len(args)-1])
	require.Contains(t, args, "aac")
	require.Contains(t, args, "96k")
	require.Contains(t, args, "16000")
	require.Contains(t, args, "pulse")
	require.Equal(t, "audio/mp4", rec.Format().MimeType)
	require.Equal(t, "m4a", rec.Format().Extension)
}

func TestFFmpegRecorderPassesExtraArgs(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "argv.txt")
	script := writeScript(t, "ffmpeg.sh", "#!/bin/sh\nprintf '%s\\n' \"$@\" > \""+argsFile+"\"\nexec sleep 5\n")
	rec := NewFFmpegRecorder(FFmpegOptions{
		Command:      script,
		ExtraArgs:    []string{"-thread_queue_size", "512"},
		StartupGrace: 50 * time.Millisecond,
	})

	args := rec.Args("/tmp/rec.m4a")
	require.Equal(t, []string{"-thread_queue_size", "512", "-nostdin"}, args[:3])

	recording, err := rec.Start(context.Background(), filepath.Join(t.TempDir(), "rec.m4a"))
	require.NoError(t, err)
	require.NoError(t, recording.Stop())

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "-thread_queue_size\n512\n-nostdin\n"), string(data))
}

func TestFFmpegRecorderStartAndStop(t *testing.T) {
	script := writeScript(t, "ffmpeg.sh", "#!/bin/sh\nfor last; do :; done\nprintf 'm4a' > \"$last\"\nexec sleep 5\n")
	rec := NewFFmpegRecorder(FFmpegOptions{Command: script, StartupGrace: 50 * time.Millisecond})

	out := filepath.Join(t.TempDir(), "rec.m4a")
	recording, err := rec.Start(context.Background(), out)
	require.NoError(t, err)

	started := time.Now()
	require.NoError(t, recording.Stop())
	require.Less(t, time.Since(started), 2*time.Second)
	require.NoError(t, recording.Stop())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "m4a", string(data))
}

func TestFFmpegRecorderStartEarlyExit(t *testing.T) {
	script := writeScript(t, "fail.sh", "#!/bin/sh\necho 'no such device' 1>&2\nexit 1\n")
	rec := NewFFmpegRecorder(FFmpegOptions{Command: script, StartupGrace: time.Second})

	_, err := rec.Start(context.Background(), filepath.Join(t.TempDir(), "rec.m4a"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "exited before capture started")
	require.Contains(t, err.Error(), "no such device")
}

func TestFFmpegRecorderMissingBinary(t *testing.T) {
	rec := NewFFmpegRecorder(FFmpegOptions{Command: filepath.Join(t.TempDir(), "missing-ffmpeg")})
	_, err := rec.Start(context.Background(), filepath.Join(t.TempDir(), "rec.m4a"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "start ffmpeg")
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	err := exec.Command("sh", "-c", "exit 1").Run()
	require.Error(t, err)
	require.NoError(t, normalizeStopErr(err))
	require.NoError(t, normalizeStopErr(nil))
	require.Error(t, normalizeStopErr(os.ErrPermission))
}
