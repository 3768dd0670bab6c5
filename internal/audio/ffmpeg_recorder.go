package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/empathyphone/aitalk/internal/capture"
)

const (
	defaultStartupGrace = 250 * time.Millisecond
	ffmpegStopTimeout   = 1200 * time.Millisecond
)

// FFmpegOptions configures the ffmpeg AAC recorder.
type FFmpegOptions struct {
	Command     string
	// ExtraArgs are the words after the command in capture.ffmpeg_cmd. They go
	// ahead of the generated input and output arguments.
	ExtraArgs   []string
	InputFormat string
	Input       string
	SampleRate  int
	BitrateKbps int
	// StartupGrace is how long ffmpeg must survive before Start reports success.
	StartupGrace time.Duration
}

// FFmpegRecorder records AAC in an MP4 container by driving an ffmpeg subprocess.
type FFmpegRecorder struct {
	opts FFmpegOptions
}

// NewFFmpegRecorder fills defaults for 16 kHz mono AAC at 96 kbps from the default pulse source.
func NewFFmpegRecorder(opts FFmpegOptions) *FFmpegRecorder {
	if strings.TrimSpace(opts.Command) == "" {
		opts.Command = "ffmpeg"
	}
	if opts.InputFormat == "" {
		opts.InputFormat = "pulse"
	}
	if opts.Input == "" {
		opts.Input = "default"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = defaultSampleRate
	}
	if opts.BitrateKbps <= 0 {
		opts.BitrateKbps = 96
	}
	if opts.StartupGrace <= 0 {
		opts.StartupGrace = defaultStartupGrace
	}
	return &FFmpegRecorder{opts: opts}
}

// Format reports the AAC/MP4 container.
func (r *FFmpegRecorder) Format() capture.Format {
	return capture.Format{MimeType: "audio/mp4", Extension: "m4a"}
}

// Args returns the ffmpeg argument list used to record into path.
func (r *FFmpegRecorder) Args(path string) []string {
	args := append([]string(nil), r.opts.ExtraArgs...)
	return append(args,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-y",
		"-f", r.opts.InputFormat,
		"-i", r.opts.Input,
		"-ac", "1",
		"-ar", strconv.Itoa(r.opts.SampleRate),
		"-c:a", "aac",
		"-b:a", strconv.Itoa(r.opts.BitrateKbps) + "k",
		"-f", "mp4",
		path,
	)
}

// Start launches ffmpeg and waits out the startup grace period. The process is
// not bound to ctx; only the startup wait is.
func (r *FFmpegRecorder) Start(ctx context.Context, path string) (capture.Recording, error) {
	cmd := exec.Command(r.opts.Command, r.Args(path)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	timer := time.NewTimer(r.opts.StartupGrace)
	defer timer.Stop()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, ctx.Err()
	case <-timer.C:
	}

	return &ffmpegRecording{process: cmd.Process, waitErr: waitErr, stderr: &stderr}, nil
}

type ffmpegRecording struct {
	process *os.Process
	waitErr <-chan error
	stderr  *bytes.Buffer

	once sync.Once
	err  error
}

// Stop sends SIGINT so ffmpeg finalizes the container, then kills after a timeout.
func (r *ffmpegRecording) Stop() error {
	r.once.Do(func() {
		_ = r.process.Signal(os.Interrupt)

		timer := time.NewTimer(ffmpegStopTimeout)
		defer timer.Stop()

		select {
		case err, ok := <-r.waitErr:
			if ok {
				r.err = normalizeStopErr(err)
			}
		case <-timer.C:
			_ = r.process.Kill()
			if err, ok := <-r.waitErr; ok {
				r.err = normalizeStopErr(err)
			}
		}

		if r.err != nil && r.stderr.Len() > 0 {
			r.err = fmt.Errorf("%w: %s", r.err, strings.TrimSpace(r.stderr.String()))
		}
	})
	return r.err
}

// normalizeStopErr treats a non-zero exit after an interrupt as a clean stop.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
