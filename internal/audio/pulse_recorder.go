package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/empathyphone/aitalk/internal/capture"
)

const (
	defaultSampleRate = 16000
	fragmentBytes     = 640 // 20ms @ 16kHz mono s16
)

// PulseRecorder records a Pulse source and writes FLAC when stopped.
type PulseRecorder struct {
	input      string
	fallback   string
	sampleRate int
	logger     *slog.Logger
}

// NewPulseRecorder resolves input/fallback against live sources on every Start.
func NewPulseRecorder(input string, fallback string, sampleRate int, logger *slog.Logger) *PulseRecorder {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	return &PulseRecorder{input: input, fallback: fallback, sampleRate: sampleRate, logger: logger}
}

// Format reports the FLAC container.
func (r *PulseRecorder) Format() capture.Format {
	return capture.Format{MimeType: "audio/flac", Extension: "flac"}
}

// Start opens a mono s16 record stream on the selected source.
func (r *PulseRecorder) Start(ctx context.Context, path string) (capture.Recording, error) {
	selection, err := SelectDevice(ctx, r.input, r.fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" && r.logger != nil {
		r.logger.Warn("audio device fallback", "warning", selection.Warning)
	}

	stream, err := startPCMStream(selection.Device, r.sampleRate)
	if err != nil {
		return nil, err
	}
	if r.logger != nil {
		r.logger.Debug("pulse capture started", "device", selection.Device.ID)
	}
	return &pulseRecording{stream: stream, path: path, sampleRate: r.sampleRate}, nil
}

type pulseRecording struct {
	stream     *pcmStream
	path       string
	sampleRate int

	once sync.Once
	err  error
}

// Stop halts capture and encodes the buffered PCM into the session file.
func (r *pulseRecording) Stop() error {
	r.once.Do(func() {
		r.stream.Stop()
		pcm := r.stream.PCM()
		if len(pcm) < 2 {
			return
		}
		r.err = writeFLACFile(r.path, pcm, r.sampleRate)
	})
	return r.err
}

func writeFLACFile(path string, pcm []byte, sampleRate int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("create flac file: %w", err)
	}
	encodeErr := encodeFLAC(f, pcm, sampleRate)
	// The encoder may already have closed f.
	if closeErr := f.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && encodeErr == nil {
		encodeErr = closeErr
	}
	return encodeErr
}

// pcmStream accumulates raw PCM from one Pulse record stream.
type pcmStream struct {
	client *pulse.Client
	stream *pulse.RecordStream

	mu      sync.Mutex
	pcm     []byte
	stopped bool
	bytes   atomic.Int64
}

func startPCMStream(selected Device, sampleRate int) (*pcmStream, error) {
	client, err := newPulseClient("audio-input-microphone")
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	s := &pcmStream{client: client}
	writer := pulse.NewWriter(writerFunc(s.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(fragmentBytes),
		pulse.RecordMediaName("aitalk recording"),
	)
	if err != nil {
		s.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	s.stream = stream
	stream.Start()
	return s, nil
}

// PCM returns a copy of all captured bytes.
func (s *pcmStream) PCM() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.pcm...)
}

// BytesCaptured reports total bytes accepted from Pulse.
func (s *pcmStream) BytesCaptured() int64 {
	return s.bytes.Load()
}

// Stop halts the stream once. Callbacks after Stop are refused with io.EOF.
func (s *pcmStream) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
	}
	if s.client != nil {
		s.client.Close()
	}
}

func (s *pcmStream) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0, io.EOF
	}
	s.pcm = append(s.pcm, buffer...)
	s.bytes.Add(int64(len(buffer)))
	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
