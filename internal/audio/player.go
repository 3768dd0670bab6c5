package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/pulse"
)

// PulsePlayer decodes MP3 replies and streams them to the default Pulse sink.
type PulsePlayer struct{}

// Play blocks until the file has drained or ctx is cancelled.
func (PulsePlayer) Play(ctx context.Context, path string, format string) error {
	if !strings.EqualFold(format, "mp3") {
		return fmt.Errorf("pulse player cannot decode %q", format)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open reply audio: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}

	client, err := newPulseClient("audio-speakers")
	if err != nil {
		return err
	}
	defer client.Close()

	stream, err := client.NewPlayback(
		mp3Reader(ctx, decoder),
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(decoder.SampleRate()),
		pulse.PlaybackMediaName("aitalk reply"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play reply stream: %w", err)
	}
	return nil
}

// mp3Reader feeds interleaved 16-bit stereo samples from r until EOF or ctx ends.
func mp3Reader(ctx context.Context, r io.Reader) pulse.Int16Reader {
	var raw []byte
	return pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil {
			return 0, pulse.EndOfData
		}
		if cap(raw) < len(buf)*2 {
			raw = make([]byte, len(buf)*2)
		}
		raw = raw[:len(buf)*2]

		n, err := io.ReadFull(r, raw)
		samples := n / 2
		for i := 0; i < samples; i++ {
			buf[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		if err != nil {
			return samples, pulse.EndOfData
		}
		return samples, nil
	})
}

// CommandPlayer plays any format through an external player such as pw-play.
type CommandPlayer struct {
	Command string
	Args    []string
}

// Play runs the player with path as the last argument.
func (p CommandPlayer) Play(ctx context.Context, path string, _ string) error {
	command := strings.TrimSpace(p.Command)
	if command == "" {
		command = "pw-play"
	}
	args := append(append([]string(nil), p.Args...), path)

	cmd := exec.CommandContext(ctx, command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", command, err, detail)
		}
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}

// player is the shape shared by the concrete players.
type player interface {
	Play(ctx context.Context, path string, format string) error
}

// AutoPlayer streams MP3 through Pulse and hands other formats to Command.
// When Pulse cannot be reached, MP3 also falls back to Command.
type AutoPlayer struct {
	Pulse   player
	Command player
}

// NewCommandPlayer splits a parsed player argv into command and leading arguments.
func NewCommandPlayer(argv []string) CommandPlayer {
	if len(argv) == 0 {
		return CommandPlayer{}
	}
	return CommandPlayer{Command: argv[0], Args: append([]string(nil), argv[1:]...)}
}

// NewAutoPlayer wires the Pulse player and a command fallback.
func NewAutoPlayer(argv []string) AutoPlayer {
	return AutoPlayer{Pulse: PulsePlayer{}, Command: NewCommandPlayer(argv)}
}

func (p AutoPlayer) Play(ctx context.Context, path string, format string) error {
	if strings.EqualFold(format, "mp3") && p.Pulse != nil {
		err := p.Pulse.Play(ctx, path, format)
		if err == nil || ctx.Err() != nil || p.Command == nil || !errors.Is(err, ErrPulseUnavailable) {
			return err
		}
	}
	if p.Command == nil {
		return fmt.Errorf("no player for format %q", format)
	}
	return p.Command.Play(ctx, path, format)
}
