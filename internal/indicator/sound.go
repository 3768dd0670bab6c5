package indicator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jfreymuth/pulse"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueError
)

const (
	cueSampleRate = 16000
	cueGap        = 22 * time.Millisecond
	// cueRamp caps the fade in/out applied to each tone to avoid clicks.
	cueRamp = 5 * time.Millisecond
)

// tone is one sine segment of a cue.
type tone struct {
	hz   float64
	dur  time.Duration
	gain float64
}

// cueBank holds pre-rendered mono s16 PCM for each cue.
var cueBank = map[cueKind][]int16{
	cueStart:    render(tone{880, 70 * time.Millisecond, 0.18}, tone{1175, 70 * time.Millisecond, 0.18}),
	cueStop:     render(tone{620, 120 * time.Millisecond, 0.18}),
	cueComplete: render(tone{740, 65 * time.Millisecond, 0.18}, tone{988, 90 * time.Millisecond, 0.18}),
	cueError:    render(tone{440, 90 * time.Millisecond, 0.2}, tone{330, 90 * time.Millisecond, 0.2}, tone{220, 140 * time.Millisecond, 0.2}),
}

func cueSamples(kind cueKind) []int16 {
	return cueBank[kind]
}

// emitCue plays kind on the default pulse sink and blocks until it drains.
func emitCue(ctx context.Context, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pcm := cueSamples(kind)
	if len(pcm) == 0 {
		return nil
	}
	return playPCM(ctx, pcm)
}

func playPCM(ctx context.Context, pcm []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("aitalk"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	stream, err := client.NewPlayback(
		pcmSource(ctx, pcm),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("aitalk indicator cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}
	return ctx.Err()
}

// pcmSource feeds pcm to a pulse stream and ends early when ctx is done.
func pcmSource(ctx context.Context, pcm []int16) pulse.Int16Reader {
	rest := pcm
	return func(buf []int16) (int, error) {
		if ctx.Err() != nil || len(rest) == 0 {
			return 0, pulse.EndOfData
		}
		n := copy(buf, rest)
		rest = rest[n:]
		if len(rest) == 0 {
			return n, pulse.EndOfData
		}
		return n, nil
	}
}

// render concatenates tones with a short silence between them.
func render(tones ...tone) []int16 {
	gap := sampleCount(cueGap)
	var pcm []int16
	for i, t := range tones {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, renderTone(t)...)
	}
	return pcm
}

func renderTone(t tone) []int16 {
	n := sampleCount(t.dur)
	if n <= 0 || t.hz <= 0 || t.gain <= 0 {
		return nil
	}

	ramp := min(max(n/10, 1), sampleCount(cueRamp))
	pcm := make([]int16, n)
	for i := range pcm {
		phase := 2 * math.Pi * t.hz * float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(phase) * t.gain * envelope(i, n, ramp) * math.MaxInt16))
	}
	return pcm
}

// envelope is a linear fade over the first and last ramp samples of an n-sample tone.
func envelope(i, n, ramp int) float64 {
	edge := min(i, n-1-i)
	if edge >= ramp {
		return 1
	}
	return float64(edge) / float64(ramp)
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
