package audio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const (
	flacBlockSize     = 4096
	flacBitsPerSample = 16
)

// encodeFLAC writes mono 16-bit little-endian PCM as a FLAC stream.
func encodeFLAC(w io.Writer, pcm []byte, sampleRate int) error {
	samples := pcm16Samples(pcm)

	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     1,
		BitsPerSample: flacBitsPerSample,
		NSamples:      uint64(len(samples)),
	}
	enc, err := flac.NewEncoder(w, info)
	if err != nil {
		return fmt.Errorf("create flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)

	for start := 0; start < len(samples); start += flacBlockSize {
		end := min(start+flacBlockSize, len(samples))
		if err := writeFLACBlock(enc, samples[start:end], sampleRate); err != nil {
			_ = enc.Close()
			return err
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize flac stream: %w", err)
	}
	return nil
}

func writeFLACBlock(enc *flac.Encoder, block []int32, sampleRate int) error {
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    uint32(sampleRate),
			Channels:      frame.ChannelsMono,
			BitsPerSample: flacBitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   block,
			NSamples:  len(block),
		}},
	}
	if err := enc.WriteFrame(f); err != nil {
		return fmt.Errorf("write flac frame: %w", err)
	}
	return nil
}

func pcm16Samples(pcm []byte) []int32 {
	samples := make([]int32, len(pcm)/2)
	for i := range samples {
		samples[i] = int32(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return samples
}
