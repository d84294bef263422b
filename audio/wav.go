package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// LoadWAV decodes a PCM WAV file into a mono Buffer; multi-channel input
// is downmixed by averaging. This is the loader handed to Chain.Load at
// startup.
func LoadWAV(path string) func(ctx context.Context) (Buffer, error) {
	return func(ctx context.Context) (Buffer, error) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Buffer{}, fmt.Errorf("read wav: %w", err)
		}
		if ctx.Err() != nil {
			return Buffer{}, ctx.Err()
		}
		return DecodeWAV(raw)
	}
}

// DecodeWAV decodes RIFF/WAVE bytes.
func DecodeWAV(raw []byte) (Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(raw))
	if !dec.IsValidFile() {
		return Buffer{}, fmt.Errorf("not a RIFF/WAVE file")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("decode wav: %w", err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 || len(pcm.Data) == 0 {
		return Buffer{}, fmt.Errorf("decode wav: missing fmt or data chunk")
	}

	bits := pcm.SourceBitDepth
	if bits == 0 {
		bits = int(dec.BitDepth)
	}
	var toFloat func(int) float64
	switch {
	case bits == 8:
		// 8-bit WAV samples are unsigned.
		toFloat = func(v int) float64 { return (float64(v) - 128) / 128 }
	case bits > 8 && bits <= 32:
		scale := float64(int64(1) << (bits - 1))
		toFloat = func(v int) float64 { return float64(v) / scale }
	default:
		return Buffer{}, fmt.Errorf("unsupported bit depth %d", bits)
	}

	channels := pcm.Format.NumChannels
	n := len(pcm.Data) / channels
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += toFloat(pcm.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels)
	}
	return Buffer{SampleRate: pcm.Format.SampleRate, Samples: samples}, nil
}
