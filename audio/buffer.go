// Package audio synthesizes the chat notification sound: either the plain
// decoded asset at a configured volume, or the asset run through a fixed
// degradation pipeline that simulates a radio transmission, preceded by a
// short static burst. Playback goes through a Sink capability so the chain
// stays testable without a real audio backend.
package audio

import (
	"context"
	"log/slog"
	"time"
)

// Buffer is mono PCM in the -1..1 range.
type Buffer struct {
	SampleRate int
	Samples    []float64
}

// Duration returns the buffer length as wall time.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Sink receives rendered audio. Implementations must be safe for concurrent
// use; overlapping Play calls from the chain are expected.
type Sink interface {
	Play(ctx context.Context, buf Buffer) error
}

// LogSink is the default sink: it logs playback commands and discards the
// samples. The host page owns the actual audio output.
type LogSink struct{}

func (LogSink) Play(_ context.Context, buf Buffer) error {
	slog.Debug("audio playback", slog.Duration("duration", buf.Duration()), slog.Int("sample_rate", buf.SampleRate))
	return nil
}
