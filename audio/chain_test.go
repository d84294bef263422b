package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/chat-overlay/config"
)

// captureSink collects played buffers and signals each delivery.
type captureSink struct {
	mu     sync.Mutex
	played []Buffer
	notify chan struct{}
}

func newCaptureSink() *captureSink {
	return &captureSink{notify: make(chan struct{}, 8)}
}

func (s *captureSink) Play(_ context.Context, buf Buffer) error {
	s.mu.Lock()
	s.played = append(s.played, buf)
	s.mu.Unlock()
	s.notify <- struct{}{}
	return nil
}

func (s *captureSink) wait(t *testing.T, n int) []Buffer {
	t.Helper()
	for range n {
		select {
		case <-s.notify:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d playbacks", n)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Buffer, len(s.played))
	copy(out, s.played)
	return out
}

func testAudioConfig(effectOn bool) config.AudioConfig {
	return config.AudioConfig{
		Volume: 0.8,
		TopN:   3,
		Effect: config.EffectConfig{
			Enabled:         effectOn,
			PreDelay:        config.Duration(time.Millisecond),
			HighpassHz:      400,
			LowpassHz:       3000,
			PeakHz:          1800,
			PeakGainDB:      6,
			Distortion:      0.4,
			CompThresholdDB: -24,
			CompRatio:       4,
			StaticVolume:    0.1,
			StaticDuration:  config.Duration(50 * time.Millisecond),
		},
	}
}

func testSource() Buffer {
	const rate = 8000
	samples := make([]float64, rate/4)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/rate)
	}
	return Buffer{SampleRate: rate, Samples: samples}
}

func loadedChain(t *testing.T, cfg config.AudioConfig, sink Sink) *Chain {
	t.Helper()
	c := NewChain(cfg, sink)
	c.sleep = func(context.Context, time.Duration) bool { return true }
	src := testSource()
	c.Load(context.Background(), func(context.Context) (Buffer, error) { return src, nil })
	if !c.Ready() {
		t.Fatal("chain not ready after load")
	}
	return c
}

func TestPlayBeforeLoadIsNoop(t *testing.T) {
	sink := newCaptureSink()
	c := NewChain(testAudioConfig(false), sink)
	c.Play(context.Background())
	select {
	case <-sink.notify:
		t.Fatal("playback happened before asset load")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPlayDisabledEffect(t *testing.T) {
	sink := newCaptureSink()
	c := loadedChain(t, testAudioConfig(false), sink)
	c.Play(context.Background())

	played := sink.wait(t, 1)
	if len(played) != 1 {
		t.Fatalf("playbacks = %d, want exactly 1 (no burst, no chain)", len(played))
	}
	src := testSource()
	if len(played[0].Samples) != len(src.Samples) {
		t.Fatalf("sample count = %d, want %d", len(played[0].Samples), len(src.Samples))
	}
	// Single gain stage: output is the source scaled by the volume.
	for i := range src.Samples {
		want := src.Samples[i] * 0.8
		if math.Abs(played[0].Samples[i]-want) > 1e-12 {
			t.Fatalf("sample %d = %v, want %v", i, played[0].Samples[i], want)
		}
	}
}

func TestPlayEnabledEffectEmitsBurstAndDegraded(t *testing.T) {
	sink := newCaptureSink()
	cfg := testAudioConfig(true)
	c := loadedChain(t, cfg, sink)
	c.Play(context.Background())

	played := sink.wait(t, 2)
	if len(played) != 2 {
		t.Fatalf("playbacks = %d, want 2 (static burst + degraded voice)", len(played))
	}
	// The burst is the short one.
	burst, voice := played[0], played[1]
	if len(burst.Samples) > len(voice.Samples) {
		burst, voice = voice, burst
	}
	wantBurst := int(float64(8000) * cfg.Effect.StaticDuration.Std().Seconds())
	if len(burst.Samples) != wantBurst {
		t.Errorf("burst length = %d samples, want %d", len(burst.Samples), wantBurst)
	}
	for i, s := range burst.Samples {
		if math.Abs(s) > cfg.Effect.StaticVolume*1.5 {
			t.Fatalf("burst sample %d = %v exceeds static volume envelope", i, s)
		}
	}
	// The degraded path must stay bounded (soft clip keeps |x| <= 1 before
	// makeup gain).
	for i, s := range voice.Samples {
		if math.Abs(s) > cfg.Volume*makeupGain {
			t.Fatalf("degraded sample %d = %v out of bounds", i, s)
		}
	}
}

func TestOverlappingPlays(t *testing.T) {
	sink := newCaptureSink()
	c := loadedChain(t, testAudioConfig(true), sink)
	c.Play(context.Background())
	c.Play(context.Background())
	if got := len(sink.wait(t, 4)); got != 4 {
		t.Errorf("playbacks = %d, want 4 from two overlapping plays", got)
	}
}

func TestShaperCurveBounded(t *testing.T) {
	for _, amount := range []float64{0, 0.2, 0.7, 1} {
		curve := newShaperCurve(amount)
		for i, y := range curve {
			if y < -1.0001 || y > 1.0001 {
				t.Fatalf("amount %v: curve[%d] = %v out of range", amount, i, y)
			}
		}
		// Monotonic transfer function.
		for i := 1; i < len(curve); i++ {
			if curve[i] < curve[i-1] {
				t.Fatalf("amount %v: curve not monotonic at %d", amount, i)
			}
		}
	}
}

func TestHighpassAttenuatesDC(t *testing.T) {
	samples := make([]float64, 8000)
	for i := range samples {
		samples[i] = 1 // pure DC
	}
	newHighpass(8000, 300, butterworthQ).processBuffer(samples)
	tail := samples[len(samples)-100:]
	for i, s := range tail {
		if math.Abs(s) > 0.01 {
			t.Fatalf("DC survived highpass at tail sample %d: %v", i, s)
		}
	}
}

func TestLowpassAttenuatesHighFrequency(t *testing.T) {
	const rate = 8000
	samples := make([]float64, rate)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 3500 * float64(i) / rate)
	}
	newLowpass(rate, 300, butterworthQ).processBuffer(samples)
	var peak float64
	for _, s := range samples[rate/2:] {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak > 0.05 {
		t.Errorf("3.5kHz tone survived 300Hz lowpass: peak %v", peak)
	}
}

func TestCompressorReducesLoudPeaks(t *testing.T) {
	c := newCompressor(8000, -24, 4, compAttack, compRelease)
	samples := make([]float64, 2000)
	for i := range samples {
		samples[i] = 0.9
	}
	c.processBuffer(samples)
	// After the attack settles, gain reduction must hold.
	if got := samples[len(samples)-1]; got > 0.5 {
		t.Errorf("compressed steady-state = %v, want well under input 0.9", got)
	}
}

func TestDecodeWAV(t *testing.T) {
	buf := encodeWAV16(t, 8000, 1, []int16{0, 16384, -16384, 32767})
	decoded, err := DecodeWAV(buf)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if decoded.SampleRate != 8000 || len(decoded.Samples) != 4 {
		t.Fatalf("decoded %d samples at %d Hz", len(decoded.Samples), decoded.SampleRate)
	}
	if math.Abs(decoded.Samples[1]-0.5) > 0.001 {
		t.Errorf("sample[1] = %v, want 0.5", decoded.Samples[1])
	}
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	buf := encodeWAV16(t, 8000, 2, []int16{16384, -16384, 8192, 8192})
	decoded, err := DecodeWAV(buf)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(decoded.Samples) != 2 {
		t.Fatalf("frames = %d, want 2", len(decoded.Samples))
	}
	if math.Abs(decoded.Samples[0]) > 0.001 {
		t.Errorf("downmixed frame 0 = %v, want 0 (L/R cancel)", decoded.Samples[0])
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := DecodeWAV([]byte("definitely not audio")); err == nil {
		t.Error("expected error for non-RIFF input")
	}
}

func encodeWAV16(t *testing.T, rate, channels int, samples []int16) []byte {
	t.Helper()
	var data bytes.Buffer
	for _, s := range samples {
		_ = binary.Write(&data, binary.LittleEndian, s)
	}
	var fmtChunk bytes.Buffer
	_ = binary.Write(&fmtChunk, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&fmtChunk, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&fmtChunk, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&fmtChunk, binary.LittleEndian, uint32(rate*channels*2))
	_ = binary.Write(&fmtChunk, binary.LittleEndian, uint16(channels*2))
	_ = binary.Write(&fmtChunk, binary.LittleEndian, uint16(16))

	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(4+8+fmtChunk.Len()+8+data.Len()))
	out.WriteString("WAVE")
	out.WriteString("fmt ")
	_ = binary.Write(&out, binary.LittleEndian, uint32(fmtChunk.Len()))
	out.Write(fmtChunk.Bytes())
	out.WriteString("data")
	_ = binary.Write(&out, binary.LittleEndian, uint32(data.Len()))
	out.Write(data.Bytes())
	return out.Bytes()
}
