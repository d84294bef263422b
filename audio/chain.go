package audio

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/onnwee/chat-overlay/config"
	"github.com/onnwee/chat-overlay/telemetry"
)

// peakingQ is the fixed bandwidth of the mid-frequency boost stage.
const peakingQ = 1.0

// Compressor time constants are part of the fixed pipeline, not tunables.
const (
	compAttack  = 0.003
	compRelease = 0.25
)

// makeupGain compensates the insertion loss of the filter/compressor chain.
const makeupGain = 1.4

// Chain plays the notification sound. The source buffer is decoded once
// (asynchronously, at startup); until then Play is a no-op with a warning.
// Each Play renders an independent signal path; only the decoded source and
// the configuration are shared, both read-only after load.
type Chain struct {
	cfg   config.AudioConfig
	sink  Sink
	curve []float64

	mu     sync.RWMutex
	source *Buffer

	// sleep is swapped in tests to skip the pre-delay.
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewChain builds the chain. The distortion curve is computed here, once;
// it only depends on configuration.
func NewChain(cfg config.AudioConfig, sink Sink) *Chain {
	return &Chain{
		cfg:   cfg,
		sink:  sink,
		curve: newShaperCurve(cfg.Effect.Distortion),
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// Load decodes the asset via the loader and arms the chain. Meant to run in
// its own goroutine at startup; Play calls before completion are dropped.
func (c *Chain) Load(ctx context.Context, load func(ctx context.Context) (Buffer, error)) {
	buf, err := load(ctx)
	if err != nil {
		slog.Error("audio asset load failed", slog.String("asset", c.cfg.Asset), slog.Any("err", err))
		return
	}
	c.mu.Lock()
	c.source = &buf
	c.mu.Unlock()
	slog.Info("audio asset ready", slog.String("asset", c.cfg.Asset), slog.Duration("duration", buf.Duration()))
}

// Ready reports whether the asset has been decoded.
func (c *Chain) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source != nil
}

// Play renders one playback. Non-blocking: rendering and sink delivery run
// on their own goroutine, and a failed attempt never affects later calls.
func (c *Chain) Play(ctx context.Context) {
	c.mu.RLock()
	source := c.source
	c.mu.RUnlock()
	if source == nil {
		slog.Warn("audio not ready; skipping playback")
		if telemetry.AudioSkipped != nil {
			telemetry.AudioSkipped.Inc()
		}
		return
	}

	if !c.cfg.Effect.Enabled {
		go c.playPlain(ctx, source)
		return
	}

	// Static burst fires immediately; the degraded voice follows after the
	// pre-delay, like a radio keying up before the message.
	go c.playStatic(ctx, source.SampleRate)
	go c.playDegraded(ctx, source)
}

func (c *Chain) playPlain(ctx context.Context, source *Buffer) {
	out := Buffer{SampleRate: source.SampleRate, Samples: append([]float64(nil), source.Samples...)}
	applyGain(out.Samples, c.cfg.Volume)
	c.deliver(ctx, out)
}

func (c *Chain) playStatic(ctx context.Context, sampleRate int) {
	burst := renderStatic(sampleRate, c.cfg.Effect.StaticDuration.Std(), c.cfg.Effect.HighpassHz, c.cfg.Effect.StaticVolume)
	c.deliver(ctx, burst)
}

func (c *Chain) playDegraded(ctx context.Context, source *Buffer) {
	if !c.sleep(ctx, c.cfg.Effect.PreDelay.Std()) {
		return
	}
	rate := float64(source.SampleRate)
	samples := append([]float64(nil), source.Samples...)

	newHighpass(rate, c.cfg.Effect.HighpassHz, butterworthQ).processBuffer(samples)
	newLowpass(rate, c.cfg.Effect.LowpassHz, butterworthQ).processBuffer(samples)
	newPeaking(rate, c.cfg.Effect.PeakHz, c.cfg.Effect.PeakGainDB, peakingQ).processBuffer(samples)
	distort(samples, c.curve)
	newCompressor(rate, c.cfg.Effect.CompThresholdDB, c.cfg.Effect.CompRatio, compAttack, compRelease).processBuffer(samples)
	applyGain(samples, c.cfg.Volume*makeupGain)

	c.deliver(ctx, Buffer{SampleRate: source.SampleRate, Samples: samples})
}

func (c *Chain) deliver(ctx context.Context, buf Buffer) {
	if err := c.sink.Play(ctx, buf); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("audio playback failed", slog.Any("err", err))
		if telemetry.AudioSkipped != nil {
			telemetry.AudioSkipped.Inc()
		}
		return
	}
	if telemetry.AudioPlays != nil {
		telemetry.AudioPlays.Inc()
	}
}

// renderStatic synthesizes the enveloped white-noise burst: a half-sine
// envelope over the burst duration, high-passed so it crackles instead of
// rumbling, at the configured static volume.
func renderStatic(sampleRate int, duration time.Duration, highpassHz, volume float64) Buffer {
	n := int(float64(sampleRate) * duration.Seconds())
	if n <= 0 {
		return Buffer{SampleRate: sampleRate}
	}
	samples := make([]float64, n)
	for i := range samples {
		env := math.Sin(math.Pi * float64(i) / float64(n))
		samples[i] = (rand.Float64()*2 - 1) * env
	}
	newHighpass(float64(sampleRate), highpassHz, butterworthQ).processBuffer(samples)
	applyGain(samples, volume)
	return Buffer{SampleRate: sampleRate, Samples: samples}
}
