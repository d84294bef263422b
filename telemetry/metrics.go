// Package telemetry provides Prometheus metrics, correlation-id aware
// logging helpers and OpenTelemetry tracing setup.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesTotal   prometheus.Counter
	MessagesInScope prometheus.Counter
	AudioPlays      prometheus.Counter
	AudioSkipped    prometheus.Counter
	TTSSpoken       prometheus.Counter
	TTSRejected     *prometheus.CounterVec
	TTSErrors       prometheus.Counter
	MusicPolls      prometheus.Counter
	MusicPollErrors prometheus.Counter
	MusicChanges    prometheus.Counter
	DayRollovers    prometheus.Counter

	// Histograms (seconds)
	SynthesisDuration prometheus.Observer

	// Gauges
	AnnouncerQueueDepth prometheus.Gauge
	DailyTopCount       prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "overlay_messages_total", Help: "Chat messages received"})
		MessagesInScope = promauto.NewCounter(prometheus.CounterOpts{Name: "overlay_messages_in_scope_total", Help: "Chat messages from classified senders"})
		AudioPlays = promauto.NewCounter(prometheus.CounterOpts{Name: "overlay_audio_plays_total", Help: "Notification sound playbacks"})
		AudioSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "overlay_audio_skipped_total", Help: "Playbacks skipped (buffer not ready or path error)"})
		TTSSpoken = promauto.NewCounter(prometheus.CounterOpts{Name: "overlay_tts_spoken_total", Help: "Utterances synthesized"})
		TTSRejected = promauto.NewCounterVec(prometheus.CounterOpts{Name: "overlay_tts_rejected_total", Help: "Announce requests rejected before enqueue"}, []string{"reason"})
		TTSErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "overlay_tts_errors_total", Help: "Synthesis errors (skipped, queue continues)"})
		MusicPolls = promauto.NewCounter(prometheus.CounterOpts{Name: "overlay_music_polls_total", Help: "Now-playing polls issued"})
		MusicPollErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "overlay_music_poll_errors_total", Help: "Now-playing polls that failed after retries"})
		MusicChanges = promauto.NewCounter(prometheus.CounterOpts{Name: "overlay_music_changes_total", Help: "Now-playing track changes detected"})
		DayRollovers = promauto.NewCounter(prometheus.CounterOpts{Name: "overlay_day_rollovers_total", Help: "Local-day boundary resets"})
		SynthesisDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "overlay_tts_synthesis_duration_seconds", Help: "Speech synthesis duration seconds", Buckets: prometheus.DefBuckets})
		AnnouncerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{Name: "overlay_announcer_queue_depth", Help: "Pending announce requests"})
		DailyTopCount = promauto.NewGauge(prometheus.GaugeOpts{Name: "overlay_daily_top_count", Help: "Message count of the current top chatter"})
	})
}

// CountRejection increments the TTS rejection counter for a reason label.
func CountRejection(reason string) {
	if TTSRejected != nil {
		TTSRejected.WithLabelValues(reason).Inc()
	}
}

// SetQueueDepth records the announcer backlog.
func SetQueueDepth(n int) {
	if AnnouncerQueueDepth != nil {
		AnnouncerQueueDepth.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
