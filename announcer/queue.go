// Package announcer serializes text-to-speech announcements: requests are
// screened, cleaned, queued FIFO and spoken one at a time with a fixed
// pause in between. At most one utterance is ever in flight.
package announcer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/chat-overlay/config"
	"github.com/onnwee/chat-overlay/filter"
	"github.com/onnwee/chat-overlay/telemetry"
)

// Synthesizer turns an utterance into audible speech and returns when
// playback finished (or failed). Implementations must honor ctx.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice) error
}

// timeAfter is swapped in tests to skip the inter-message pause.
var timeAfter = time.After

type item struct {
	speaker string
	text    string
}

// Queue accepts announce requests and drains them on its own goroutine.
type Queue struct {
	cfg   config.TTSConfig
	f     *filter.Filter
	synth Synthesizer
	voice Voice

	mu          sync.Mutex
	pending     []item
	lastSpeaker string
	stopped     bool
	wake        chan struct{}
	cancel      context.CancelFunc
	done        chan struct{}
}

// New builds a queue. The voice is selected once from the configured list.
func New(cfg config.TTSConfig, f *filter.Filter, synth Synthesizer) *Queue {
	voices := make([]Voice, 0, len(cfg.Voices))
	for _, v := range cfg.Voices {
		voices = append(voices, Voice{Name: v.Name, Lang: v.Lang})
	}
	return &Queue{
		cfg:   cfg,
		f:     f,
		synth: synth,
		voice: SelectVoice(voices, cfg.Language),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Start launches the drain loop. It returns immediately.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	go q.drain(ctx)
}

// Speak screens and enqueues an announce request. Rejected requests leave
// no trace beyond a metric; rejection is policy, not an error.
func (q *Queue) Speak(speaker, rawText string) {
	if !q.cfg.Enabled {
		telemetry.CountRejection("disabled")
		return
	}
	if len([]rune(rawText)) > q.cfg.MaxLength {
		telemetry.CountRejection("too_long")
		return
	}
	if strings.HasPrefix(rawText, q.cfg.CommandPrefix) {
		telemetry.CountRejection("command")
		return
	}
	if q.f.IsBanned(rawText) {
		telemetry.CountRejection("banned")
		return
	}
	cleaned := q.f.Clean(rawText)
	if cleaned == "" {
		telemetry.CountRejection("empty_after_clean")
		return
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	text := q.composeLocked(speaker, cleaned)
	// Only accepted requests move the elision state; rejections above never
	// reach this point.
	q.lastSpeaker = speaker
	q.pending = append(q.pending, item{speaker: speaker, text: text})
	depth := len(q.pending)
	q.mu.Unlock()

	telemetry.SetQueueDepth(depth)
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// composeLocked builds the spoken utterance, deciding whether to prefix the
// speaker's name. Caller holds q.mu.
func (q *Queue) composeLocked(speaker, cleaned string) string {
	if speaker == q.lastSpeaker {
		return cleaned
	}
	spoken := speaker
	if friendly, ok := q.cfg.FriendlyNames[speaker]; ok {
		spoken = friendly
	} else if strings.Contains(speaker, q.cfg.SkipSeparator) {
		// A name full of separators would be spelled out letter by letter.
		return cleaned
	}
	return fmt.Sprintf("%s: %s", spoken, cleaned)
}

// Stop drops all pending items and halts the drain loop.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.pending = nil
	q.mu.Unlock()
	telemetry.SetQueueDepth(0)
	if q.cancel != nil {
		q.cancel()
		<-q.done
	}
}

// Depth returns the number of queued announcements.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) drain(ctx context.Context) {
	defer close(q.done)
	for {
		it, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		telemetry.TimeFunc(telemetry.SynthesisDuration, func() {
			if err := q.synth.Synthesize(ctx, it.text, q.voice); err != nil {
				if ctx.Err() != nil {
					return
				}
				// One bad item never blocks the queue.
				slog.Error("speech synthesis failed", slog.String("speaker", it.speaker), slog.Any("err", err))
				if telemetry.TTSErrors != nil {
					telemetry.TTSErrors.Inc()
				}
				return
			}
			if telemetry.TTSSpoken != nil {
				telemetry.TTSSpoken.Inc()
			}
		})

		select {
		case <-ctx.Done():
			return
		case <-timeAfter(q.cfg.Pause.Std()):
		}
	}
}

func (q *Queue) pop() (item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return item{}, false
	}
	it := q.pending[0]
	q.pending = q.pending[1:]
	telemetry.SetQueueDepth(len(q.pending))
	return it, true
}
