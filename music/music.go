// Package music polls an external now-playing endpoint and turns track
// changes into chat announcements from the primary streamer. The poller
// degrades quietly when the endpoint is down: after a run of consecutive
// failures it backs off to probing only every tenth cycle, so a stopped
// player process does not flood the log.
package music

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/onnwee/chat-overlay/config"
	"github.com/onnwee/chat-overlay/telemetry"
)

// errorSuppressThreshold is the run of consecutive poll failures after
// which the poller switches to sparse probing; suppressedProbeEvery is
// how often (in cycles) it still probes while suppressed.
const (
	errorSuppressThreshold = 5
	suppressedProbeEvery   = 10
	maxPollAttempts        = 3
)

// nowPlaying is the endpoint's response shape. Relays report the track
// name as either song or title depending on the player backend.
type nowPlaying struct {
	Artist string `json:"artist"`
	Song   string `json:"song"`
	Title  string `json:"title"`
}

// song returns the track name, preferring song over title.
func (np nowPlaying) song() string {
	if np.Song != "" {
		return np.Song
	}
	return np.Title
}

// Poller watches the now-playing endpoint and invokes Announce on every
// track change.
type Poller struct {
	cfg    config.MusicConfig
	client *http.Client

	// Announce receives the ready-to-display announcement text,
	// message prefix included.
	announce func(ctx context.Context, text string)

	// newBackOff is swapped in tests to avoid real retry delays.
	newBackOff func() backoff.BackOff

	mu         sync.Mutex
	lastTrack  string
	errStreak  int
	cycle      int
	prevCancel context.CancelFunc
}

// New builds a poller. announce must be safe for calls from the poll
// goroutine.
func New(cfg config.MusicConfig, announce func(ctx context.Context, text string)) *Poller {
	return &Poller{
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout.Std()},
		announce:   announce,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Run polls until ctx is cancelled. It is a no-op when the feature is
// disabled or unconfigured.
func (p *Poller) Run(ctx context.Context) {
	if !p.cfg.Enabled || p.cfg.Endpoint == "" {
		slog.Info("music: poller disabled")
		return
	}
	interval := p.cfg.Interval.Std()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("music: started poller",
		slog.String("endpoint", p.cfg.Endpoint),
		slog.Duration("interval", interval))
	for {
		p.poll(ctx)
		select {
		case <-ctx.Done():
			p.cancelInFlight()
			return
		case <-ticker.C:
		}
	}
}

// poll runs one cycle: cancel whatever the previous cycle left in
// flight, decide whether this cycle is suppressed, then fetch and diff.
func (p *Poller) poll(ctx context.Context) {
	p.mu.Lock()
	p.cycle++
	if p.prevCancel != nil {
		p.prevCancel()
	}
	suppressed := p.errStreak >= errorSuppressThreshold && p.cycle%suppressedProbeEvery != 0
	pollCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout.Std())
	p.prevCancel = cancel
	p.mu.Unlock()

	if suppressed {
		cancel()
		return
	}

	if telemetry.MusicPolls != nil {
		telemetry.MusicPolls.Inc()
	}
	np, err := p.fetch(pollCtx)
	cancel()
	if err != nil {
		p.recordError(err)
		return
	}
	p.recordSuccess()

	song := np.song()
	// A response without both halves carries no track; skip the cycle.
	if np.Artist == "" || song == "" {
		return
	}
	if p.cfg.IgnoreStatus != "" && (np.Artist == p.cfg.IgnoreStatus || song == p.cfg.IgnoreStatus) {
		return
	}

	track := song + " - " + np.Artist
	p.mu.Lock()
	changed := track != p.lastTrack
	if changed {
		p.lastTrack = track
	}
	p.mu.Unlock()
	if !changed {
		return
	}
	if telemetry.MusicChanges != nil {
		telemetry.MusicChanges.Inc()
	}
	slog.Info("music: track changed", slog.String("track", track))
	p.announce(ctx, p.cfg.MessagePrefix+track)
}

// fetch retrieves the current track with bounded retries inside the
// poll's own deadline.
func (p *Poller) fetch(ctx context.Context) (nowPlaying, error) {
	op := func() (nowPlaying, error) {
		return p.fetchOnce(ctx)
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxTries(maxPollAttempts))
}

func (p *Poller) fetchOnce(ctx context.Context) (nowPlaying, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Endpoint, nil)
	if err != nil {
		return nowPlaying{}, backoff.Permanent(err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nowPlaying{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nowPlaying{}, fmt.Errorf("now-playing endpoint: status %d", resp.StatusCode)
	}
	var np nowPlaying
	if err := json.NewDecoder(resp.Body).Decode(&np); err != nil {
		return nowPlaying{}, fmt.Errorf("decode now-playing response: %w", err)
	}
	np.Artist = strings.TrimSpace(np.Artist)
	np.Song = strings.TrimSpace(np.Song)
	np.Title = strings.TrimSpace(np.Title)
	return np, nil
}

func (p *Poller) recordError(err error) {
	if telemetry.MusicPollErrors != nil {
		telemetry.MusicPollErrors.Inc()
	}
	p.mu.Lock()
	p.errStreak++
	streak := p.errStreak
	p.mu.Unlock()
	if streak == errorSuppressThreshold {
		slog.Warn("music: repeated poll failures; probing sparsely",
			slog.Int("consecutive_errors", streak), slog.Any("err", err))
		return
	}
	if streak < errorSuppressThreshold {
		slog.Debug("music: poll failed", slog.Any("err", err))
	}
}

func (p *Poller) recordSuccess() {
	p.mu.Lock()
	if p.errStreak >= errorSuppressThreshold {
		slog.Info("music: endpoint recovered")
	}
	p.errStreak = 0
	p.mu.Unlock()
}

// LastTrack reports the most recently observed track identity, empty
// until the first successful poll.
func (p *Poller) LastTrack() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTrack
}

func (p *Poller) cancelInFlight() {
	p.mu.Lock()
	if p.prevCancel != nil {
		p.prevCancel()
	}
	p.mu.Unlock()
}
