// Package router orchestrates the message pipeline: every inbound chat
// event is normalized and tracked, then — for classified senders only —
// enriched with participant metadata and fanned out to the UI feed, the
// notification sound and the announcer. Events are handled one at a time
// in arrival order; the audio and speech continuations never block the
// next event.
package router

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/chat-overlay/identity"
	"github.com/onnwee/chat-overlay/telemetry"
	"github.com/onnwee/chat-overlay/tracker"
)

// Event is an inbound chat message. Emotes is the transport's span map,
// passed through opaquely for the renderer.
type Event struct {
	Sender string
	Text   string
	Emotes map[string][]string
}

// DisplayCommand tells the renderer to show a message transiently.
type DisplayCommand struct {
	Sender   string              `json:"sender"`
	Text     string              `json:"text"`
	Number   int                 `json:"number"`
	TeamKey  string              `json:"team"`
	Color    string              `json:"color"`
	Logo     string              `json:"logo"`
	Avatar   string              `json:"avatar,omitempty"`
	IsTop    bool                `json:"is_top"`
	Emotes   map[string][]string `json:"emotes,omitempty"`
	Duration time.Duration       `json:"duration_ms"`
}

// RowHighlight marks a roster row active for a bounded time; the client
// owns the expiry timer.
type RowHighlight struct {
	Sender   string        `json:"sender"`
	MarkTop  bool          `json:"mark_top"`
	Duration time.Duration `json:"duration_ms"`
}

// UISink is the renderer-facing collaborator. Implementations must not
// block; the router calls them inline.
type UISink interface {
	Display(cmd DisplayCommand)
	Highlight(cmd RowHighlight)
	ClearTop()
}

// AudioPlayer triggers the notification sound.
type AudioPlayer interface {
	Play(ctx context.Context)
}

// Speaker enqueues a TTS announcement.
type Speaker interface {
	Speak(speaker, rawText string)
}

// Router wires the pipeline together. It holds no state of its own beyond
// component references.
type Router struct {
	norm    *identity.Normalizer
	roster  *identity.Roster
	dir     *identity.Directory
	track   *tracker.Tracker
	ui      UISink
	audio   AudioPlayer
	tts     Speaker
	primary string

	displayDuration time.Duration
	audioTopN       int
	musicPrefix     string
}

// Options carries the policy knobs.
type Options struct {
	PrimaryStreamer string
	DisplayDuration time.Duration
	AudioTopN       int
	MusicPrefix     string
}

// New builds a router. The rollover hook is registered here so the top
// marker is cleared atomically with the tracker's day reset.
func New(norm *identity.Normalizer, roster *identity.Roster, dir *identity.Directory, track *tracker.Tracker, ui UISink, audio AudioPlayer, tts Speaker, opts Options) *Router {
	r := &Router{
		norm:            norm,
		roster:          roster,
		dir:             dir,
		track:           track,
		ui:              ui,
		audio:           audio,
		tts:             tts,
		primary:         norm.Normalize(opts.PrimaryStreamer),
		displayDuration: opts.DisplayDuration,
		audioTopN:       opts.AudioTopN,
		musicPrefix:     opts.MusicPrefix,
	}
	track.OnRollover(func() {
		if telemetry.DayRollovers != nil {
			telemetry.DayRollovers.Inc()
		}
		ui.ClearTop()
	})
	return r
}

// Handle processes one chat event through the full pipeline.
func (r *Router) Handle(ctx context.Context, ev Event) {
	ctx, span := telemetry.StartSpan(ctx, "router", "handle-message",
		attribute.String("sender", ev.Sender))
	defer span.End()

	sender := r.norm.Normalize(ev.Sender)
	onRoster := r.roster.Contains(sender)
	inScope := onRoster || r.dir.AlwaysInScope(sender)

	r.track.Track(sender, inScope)
	if telemetry.MessagesTotal != nil {
		telemetry.MessagesTotal.Inc()
	}

	top := r.track.TopChatter()
	isTop := top != "" && top == sender
	if telemetry.DailyTopCount != nil && top != "" {
		telemetry.DailyTopCount.Set(float64(r.track.DailyCount(top)))
	}

	if !inScope {
		slog.Debug("message out of scope", slog.String("sender", sender))
		return
	}
	if telemetry.MessagesInScope != nil {
		telemetry.MessagesInScope.Inc()
	}

	team := r.dir.TeamFor(sender)
	r.ui.Display(DisplayCommand{
		Sender:   ev.Sender,
		Text:     ev.Text,
		Number:   r.dir.Number(sender),
		TeamKey:  team.Key,
		Color:    team.Color,
		Logo:     team.Logo,
		Avatar:   r.dir.Avatar(sender),
		IsTop:    isTop,
		Emotes:   ev.Emotes,
		Duration: r.displayDuration,
	})
	if onRoster {
		r.ui.Highlight(RowHighlight{Sender: sender, MarkTop: isTop, Duration: r.displayDuration})
	}

	if r.shouldPlayAudio(sender) {
		r.audio.Play(ctx)
	}

	if r.shouldAnnounce(sender, ev.Text) {
		r.tts.Speak(sender, ev.Text)
	}
}

// shouldPlayAudio gates the notification sound: the primary streamer always
// rings, plus the configured top-N prefix of the roster.
func (r *Router) shouldPlayAudio(sender string) bool {
	if sender == r.primary {
		return true
	}
	pos := r.roster.Position(sender)
	return pos >= 0 && pos < r.audioTopN
}

// shouldAnnounce suppresses TTS for a sender's first in-scope message of
// the day (avoids a cold read before counters mean anything) and for the
// auto-generated now-playing announcements.
func (r *Router) shouldAnnounce(sender, text string) bool {
	if r.track.DailyCount(sender) <= 1 {
		return false
	}
	if r.musicPrefix != "" && strings.HasPrefix(text, r.musicPrefix) {
		return false
	}
	return true
}
