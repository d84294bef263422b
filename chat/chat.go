// Package chat connects to Twitch IRC and feeds inbound messages to the
// overlay pipeline. The connection is anonymous: reading a channel's chat
// needs no credentials, so the overlay runs without any Twitch app setup.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/chat-overlay/router"
)

// Handler receives each parsed chat message. *router.Router satisfies it.
type Handler interface {
	Handle(ctx context.Context, ev router.Event)
}

// Listen joins channel and dispatches messages to h until ctx is
// cancelled. It blocks for the lifetime of the connection; the underlying
// client reconnects on transient drops.
func Listen(ctx context.Context, channel string, h Handler) error {
	if channel == "" {
		return fmt.Errorf("chat: channel is required")
	}
	client := twitch.NewAnonymousClient()

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		h.Handle(ctx, router.Event{
			Sender: msg.User.Name,
			Text:   msg.Message,
			Emotes: emoteSpans(msg.Emotes),
		})
	})
	client.OnConnect(func() {
		slog.Info("chat: connected", slog.String("channel", channel))
	})

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := client.Disconnect(); err != nil {
			slog.Debug("chat: disconnect", slog.Any("err", err))
		}
		close(done)
	}()

	client.Join(channel)
	err := client.Connect()
	select {
	case <-ctx.Done():
		<-done
		return nil
	default:
	}
	if err != nil {
		return fmt.Errorf("chat: connect: %w", err)
	}
	return nil
}

// emoteSpans flattens the IRC emote list into name -> character ranges,
// the shape the renderer consumes.
func emoteSpans(emotes []*twitch.Emote) map[string][]string {
	if len(emotes) == 0 {
		return nil
	}
	spans := make(map[string][]string, len(emotes))
	for _, e := range emotes {
		for _, p := range e.Positions {
			spans[e.Name] = append(spans[e.Name], fmt.Sprintf("%d-%d", p.Start, p.End))
		}
	}
	return spans
}
