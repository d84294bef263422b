package chat

import (
	"context"
	"reflect"
	"testing"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

func TestListenRequiresChannel(t *testing.T) {
	if err := Listen(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty channel")
	}
}

func TestEmoteSpans(t *testing.T) {
	emotes := []*twitch.Emote{
		{Name: "Kappa", Positions: []twitch.EmotePosition{{Start: 0, End: 4}, {Start: 10, End: 14}}},
		{Name: "LUL", Positions: []twitch.EmotePosition{{Start: 6, End: 8}}},
	}
	got := emoteSpans(emotes)
	want := map[string][]string{
		"Kappa": {"0-4", "10-14"},
		"LUL":   {"6-8"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("emoteSpans = %v, want %v", got, want)
	}
	if emoteSpans(nil) != nil {
		t.Error("no emotes should map to nil")
	}
}
