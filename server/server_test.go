package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/chat-overlay/router"
	"github.com/onnwee/chat-overlay/tracker"
)

type fixedQueue struct{ depth int }

func (q fixedQueue) Depth() int { return q.depth }

type fixedAudio struct{ ready bool }

func (a fixedAudio) Ready() bool { return a.ready }

type fixedMusic struct{ track string }

func (m fixedMusic) LastTrack() string { return m.track }

func testDeps() Deps {
	return Deps{
		Channel:   "liiukiin",
		Tracker:   tracker.New(),
		Hub:       NewHub(),
		Announcer: fixedQueue{depth: 2},
		Audio:     fixedAudio{ready: true},
		Music:     fixedMusic{track: "Canción - Artista"},
	}
}

func TestHealthz(t *testing.T) {
	ts := httptest.NewServer(NewMux(testDeps()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Correlation-ID") == "" {
		t.Error("missing correlation id header")
	}
}

func TestStatusSnapshot(t *testing.T) {
	deps := testDeps()
	deps.Tracker.Track("alpha", true)
	deps.Tracker.Track("alpha", true)
	ts := httptest.NewServer(NewMux(deps))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Channel        string `json:"channel"`
		MessagesTotal  int64  `json:"messages_total"`
		TopChatter     string `json:"top_chatter"`
		TopMessages    int    `json:"top_chatter_messages"`
		AnnouncerQueue int    `json:"announcer_queue"`
		AudioReady     bool   `json:"audio_ready"`
		NowPlaying     string `json:"now_playing"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Channel != "liiukiin" || body.MessagesTotal != 2 {
		t.Errorf("channel=%q total=%d", body.Channel, body.MessagesTotal)
	}
	if body.TopChatter != "alpha" || body.TopMessages != 2 {
		t.Errorf("top=%q count=%d", body.TopChatter, body.TopMessages)
	}
	if body.AnnouncerQueue != 2 || !body.AudioReady {
		t.Errorf("queue=%d ready=%v", body.AnnouncerQueue, body.AudioReady)
	}
	if body.NowPlaying != "Canción - Artista" {
		t.Errorf("now_playing = %q", body.NowPlaying)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Setenv("CORS_PERMISSIVE", "true")
	ts := httptest.NewServer(NewMux(testDeps()))
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/status", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing permissive CORS header")
	}
}

func TestEventsStreamDelivers(t *testing.T) {
	deps := testDeps()
	ts := httptest.NewServer(NewMux(deps))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// Wait for the subscription to register before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for deps.Hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	deps.Hub.Display(router.DisplayCommand{Sender: "alpha", Text: "hola", Number: 4})
	deps.Hub.ClearTop()

	scanner := bufio.NewScanner(resp.Body)
	var sawMessage, sawClear bool
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "event: message":
			sawMessage = true
		case line == "event: clear_top":
			sawClear = true
		case sawMessage && strings.HasPrefix(line, "data: "):
			var cmd router.DisplayCommand
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &cmd); err != nil {
				t.Fatalf("unmarshal event data: %v", err)
			}
			if cmd.Sender != "alpha" || cmd.Number != 4 {
				t.Errorf("event payload = %+v", cmd)
			}
			sawMessage = false
		}
		if sawClear {
			break
		}
	}
	if !sawClear {
		t.Fatal("clear_top event never arrived")
	}
}

func TestHubDropsSlowClientEvents(t *testing.T) {
	h := NewHub()
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	for i := 0; i < 200; i++ {
		h.Display(router.DisplayCommand{Sender: "alpha"})
	}
	// Channel stays at capacity instead of blocking the broadcaster.
	if len(ch) != cap(ch) {
		t.Errorf("queued = %d, want full buffer %d", len(ch), cap(ch))
	}
}
