package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/onnwee/chat-overlay/router"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 25 * time.Second

// sseEvent is one framed server-sent event.
type sseEvent struct {
	name string
	data []byte
}

// Hub fans overlay events out to connected SSE clients. It implements
// router.UISink; the router calls it inline, so sends never block — a
// client that cannot keep up has its oldest events dropped.
type Hub struct {
	mu   sync.Mutex
	subs map[chan sseEvent]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan sseEvent]struct{})}
}

// Display broadcasts a message card to all clients.
func (h *Hub) Display(cmd router.DisplayCommand) {
	h.broadcast("message", cmd)
}

// Highlight broadcasts a roster row activation.
func (h *Hub) Highlight(cmd router.RowHighlight) {
	h.broadcast("highlight", cmd)
}

// ClearTop tells clients to drop the top-chatter marker (day rollover).
func (h *Hub) ClearTop() {
	h.broadcast("clear_top", struct{}{})
}

func (h *Hub) broadcast(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("sse: marshal event", slog.String("event", name), slog.Any("err", err))
		return
	}
	ev := sseEvent{name: name, data: data}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Slow client: drop the oldest queued event to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

func (h *Hub) subscribe() chan sseEvent {
	ch := make(chan sseEvent, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan sseEvent) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// ClientCount reports connected SSE clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// HandleEvents streams overlay events to the browser as SSE.
func (h *Hub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// Initial comment so the client sees the stream open immediately.
	if _, err := w.Write([]byte(": connected\n\n")); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-ch:
			if _, err := w.Write([]byte("event: " + ev.name + "\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(ev.data); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
