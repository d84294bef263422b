package server

import (
	"encoding/json"
	"net/http"
	"time"
)

type handlers struct {
	deps      Deps
	startedAt time.Time
}

func newHandlers(deps Deps) *handlers {
	return &handlers{deps: deps, startedAt: time.Now()}
}

// handleHealthz is the liveness probe. The overlay has no external hard
// dependency to check: if the process serves this handler, it is alive.
func (h *handlers) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleStatus reports a JSON snapshot of the running overlay.
func (h *handlers) handleStatus(w http.ResponseWriter, _ *http.Request) {
	top := h.deps.Tracker.TopChatter()
	resp := map[string]any{
		"channel":              h.deps.Channel,
		"uptime_seconds":       int(time.Since(h.startedAt).Seconds()),
		"messages_total":       h.deps.Tracker.Total(),
		"top_chatter":          top,
		"top_chatter_messages": 0,
		"announcer_queue":      h.deps.Announcer.Depth(),
		"audio_ready":          h.deps.Audio.Ready(),
		"sse_clients":          h.deps.Hub.ClientCount(),
	}
	if top != "" {
		resp["top_chatter_messages"] = h.deps.Tracker.DailyCount(top)
	}
	if h.deps.Music != nil {
		resp["now_playing"] = h.deps.Music.LastTrack()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}
