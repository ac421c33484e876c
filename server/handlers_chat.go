package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/vod-danmaku/danmaku"
	"github.com/onnwee/vod-danmaku/render"
	"github.com/onnwee/vod-danmaku/replay"
	"github.com/onnwee/vod-danmaku/search"
	"github.com/onnwee/vod-danmaku/telemetry"
	"github.com/onnwee/vod-danmaku/timeline"
)

type chatWindow struct {
	Mode     string            `json:"mode"`
	Position float64           `json:"position"`
	Start    int               `json:"start"`
	Bound    int               `json:"bound"`
	Events   []render.ViewItem `json:"events"`
}

func newChatWindow(pos float64, win replay.Window) chatWindow {
	return chatWindow{Mode: replay.ModeFollowing.String(), Position: pos, Start: win.Start, Bound: win.End, Events: render.Views(win.Events)}
}

// loadChat authorizes the request and loads the chat of video id. A video
// without a chat document yields an empty list.
func (h *Handlers) loadChat(w http.ResponseWriter, r *http.Request, id string) ([]danmaku.Event, bool) {
	if !h.authorizeVideo(w, r, id) {
		return nil, false
	}
	events, err := h.chat.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, false
		}
		telemetry.LoggerWithCorr(r.Context()).Warn("chat load failed", slog.String("uuid", id), slog.Any("err", err), slog.String("component", "http"))
		writeError(w, http.StatusBadGateway, errUpstream, "failed to load chat")
		return nil, false
	}
	if events == nil {
		events = []danmaku.Event{}
	}
	return events, true
}

func (h *Handlers) capFromQuery(r *http.Request) int {
	n := parseIntQuery(r, "cap", h.windowCap)
	if n <= 0 {
		return h.windowCap
	}
	return min(n, maxWindowCap)
}

// handleChatWindow returns the following window at ?t= seconds. With
// ?mode=browsing the display is detached from playback and the whole
// time-sorted list is returned instead.
func (h *Handlers) handleChatWindow(w http.ResponseWriter, r *http.Request, id string) {
	mode, err := replay.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadRequest, "mode must be following or browsing")
		return
	}
	events, ok := h.loadChat(w, r, id)
	if !ok {
		return
	}
	telemetry.IncWindowQueries()
	pos := parseFloat64Query(r, "t", 0)
	idx := timeline.New(events)
	ctrl := replay.NewController(idx, replay.WithCap(h.capFromQuery(r)), replay.WithMode(mode))
	if mode == replay.ModeBrowsing {
		writeResult(w, chatWindow{Mode: mode.String(), Position: pos, Bound: idx.Len(), Events: render.Views(ctrl.Browse())})
		return
	}
	win, _ := ctrl.Update(pos)
	writeResult(w, newChatWindow(pos, win))
}

// handleChatAll returns every event in time order, the browsing view.
func (h *Handlers) handleChatAll(w http.ResponseWriter, r *http.Request, id string) {
	events, ok := h.loadChat(w, r, id)
	if !ok {
		return
	}
	ctrl := replay.NewController(timeline.New(events), replay.WithMode(replay.ModeBrowsing))
	writeResult(w, map[string]any{
		"total":  len(events),
		"counts": danmaku.CountByKind(events),
		"events": render.Views(ctrl.Browse()),
	})
}

// handleChatSearch filters messages with the ?q= query.
func (h *Handlers) handleChatSearch(w http.ResponseWriter, r *http.Request, id string) {
	events, ok := h.loadChat(w, r, id)
	if !ok {
		return
	}
	telemetry.IncSearchQueries()
	raw := r.URL.Query().Get("q")
	q := search.ParseQuery(raw)
	writeResult(w, map[string]any{
		"query":          raw,
		"match_all":      q.Empty(),
		"awaiting_input": q.AwaitingInput(),
		"events":         render.Views(search.Filter(events, raw)),
	})
}

// handleChatSSE replays the chat as Server-Sent Events. A playback clock
// starts at ?from= seconds and runs at ?speed=; a "window" event is sent
// each time the following window advances and "end" once the clock passes the
// last event.
func (h *Handlers) handleChatSSE(w http.ResponseWriter, r *http.Request, id string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errInternal, "streaming unsupported")
		return
	}
	events, ok := h.loadChat(w, r, id)
	if !ok {
		return
	}
	from := max(parseFloat64Query(r, "from", 0), 0)
	speed := parseFloat64Query(r, "speed", 1.0)
	if speed <= 0 {
		speed = 1.0
	}
	idx := timeline.New(events)
	ctrl := replay.NewController(idx, replay.WithCap(h.capFromQuery(r)))
	last := 0.0
	if idx.Len() > 0 {
		last = idx.At(idx.Len() - 1).Timestamp
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	defer telemetry.StreamOpened()()

	ctx := r.Context()
	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	started := time.Now()
	for {
		pos := from + time.Since(started).Seconds()*speed
		if win, scrolled := ctrl.Update(pos); scrolled {
			if err := writeEvent(w, "window", newChatWindow(pos, win)); err != nil {
				slog.Warn("failed to write SSE window", slog.Any("err", err), slog.String("component", "http"))
				return
			}
			flusher.Flush()
		}
		if pos >= last {
			if err := writeEvent(w, "end", map[string]any{"position": pos, "bound": ctrl.Current().End}); err != nil {
				slog.Warn("failed to write SSE end", slog.Any("err", err), slog.String("component", "http"))
				return
			}
			flusher.Flush()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
