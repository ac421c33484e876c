package server

import (
	"log/slog"
	"time"

	"github.com/onnwee/vod-danmaku/db"
	"github.com/onnwee/vod-danmaku/metadata"
	"github.com/onnwee/vod-danmaku/replay"
)

const (
	defaultStreamTick = 250 * time.Millisecond
	heartbeatInterval = 15 * time.Second
	// maxWindowCap bounds the ?cap= override of the chat window.
	maxWindowCap = 1000
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	store     *db.Store
	chat      replay.Loader
	urls      *metadata.URLs
	windowCap int
	tick      time.Duration
	log       *slog.Logger
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	h := &Handlers{
		store:     deps.Store,
		chat:      deps.Chat,
		urls:      deps.URLs,
		windowCap: replay.DefaultCap,
		tick:      deps.StreamTick,
		log:       slog.Default().With(slog.String("component", "http")),
	}
	if cfg := deps.Config; cfg != nil && cfg.WindowCap > 0 {
		h.windowCap = cfg.WindowCap
	}
	if h.tick <= 0 {
		h.tick = defaultStreamTick
	}
	return h
}
