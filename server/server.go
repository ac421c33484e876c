// Package server exposes the HTTP API: health, metrics, the video/room catalog
// and the chat replay endpoints used by the web player. Requests get a
// correlation ID and a tracing span; chat routes are rate limited per client IP.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/vod-danmaku/config"
	"github.com/onnwee/vod-danmaku/db"
	"github.com/onnwee/vod-danmaku/metadata"
	"github.com/onnwee/vod-danmaku/replay"
	"github.com/onnwee/vod-danmaku/telemetry"
)

// getChatEndpointPattern matches /videos/{uuid}/chat and its subroutes.
var getChatEndpointPattern = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`^/videos/[^/]+/chat(/[^/]*)?$`)
})

// Deps are the collaborators the API serves from.
type Deps struct {
	Store  *db.Store
	Chat   replay.Loader
	Config *config.Config
	// URLs resolves cover and media locations. Nil leaves them out of
	// catalog responses.
	URLs *metadata.URLs
	// StreamTick is the playback clock resolution of chat streams.
	// Zero means the default.
	StreamTick time.Duration
}

// NewMux returns the HTTP handler with all routes.
func NewMux(deps Deps) http.Handler {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{WindowCap: replay.DefaultCap}
	}
	limiter := newIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	cors := newCORSPolicy(cfg.CORSAllowedOrigins, !cfg.IsProduction())

	handlers := NewHandlers(deps)

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)

	mux.HandleFunc("/rooms", handlers.HandleRoomsList)
	mux.HandleFunc("/rooms/", handlers.HandleRoomsDispatcher)
	mux.HandleFunc("/videos/", handlers.HandleVideosDispatcher)

	selectiveHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getChatEndpointPattern().MatchString(r.URL.Path) {
			rateLimitMiddleware(mux, limiter).ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reuse corr header if provided else generate
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path, telemetry.RequestAttrs(r)...)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		wrappedWriter := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		selectiveHandler.ServeHTTP(wrappedWriter, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, wrappedWriter.statusCode)
	})
	return withCORS(handler, cors)
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, deps Deps, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     NewMux(deps),
		ReadTimeout: 5 * time.Second,
		// No WriteTimeout: chat streams stay open for the length of a replay.
		IdleTimeout: 60 * time.Second,
		// Request contexts end with ctx so open streams unblock Shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
