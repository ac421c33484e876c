// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metadata load outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeMissing = "missing"
	OutcomeError   = "error"
)

var (
	once sync.Once

	// Counters
	MetadataLoads *prometheus.CounterVec // label: outcome
	EventsParsed  *prometheus.CounterVec // label: kind
	WindowQueries prometheus.Counter
	SearchQueries prometheus.Counter
	RateLimited   prometheus.Counter

	// Histograms (seconds)
	MetadataLoadDuration prometheus.Observer

	// Gauges
	ActiveStreams prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MetadataLoads = promauto.NewCounterVec(prometheus.CounterOpts{Name: "danmaku_metadata_loads_total", Help: "Chat metadata loads by outcome"}, []string{"outcome"})
		EventsParsed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "danmaku_events_parsed_total", Help: "Chat events decoded by kind"}, []string{"kind"})
		WindowQueries = promauto.NewCounter(prometheus.CounterOpts{Name: "danmaku_window_queries_total", Help: "Playback window computations served"})
		SearchQueries = promauto.NewCounter(prometheus.CounterOpts{Name: "danmaku_search_queries_total", Help: "Chat search queries served"})
		RateLimited = promauto.NewCounter(prometheus.CounterOpts{Name: "danmaku_http_rate_limited_total", Help: "Requests rejected by the rate limiter"})
		MetadataLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "danmaku_metadata_load_duration_seconds", Help: "Metadata fetch and parse duration seconds", Buckets: prometheus.DefBuckets})
		ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{Name: "danmaku_sse_streams_active", Help: "Open chat replay streams"})
	})
}

// RecordMetadataLoad counts a load by outcome and observes its duration.
func RecordMetadataLoad(outcome string, d time.Duration) {
	if MetadataLoads != nil {
		MetadataLoads.WithLabelValues(outcome).Inc()
	}
	if MetadataLoadDuration != nil {
		MetadataLoadDuration.Observe(d.Seconds())
	}
}

// RecordParsed adds per-kind event counts.
func RecordParsed(counts map[string]int) {
	if EventsParsed == nil {
		return
	}
	for kind, n := range counts {
		EventsParsed.WithLabelValues(kind).Add(float64(n))
	}
}

// IncWindowQueries counts one window computation.
func IncWindowQueries() { inc(WindowQueries) }

// IncSearchQueries counts one search.
func IncSearchQueries() { inc(SearchQueries) }

// IncRateLimited counts one rejected request.
func IncRateLimited() { inc(RateLimited) }

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// StreamOpened marks an SSE stream as active and returns the matching close func.
func StreamOpened() func() {
	if ActiveStreams == nil {
		return func() {}
	}
	ActiveStreams.Inc()
	return ActiveStreams.Dec
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
