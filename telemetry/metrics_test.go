package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsInitialized(t *testing.T) {
	Init()
	Init() // idempotent

	if MetadataLoads == nil || EventsParsed == nil {
		t.Fatal("counter vectors not initialized")
	}
	if WindowQueries == nil || SearchQueries == nil || RateLimited == nil {
		t.Fatal("counters not initialized")
	}
	if MetadataLoadDuration == nil {
		t.Fatal("MetadataLoadDuration histogram not initialized")
	}
	if ActiveStreams == nil {
		t.Fatal("ActiveStreams gauge not initialized")
	}
}

func TestRecordMetadataLoad(t *testing.T) {
	Init()
	before := testutil.ToFloat64(MetadataLoads.WithLabelValues(OutcomeMissing))
	RecordMetadataLoad(OutcomeMissing, 20*time.Millisecond)
	if got := testutil.ToFloat64(MetadataLoads.WithLabelValues(OutcomeMissing)); got != before+1 {
		t.Errorf("missing loads = %v, want %v", got, before+1)
	}

	h, ok := MetadataLoadDuration.(prometheus.Metric)
	if !ok {
		t.Fatal("MetadataLoadDuration does not implement prometheus.Metric")
	}
	m := &dto.Metric{}
	if err := h.Write(m); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	if m.Histogram == nil || m.Histogram.GetSampleCount() == 0 {
		t.Error("expected at least one duration observation")
	}
}

func TestRecordParsed(t *testing.T) {
	Init()
	before := testutil.ToFloat64(EventsParsed.WithLabelValues("gift"))
	RecordParsed(map[string]int{"gift": 3, "message": 1})
	if got := testutil.ToFloat64(EventsParsed.WithLabelValues("gift")); got != before+3 {
		t.Errorf("gift events = %v, want %v", got, before+3)
	}
}

func TestCounterHelpers(t *testing.T) {
	Init()
	tests := []struct {
		name string
		c    prometheus.Counter
		fn   func()
	}{
		{"window", WindowQueries, IncWindowQueries},
		{"search", SearchQueries, IncSearchQueries},
		{"rate limited", RateLimited, IncRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(tt.c)
			tt.fn()
			if got := testutil.ToFloat64(tt.c); got != before+1 {
				t.Errorf("got %v, want %v", got, before+1)
			}
		})
	}
}

func TestStreamOpened(t *testing.T) {
	Init()
	before := testutil.ToFloat64(ActiveStreams)
	done := StreamOpened()
	if got := testutil.ToFloat64(ActiveStreams); got != before+1 {
		t.Errorf("active = %v, want %v", got, before+1)
	}
	done()
	if got := testutil.ToFloat64(ActiveStreams); got != before {
		t.Errorf("active after close = %v, want %v", got, before)
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if GetCorrelation(ctx) != "" {
		t.Error("expected empty correlation on bare context")
	}
	ctx = WithCorrelation(ctx, "abc")
	if got := GetCorrelation(ctx); got != "abc" {
		t.Errorf("GetCorrelation = %q", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}

func TestStartSpanWithoutExporter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/videos/x?hash=y", nil)
	ctx, span := StartSpan(WithCorrelation(context.Background(), "c1"), "test", "op", RequestAttrs(req)...)
	defer span.End()
	if ctx == nil {
		t.Fatal("nil context")
	}
	SetSpanHTTPStatus(span, 503)
	RecordError(span, context.Canceled)
	RecordError(span, nil)
	SetSpanSuccess(span)
}

func TestRequestAttrs(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/rooms/1?limit=2", nil)
	got := map[string]string{}
	for _, kv := range RequestAttrs(req) {
		got[string(kv.Key)] = kv.Value.AsString()
	}
	if got["http.method"] != "POST" || got["http.route"] != "/rooms/1" || got["http.url"] != "/rooms/1?limit=2" {
		t.Errorf("attrs = %v", got)
	}
}

func TestTraceSettingsFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    traceSettings
		wantErr bool
	}{
		{"defaults", nil, traceSettings{insecure: true, ratio: 1}, false},
		{"configured", map[string]string{
			"OTEL_EXPORTER_OTLP_ENDPOINT": "collector:4317",
			"OTEL_EXPORTER_OTLP_INSECURE": "false",
			"OTEL_TRACES_SAMPLER_ARG":     "0.25",
		}, traceSettings{endpoint: "collector:4317", ratio: 0.25}, false},
		{"bad insecure", map[string]string{"OTEL_EXPORTER_OTLP_INSECURE": "maybe"}, traceSettings{}, true},
		{"ratio above one", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "2"}, traceSettings{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE", "OTEL_TRACES_SAMPLER_ARG"} {
				t.Setenv(k, tt.env[k])
			}
			got, err := traceSettingsFromEnv()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("settings = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInitTracingDisabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "")
	shutdown, err := InitTracing("test", "0")
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	shutdown()
}
