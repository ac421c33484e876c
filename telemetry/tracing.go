package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracingTimeout = 5 * time.Second

// traceSettings is read from the standard OTEL_* environment.
type traceSettings struct {
	endpoint string
	insecure bool
	ratio    float64
}

func traceSettingsFromEnv() (traceSettings, error) {
	s := traceSettings{
		endpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		insecure: true,
		ratio:    1,
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("OTEL_EXPORTER_OTLP_INSECURE: %w", err)
		}
		s.insecure = b
	}
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return s, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG %q: want a ratio in [0, 1]", v)
		}
		s.ratio = f
	}
	return s, nil
}

// InitTracing installs an OTLP/gRPC tracer provider for the process. Without
// OTEL_EXPORTER_OTLP_ENDPOINT spans go to the global no-op provider. The
// returned func flushes pending spans.
func InitTracing(service, version string) (func(), error) {
	s, err := traceSettingsFromEnv()
	if err != nil {
		return nil, err
	}
	if s.endpoint == "" {
		slog.Info("tracing disabled", slog.String("component", "telemetry"))
		return func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), tracingTimeout)
	defer cancel()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.endpoint)}
	if s.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(service),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.ratio))),
	)
	otel.SetTracerProvider(tp)
	slog.Info("tracing enabled",
		slog.String("component", "telemetry"),
		slog.String("endpoint", s.endpoint),
		slog.Float64("sample_ratio", s.ratio))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), tracingTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("tracer shutdown failed", slog.Any("err", err), slog.String("component", "telemetry"))
		}
	}, nil
}

// StartSpan starts a span on the named tracer, tagged with the request's
// correlation id when there is one.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if corr := GetCorrelation(ctx); corr != "" {
		attrs = append(attrs, attribute.String("correlation_id", corr))
	}
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanSuccess(span trace.Span) { span.SetStatus(codes.Ok, "") }

// SetSpanHTTPStatus records the response status; 5xx marks the span failed.
func SetSpanHTTPStatus(span trace.Span, status int) {
	span.SetAttributes(attribute.Int("http.status_code", status))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
		return
	}
	SetSpanSuccess(span)
}

// RequestAttrs describes an inbound request.
func RequestAttrs(r *http.Request) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.method", r.Method),
		attribute.String("http.route", r.URL.Path),
		attribute.String("http.url", r.URL.String()),
	}
}

// VideoAttr tags a span with the video uuid.
func VideoAttr(uuid string) attribute.KeyValue { return attribute.String("video.uuid", uuid) }
