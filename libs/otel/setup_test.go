package otelx

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"OTEL_ENABLED", "OTEL_SERVICE_NAME", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SAMPLING_RATIO"} {
		t.Setenv(key, "")
	}
	cfg := ConfigFromEnv("booking-service")
	if cfg.Enabled {
		t.Fatal("export must be off by default")
	}
	if cfg.ServiceName != "booking-service" || cfg.Endpoint != "jaeger:4317" || cfg.SampleRatio != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigFromEnvRejectsBadRatio(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLING_RATIO", "1.5")
	cfg := ConfigFromEnv("notification-service")
	if !cfg.Enabled || cfg.SampleRatio != 1 {
		t.Fatalf("expected enabled with full sampling, got %+v", cfg)
	}
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	if got := ConfigFromEnv("notification-service").SampleRatio; got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
}

func TestSamplerBounds(t *testing.T) {
	params := sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{0x01},
		Name:          "book",
	}
	if got := newSampler(1).ShouldSample(params).Decision; got != sdktrace.RecordAndSample {
		t.Fatalf("ratio 1 must sample root spans, got %v", got)
	}
	if got := newSampler(0).ShouldSample(params).Decision; got != sdktrace.Drop {
		t.Fatalf("ratio 0 must drop root spans, got %v", got)
	}
}

func TestSetupDisabledStillPropagates(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceName: "booking-service"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b},
		SpanID:     trace.SpanID{0x01},
		TraceFlags: trace.FlagsSampled,
	})
	headers := TraceHeaders(trace.ContextWithSpanContext(context.Background(), sc))
	if headers["traceparent"] == "" {
		t.Fatalf("expected traceparent header, got %v", headers)
	}
	got := trace.SpanContextFromContext(ContextWithTraceHeaders(context.Background(), headers))
	if got.TraceID() != sc.TraceID() {
		t.Fatalf("trace id lost in transit: %s vs %s", got.TraceID(), sc.TraceID())
	}
}
