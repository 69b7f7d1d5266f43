package tracing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/chaoslab/pkg/config"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:   "disabled tracing",
			config: &config.TracingConfig{Enabled: false, ServiceName: "test"},
		},
		{
			name: "otlp exporter",
			config: &config.TracingConfig{
				Enabled:     true,
				ServiceName: "test",
				Exporter:    ExporterOTLP,
				Endpoint:    "localhost:4317",
				Insecure:    true,
				Timeout:     time.Second,
				Sampler:     SamplerNever,
			},
		},
		{
			name: "stdout exporter with ratio",
			config: &config.TracingConfig{
				Enabled:     true,
				ServiceName: "test",
				Exporter:    ExporterStdout,
				Sampler:     SamplerRatio,
				SampleRatio: 0.5,
			},
		},
		{
			name: "invalid ratio",
			config: &config.TracingConfig{
				Enabled:     true,
				Exporter:    ExporterStdout,
				Sampler:     SamplerRatio,
				SampleRatio: 1.5,
			},
			wantErr: true,
		},
		{
			name: "unknown exporter",
			config: &config.TracingConfig{
				Enabled:  true,
				Exporter: "zipkin",
			},
			wantErr: true,
		},
		{
			name: "unknown sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Exporter: ExporterStdout,
				Sampler:  "sometimes",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := newTracer(tt.config, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer tracer.Shutdown(context.Background())

			if tracer.Enabled() != tt.config.Enabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.config.Enabled)
			}
		})
	}
}

func TestTracer_DisabledIsNoop(t *testing.T) {
	tracer, err := New(&config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, span := tracer.Start(context.Background(), "op")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("disabled tracer produced a valid span context")
	}
	if TraceID(ctx) != "" {
		t.Error("disabled tracer produced a trace id")
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestTracer_StdoutExport(t *testing.T) {
	var out bytes.Buffer
	tracer, err := newTracer(&config.TracingConfig{
		Enabled:     true,
		ServiceName: "chaoslab-test",
		Exporter:    ExporterStdout,
		Sampler:     SamplerAlways,
	}, &out)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, span := tracer.Start(context.Background(), "diagnostics.session")
	span.SetAttributes(SessionAttributes("s-1", "paymentServiceFailure", "")...)
	if TraceID(ctx) == "" {
		t.Error("expected a trace id on a sampled span")
	}
	span.End()

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if !strings.Contains(out.String(), "diagnostics.session") {
		t.Errorf("span not exported:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "paymentServiceFailure") {
		t.Errorf("attributes not exported:\n%s", out.String())
	}
}

func TestSetError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := provider.Tracer("test").Start(context.Background(), "op")
	SetError(span, nil)
	SetError(span, errors.New("flag service unreachable"))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].Status().Description; got != "flag service unreachable" {
		t.Errorf("status description = %q", got)
	}
	if len(spans[0].Events()) != 1 {
		t.Errorf("expected 1 recorded error event, got %d", len(spans[0].Events()))
	}
}

func TestAttributes(t *testing.T) {
	attrs := SessionAttributes("s-1", "f", "run-1")
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(attrs))
	}
	if len(SessionAttributes("s-1", "f", "")) != 2 {
		t.Error("empty name should be omitted")
	}

	cleanup := CleanupAttributes("continuous", 3, 1024, 1)
	want := map[attribute.Key]int64{
		AttrDeletedObjects: 3,
		AttrFreedBytes:     1024,
		AttrErrorCount:     1,
	}
	for _, kv := range cleanup {
		if v, ok := want[kv.Key]; ok && kv.Value.AsInt64() != v {
			t.Errorf("%s = %d, want %d", kv.Key, kv.Value.AsInt64(), v)
		}
	}
}
