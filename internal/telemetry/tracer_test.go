// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ExporterType: "grpc"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if provider.tp != nil {
		t.Error("Expected noop provider (tp == nil)")
	}

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	if span.IsRecording() {
		t.Error("Expected noop tracer span to be non-recording")
	}
	span.End()

	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected no error on noop shutdown, got: %v", err)
	}
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "camsync", ExporterType: "invalid"})
	if err == nil {
		t.Fatal("Expected error for invalid exporter type")
	}
	expected := `telemetry: exporter "invalid" unsupported (grpc|http)`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0.0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased"},
	}
	for _, tt := range tests {
		desc := Sampler(tt.rate).Description()
		if !strings.Contains(desc, tt.want) {
			t.Errorf("Sampler(%v) = %q, want it to mention %q", tt.rate, desc, tt.want)
		}
	}
}

func TestRecordError(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "tick")
	RecordError(span, "status", context.DeadlineExceeded)
	RecordError(span, "ignored", nil)
	span.End()

	ro, ok := span.(sdktrace.ReadOnlySpan)
	if !ok {
		t.Fatal("expected sdk span")
	}
	if ro.Status().Description != context.DeadlineExceeded.Error() {
		t.Errorf("unexpected status %q", ro.Status().Description)
	}
	var found bool
	for _, kv := range ro.Attributes() {
		if string(kv.Key) == ErrorTypeKey && kv.Value.AsString() == "status" {
			found = true
		}
	}
	if !found {
		t.Error("expected error.type=status attribute")
	}
}

func TestTracer(t *testing.T) {
	if _, err := NewProvider(context.Background(), Config{}); err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	ctx, span := Tracer("camsync/test").Start(context.Background(), "test-span")
	defer span.End()
	if trace.SpanFromContext(ctx) == nil {
		t.Error("Expected span in context")
	}
}
