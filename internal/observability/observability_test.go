package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap/zapcore"

	"github.com/safar/storefront/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("warn")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("Info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("Error should be enabled at warn level")
	}

	if _, err := NewLogger("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestSetupTracingWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "storefront", config.TelemetryConfig{})
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	fields := otel.GetTextMapPropagator().Fields()
	found := false
	for _, f := range fields {
		if f == "traceparent" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected traceparent propagation, got fields %v", fields)
	}
}
