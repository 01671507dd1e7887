package telemetry

import (
	"context"
	"testing"

	domainconfig "github.com/relaysync/conductor/domain/config"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), domainconfig.TelemetryConfig{}, "conductor-test")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestSetup_Stdout(t *testing.T) {
	shutdown, err := Setup(context.Background(), domainconfig.TelemetryConfig{Enabled: true, Exporter: "stdout"}, "conductor-test")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := Tracer("conductor-test").Start(context.Background(), "test-span")
	span.End()
	_ = ctx
}
