package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupTestMetrics(t *testing.T) (*metric.ManualReader, *MetricsProvider) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)

	mp := NewMetricsProvider(DefaultMetricsConfig())
	if mp.Error() != nil {
		t.Fatalf("failed to create metrics provider: %v", mp.Error())
	}
	return reader, mp
}

func hasMetric(rm metricdata.ResourceMetrics, name string) bool {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return true
			}
		}
	}
	return false
}

func TestNewMetricsProvider(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	if mp.Error() != nil {
		t.Errorf("unexpected error: %v", mp.Error())
	}
}

func TestMetricsProvider_RecordSyncCall(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()
	mp.RecordSyncCall(ctx, "push", true, 10*time.Millisecond)
	mp.RecordSyncCall(ctx, "claim", false, 5*time.Millisecond)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if !hasMetric(rm, "conductor.sync.calls") {
		t.Error("expected conductor.sync.calls to be recorded")
	}
	if !hasMetric(rm, "conductor.sync.errors") {
		t.Error("expected conductor.sync.errors to be recorded for the failed call")
	}
}

func TestMetricsProvider_RecordBroadcastEvent(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()
	mp.RecordBroadcastEvent(ctx, "task.status_changed")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if !hasMetric(rm, "conductor.broadcast.events") {
		t.Error("expected conductor.broadcast.events to be recorded")
	}
}

func TestMetricsProvider_ActiveLocksGauge(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()
	mp.IncrementActiveLocks(ctx)
	mp.IncrementActiveLocks(ctx)
	mp.DecrementActiveLocks(ctx)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if !hasMetric(rm, "conductor.locks.active") {
		t.Error("expected conductor.locks.active to be recorded")
	}
}

func TestNoopMetrics_SatisfiesInterface(t *testing.T) {
	var m Metrics = NoopMetrics{}
	ctx := context.Background()
	m.RecordSyncCall(ctx, "push", true, time.Millisecond)
	m.RecordBroadcastEvent(ctx, "x")
	m.RecordStuckDetection(ctx, "same-output", "retry-variation")
	m.RecordCheckpoint(ctx, "t1", "auto")
	m.RecordOutboxDiscard(ctx, "t1")
	m.RecordLockContention(ctx, "t1")
	m.IncrementActiveLocks(ctx)
	m.DecrementActiveLocks(ctx)
}
