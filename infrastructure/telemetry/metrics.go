// Package telemetry provides OpenTelemetry-backed tracing and metrics
// for the coordinator's sync protocol and broadcast bus (§11).
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsProvider provides access to metrics instruments.
type MetricsProvider struct {
	meter metric.Meter

	syncCalls        metric.Int64Counter
	syncErrors       metric.Int64Counter
	broadcastEvents  metric.Int64Counter
	stuckDetections  metric.Int64Counter
	checkpoints      metric.Int64Counter
	outboxDiscards   metric.Int64Counter
	lockContention   metric.Int64Counter
	syncCallDuration metric.Float64Histogram
	activeLocks      metric.Int64UpDownCounter

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	MeterName    string
	MeterVersion string
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/relaysync/conductor",
		MeterVersion: "1.0.0",
	}
}

// NewMetricsProvider creates a new metrics provider from the global
// OpenTelemetry meter provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		config = DefaultMetricsConfig()
	}

	meter := otel.GetMeterProvider().Meter(
		config.MeterName,
		metric.WithInstrumentationVersion(config.MeterVersion),
	)

	mp := &MetricsProvider{meter: meter}
	mp.initOnce.Do(func() {
		mp.initErr = mp.initInstruments()
	})
	return mp
}

func (mp *MetricsProvider) initInstruments() error {
	var err error

	mp.syncCalls, err = mp.meter.Int64Counter(
		"conductor.sync.calls",
		metric.WithDescription("Number of coordinator sync protocol calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	mp.syncErrors, err = mp.meter.Int64Counter(
		"conductor.sync.errors",
		metric.WithDescription("Number of failed coordinator sync protocol calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	mp.broadcastEvents, err = mp.meter.Int64Counter(
		"conductor.broadcast.events",
		metric.WithDescription("Number of broadcast events published, by type"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	mp.stuckDetections, err = mp.meter.Int64Counter(
		"conductor.stuck.detections",
		metric.WithDescription("Number of stuck patterns detected, by pattern"),
		metric.WithUnit("{detection}"),
	)
	if err != nil {
		return err
	}

	mp.checkpoints, err = mp.meter.Int64Counter(
		"conductor.checkpoints.created",
		metric.WithDescription("Number of checkpoints created"),
		metric.WithUnit("{checkpoint}"),
	)
	if err != nil {
		return err
	}

	mp.outboxDiscards, err = mp.meter.Int64Counter(
		"conductor.outbox.discards",
		metric.WithDescription("Number of status updates discarded after exceeding max attempts"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return err
	}

	mp.lockContention, err = mp.meter.Int64Counter(
		"conductor.lock.contention",
		metric.WithDescription("Number of failed lock acquisitions due to an existing holder"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return err
	}

	mp.syncCallDuration, err = mp.meter.Float64Histogram(
		"conductor.sync.duration",
		metric.WithDescription("Duration of coordinator sync protocol calls"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.activeLocks, err = mp.meter.Int64UpDownCounter(
		"conductor.locks.active",
		metric.WithDescription("Number of currently held task locks"),
		metric.WithUnit("{lock}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Error returns any initialization error.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

// RecordSyncCall records one sync-protocol call (§6's /api/v2/sync/* surface).
func (mp *MetricsProvider) RecordSyncCall(ctx context.Context, op string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("sync.op", op),
		attribute.Bool("success", success),
	}
	mp.syncCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.syncCallDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if !success {
		mp.syncErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sync.op", op)))
	}
}

// RecordBroadcastEvent records one event published on the broadcast bus (C5).
func (mp *MetricsProvider) RecordBroadcastEvent(ctx context.Context, eventType string) {
	mp.broadcastEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event.type", eventType)))
}

// RecordStuckDetection records one stuck-pattern detection (C8).
func (mp *MetricsProvider) RecordStuckDetection(ctx context.Context, pattern string, strategy string) {
	mp.stuckDetections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stuck.pattern", pattern),
		attribute.String("stuck.strategy", strategy),
	))
}

// RecordCheckpoint records one checkpoint creation (C9).
func (mp *MetricsProvider) RecordCheckpoint(ctx context.Context, taskID string, checkpointType string) {
	mp.checkpoints.Add(ctx, 1, metric.WithAttributes(
		attribute.String("checkpoint.type", checkpointType),
	))
}

// RecordOutboxDiscard records a status update discarded past the attempt cap (C10).
func (mp *MetricsProvider) RecordOutboxDiscard(ctx context.Context, taskID string) {
	mp.outboxDiscards.Add(ctx, 1)
}

// RecordLockContention records a failed lock acquisition (C4).
func (mp *MetricsProvider) RecordLockContention(ctx context.Context, taskID string) {
	mp.lockContention.Add(ctx, 1)
}

// IncrementActiveLocks increments the held-lock gauge.
func (mp *MetricsProvider) IncrementActiveLocks(ctx context.Context) {
	mp.activeLocks.Add(ctx, 1)
}

// DecrementActiveLocks decrements the held-lock gauge.
func (mp *MetricsProvider) DecrementActiveLocks(ctx context.Context) {
	mp.activeLocks.Add(ctx, -1)
}

// Metrics defines the interface for metrics recording, so callers can
// swap in NoopMetrics when telemetry is disabled (§10 config).
type Metrics interface {
	RecordSyncCall(ctx context.Context, op string, success bool, duration time.Duration)
	RecordBroadcastEvent(ctx context.Context, eventType string)
	RecordStuckDetection(ctx context.Context, pattern string, strategy string)
	RecordCheckpoint(ctx context.Context, taskID string, checkpointType string)
	RecordOutboxDiscard(ctx context.Context, taskID string)
	RecordLockContention(ctx context.Context, taskID string)
	IncrementActiveLocks(ctx context.Context)
	DecrementActiveLocks(ctx context.Context)
}

// NoopMetrics discards every recording call.
type NoopMetrics struct{}

func (NoopMetrics) RecordSyncCall(context.Context, string, bool, time.Duration) {}
func (NoopMetrics) RecordBroadcastEvent(context.Context, string)               {}
func (NoopMetrics) RecordStuckDetection(context.Context, string, string)       {}
func (NoopMetrics) RecordCheckpoint(context.Context, string, string)           {}
func (NoopMetrics) RecordOutboxDiscard(context.Context, string)                {}
func (NoopMetrics) RecordLockContention(context.Context, string)               {}
func (NoopMetrics) IncrementActiveLocks(context.Context)                       {}
func (NoopMetrics) DecrementActiveLocks(context.Context)                       {}

var (
	_ Metrics = (*MetricsProvider)(nil)
	_ Metrics = NoopMetrics{}
)
