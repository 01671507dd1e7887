// Package config provides domain models for coordinator and task
// configuration (§10, §4.6 step "config").
package config

import "github.com/relaysync/conductor/domain/criteria"

// CoordinatorConfig is the coordinator process's top-level configuration,
// loaded from config.yaml.
type CoordinatorConfig struct {
	// Name is a human-readable name for this deployment.
	Name string `json:"name" yaml:"name"`
	// Version is the configuration schema version.
	Version string `json:"version" yaml:"version"`

	HTTP      HTTPConfig      `json:"http,omitempty" yaml:"http,omitempty"`
	Storage   StorageConfig   `json:"storage,omitempty" yaml:"storage,omitempty"`
	Lock      LockConfig      `json:"lock,omitempty" yaml:"lock,omitempty"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty" yaml:"broadcast,omitempty"`
	Outbox    OutboxConfig    `json:"outbox,omitempty" yaml:"outbox,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
}

// HTTPConfig configures the coordinator's HTTP listener (§6).
type HTTPConfig struct {
	// Host is the bind address, default "0.0.0.0" (env HOST).
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	// Port is the listen port, default 3344 (env PORT).
	Port int `json:"port,omitempty" yaml:"port,omitempty"`
	// CORSOrigin is the allowed CORS origin (env CORS_ORIGIN).
	CORSOrigin string `json:"cors_origin,omitempty" yaml:"cors_origin,omitempty"`
}

// StorageConfig selects and configures the durable store backend (C11).
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// Path is the sqlite database file path (env DB_PATH).
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LockConfig selects and configures the distributed lock backend (C4).
type LockConfig struct {
	// Backend is "memory" or "redis".
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// RedisAddr is the redis server address, when Backend is "redis".
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	// TTL is the default lock lease duration, e.g. "30s".
	TTL Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// BroadcastConfig configures the in-process fan-out bus (C5).
type BroadcastConfig struct {
	// SubscriberBuffer is the per-subscriber channel buffer size.
	SubscriberBuffer int `json:"subscriber_buffer,omitempty" yaml:"subscriber_buffer,omitempty"`
}

// OutboxConfig configures the status-sync outbox (C10).
type OutboxConfig struct {
	// Path is the badger data directory for the outbox.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// MaxAttempts caps delivery retries before a status update is discarded.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
}

// TelemetryConfig configures the OpenTelemetry wiring (§11).
type TelemetryConfig struct {
	// Enabled turns on span/metric emission.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Exporter is "stdout" or "none".
	Exporter string `json:"exporter,omitempty" yaml:"exporter,omitempty"`
}

// TaskDefinition is the embedded per-task configuration described in
// §4.6 step 1 ("config: criteria list, max-iterations, dependencies,
// checkpoint interval, stuck strategy"), loaded from
// .forge/tasks/<id>.yaml on the agent side.
type TaskDefinition struct {
	TaskID    string `json:"task_id" yaml:"task_id"`
	ProjectID string `json:"project_id" yaml:"project_id"`
	Goal      string `json:"goal,omitempty" yaml:"goal,omitempty"`

	Criteria     []criteria.Criterion `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	CriteriaMode string               `json:"criteria_mode,omitempty" yaml:"criteria_mode,omitempty"`

	MaxIterations      int      `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	Dependencies       []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	CheckpointInterval int      `json:"checkpoint_interval,omitempty" yaml:"checkpoint_interval,omitempty"`

	// StuckStrategies maps a stuck.Pattern name to a stuck.Strategy name.
	// Kept as strings here so this package does not depend on
	// infrastructure/stuck; the builder resolves them.
	StuckStrategies map[string]string `json:"stuck_strategies,omitempty" yaml:"stuck_strategies,omitempty"`

	MaxDuration Duration `json:"max_duration,omitempty" yaml:"max_duration,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}
