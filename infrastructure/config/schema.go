package config

import (
	"encoding/json"
)

// JSONSchema represents a JSON Schema document.
type JSONSchema struct {
	Schema               string                 `json:"$schema,omitempty"`
	ID                   string                 `json:"$id,omitempty"`
	Title                string                 `json:"title,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Type                 string                 `json:"type,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	AdditionalProperties *JSONSchema            `json:"additionalProperties,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Default              any                    `json:"default,omitempty"`
	Minimum              *float64               `json:"minimum,omitempty"`
	Maximum              *float64               `json:"maximum,omitempty"`
	MinLength            *int                   `json:"minLength,omitempty"`
	MaxLength            *int                   `json:"maxLength,omitempty"`
	Pattern              string                 `json:"pattern,omitempty"`
	Format               string                 `json:"format,omitempty"`
	Ref                  string                 `json:"$ref,omitempty"`
	Definitions          map[string]*JSONSchema `json:"$defs,omitempty"`
	OneOf                []*JSONSchema          `json:"oneOf,omitempty"`
	AnyOf                []*JSONSchema          `json:"anyOf,omitempty"`
	AllOf                []*JSONSchema          `json:"allOf,omitempty"`
}

// GenerateCoordinatorSchema generates a JSON Schema for config.yaml.
func GenerateCoordinatorSchema() *JSONSchema {
	return &JSONSchema{
		Schema:      "https://json-schema.org/draft/2020-12/schema",
		ID:          "https://github.com/relaysync/conductor/coordinator-config.schema.json",
		Title:       "Coordinator Configuration",
		Description: "Configuration schema for the conductor coordinator process",
		Type:        "object",
		Required:    []string{"name", "version"},
		Properties: map[string]*JSONSchema{
			"name": {
				Type:        "string",
				Description: "A human-readable name for this deployment",
			},
			"version": {
				Type:        "string",
				Description: "The configuration schema version",
				Default:     "1.0",
			},
			"http":      generateHTTPSchema(),
			"storage":   generateStorageSchema(),
			"lock":      generateLockSchema(),
			"broadcast": generateBroadcastSchema(),
			"outbox":    generateOutboxSchema(),
			"telemetry": generateTelemetrySchema(),
		},
	}
}

func generateHTTPSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "HTTP listener settings",
		Properties: map[string]*JSONSchema{
			"host": {
				Type:        "string",
				Description: "Bind address (env HOST)",
				Default:     "0.0.0.0",
			},
			"port": {
				Type:        "integer",
				Description: "Listen port (env PORT)",
				Default:     3344,
				Minimum:     floatPtr(0),
				Maximum:     floatPtr(65535),
			},
			"cors_origin": {
				Type:        "string",
				Description: "Allowed CORS origin (env CORS_ORIGIN)",
			},
		},
	}
}

func generateStorageSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Durable store backend selection",
		Properties: map[string]*JSONSchema{
			"backend": {
				Type:    "string",
				Enum:    []string{"memory", "sqlite"},
				Default: "memory",
			},
			"path": {
				Type:        "string",
				Description: "sqlite database file path (env DB_PATH)",
			},
		},
	}
}

func generateLockSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Distributed lock backend selection",
		Properties: map[string]*JSONSchema{
			"backend": {
				Type:    "string",
				Enum:    []string{"memory", "redis"},
				Default: "memory",
			},
			"redis_addr": {
				Type:        "string",
				Description: "redis server address, required when backend is redis",
			},
			"ttl": {
				Type:        "string",
				Format:      "duration",
				Description: "default lock lease duration",
				Default:     "30s",
			},
		},
	}
}

func generateBroadcastSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "In-process fan-out bus settings",
		Properties: map[string]*JSONSchema{
			"subscriber_buffer": {
				Type:        "integer",
				Description: "per-subscriber channel buffer size (not read by the coordinator; the bus buffer is fixed at 64)",
				Default:     64,
				Minimum:     floatPtr(1),
			},
		},
	}
}

func generateOutboxSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Status-sync outbox settings",
		Properties: map[string]*JSONSchema{
			"path": {
				Type:        "string",
				Description: "badger data directory for the outbox",
			},
			"max_attempts": {
				Type:        "integer",
				Description: "delivery attempts before a status update is discarded",
				Default:     10,
				Minimum:     floatPtr(1),
			},
		},
	}
}

func generateTelemetrySchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "OpenTelemetry wiring",
		Properties: map[string]*JSONSchema{
			"enabled": {
				Type:    "boolean",
				Default: false,
			},
			"exporter": {
				Type:    "string",
				Enum:    []string{"none", "stdout"},
				Default: "none",
			},
		},
	}
}

// GenerateTaskSchema generates a JSON Schema for a task's .forge/tasks/<id>.yaml.
func GenerateTaskSchema() *JSONSchema {
	return &JSONSchema{
		Schema:      "https://json-schema.org/draft/2020-12/schema",
		ID:          "https://github.com/relaysync/conductor/task-definition.schema.json",
		Title:       "Task Definition",
		Description: "Per-task completion criteria and execution budget",
		Type:        "object",
		Required:    []string{"task_id", "project_id"},
		Properties: map[string]*JSONSchema{
			"task_id":    {Type: "string"},
			"project_id": {Type: "string"},
			"goal":       {Type: "string"},
			"criteria": {
				Type:        "array",
				Description: "Named, weighted completion criteria",
				Items:       generateCriterionSchema(),
			},
			"criteria_mode": {
				Type:    "string",
				Enum:    []string{"all", "any", "weighted"},
				Default: "all",
			},
			"max_iterations": {
				Type:    "integer",
				Minimum: floatPtr(0),
			},
			"dependencies": {
				Type:  "array",
				Items: &JSONSchema{Type: "string"},
			},
			"checkpoint_interval": {
				Type:        "integer",
				Description: "iterations between automatic checkpoints",
				Minimum:     floatPtr(0),
			},
			"stuck_strategies": {
				Type:        "object",
				Description: "stuck pattern name to recovery strategy name",
				AdditionalProperties: &JSONSchema{
					Type: "string",
					Enum: []string{"retry-variation", "simplify", "rollback", "abort"},
				},
			},
			"max_duration": {Type: "string", Format: "duration"},
			"max_tokens":   {Type: "integer", Minimum: floatPtr(0)},
		},
	}
}

func generateCriterionSchema() *JSONSchema {
	return &JSONSchema{
		Type:     "object",
		Required: []string{"name", "config"},
		Properties: map[string]*JSONSchema{
			"name":     {Type: "string"},
			"weight":   {Type: "integer", Minimum: floatPtr(0)},
			"required": {Type: "boolean"},
			"config": {
				Type:     "object",
				Required: []string{"variant"},
				Properties: map[string]*JSONSchema{
					"variant": {
						Type: "string",
						Enum: []string{
							"promise", "command", "file-exists", "file-contains",
							"test-pass", "lint-clean", "coverage", "custom-script",
						},
					},
					"text":       {Type: "string"},
					"command":    {Type: "string"},
					"args":       {Type: "array", Items: &JSONSchema{Type: "string"}},
					"expectExit": {Type: "integer"},
					"path":       {Type: "string"},
					"pattern":    {Type: "string"},
					"regex":      {Type: "boolean"},
					"maxErrors":  {Type: "integer", Minimum: floatPtr(0)},
					"minPercent": {Type: "number", Minimum: floatPtr(0), Maximum: floatPtr(100)},
				},
			},
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}

// CoordinatorSchemaJSON returns the coordinator config's JSON Schema as a string.
func CoordinatorSchemaJSON() (string, error) {
	data, err := json.MarshalIndent(GenerateCoordinatorSchema(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// TaskSchemaJSON returns the task definition's JSON Schema as a string.
func TaskSchemaJSON() (string, error) {
	data, err := json.MarshalIndent(GenerateTaskSchema(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
