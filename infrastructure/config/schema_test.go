package config

import (
	"encoding/json"
	"testing"
)

func TestGenerateCoordinatorSchema(t *testing.T) {
	schema := GenerateCoordinatorSchema()

	if schema.Schema != "https://json-schema.org/draft/2020-12/schema" {
		t.Errorf("Schema = %s, want draft/2020-12", schema.Schema)
	}
	if schema.Type != "object" {
		t.Errorf("Type = %s, want object", schema.Type)
	}
	if schema.Title != "Coordinator Configuration" {
		t.Errorf("Title = %s, want Coordinator Configuration", schema.Title)
	}

	requiredSet := make(map[string]bool)
	for _, r := range schema.Required {
		requiredSet[r] = true
	}
	if !requiredSet["name"] {
		t.Error("name should be required")
	}
	if !requiredSet["version"] {
		t.Error("version should be required")
	}

	expectedProps := []string{"name", "version", "http", "storage", "lock", "broadcast", "outbox", "telemetry"}
	for _, prop := range expectedProps {
		if _, ok := schema.Properties[prop]; !ok {
			t.Errorf("missing property: %s", prop)
		}
	}
}

func TestGenerateCoordinatorSchema_HTTPProperties(t *testing.T) {
	schema := GenerateCoordinatorSchema()
	http := schema.Properties["http"]

	if http.Type != "object" {
		t.Errorf("http.Type = %s, want object", http.Type)
	}

	expectedProps := []string{"host", "port", "cors_origin"}
	for _, prop := range expectedProps {
		if _, ok := http.Properties[prop]; !ok {
			t.Errorf("http missing property: %s", prop)
		}
	}
}

func TestGenerateCoordinatorSchema_StorageProperties(t *testing.T) {
	schema := GenerateCoordinatorSchema()
	storage := schema.Properties["storage"]

	if storage.Type != "object" {
		t.Errorf("storage.Type = %s, want object", storage.Type)
	}
	backend := storage.Properties["backend"]
	if len(backend.Enum) != 2 {
		t.Errorf("storage.backend.Enum has %d values, want 2", len(backend.Enum))
	}
}

func TestGenerateCoordinatorSchema_LockProperties(t *testing.T) {
	schema := GenerateCoordinatorSchema()
	lock := schema.Properties["lock"]

	if lock.Type != "object" {
		t.Errorf("lock.Type = %s, want object", lock.Type)
	}
	expectedProps := []string{"backend", "redis_addr", "ttl"}
	for _, prop := range expectedProps {
		if _, ok := lock.Properties[prop]; !ok {
			t.Errorf("lock missing property: %s", prop)
		}
	}
}

func TestGenerateCoordinatorSchema_TelemetryProperties(t *testing.T) {
	schema := GenerateCoordinatorSchema()
	telemetry := schema.Properties["telemetry"]

	if telemetry.Type != "object" {
		t.Errorf("telemetry.Type = %s, want object", telemetry.Type)
	}
	exporter := telemetry.Properties["exporter"]
	if len(exporter.Enum) != 2 {
		t.Errorf("telemetry.exporter.Enum has %d values, want 2", len(exporter.Enum))
	}
}

func TestCoordinatorSchemaJSON(t *testing.T) {
	jsonStr, err := CoordinatorSchemaJSON()
	if err != nil {
		t.Fatalf("CoordinatorSchemaJSON() error = %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		t.Fatalf("CoordinatorSchemaJSON() returned invalid JSON: %v", err)
	}
	if parsed["$schema"] == nil {
		t.Error("schema missing $schema")
	}
	if parsed["title"] != "Coordinator Configuration" {
		t.Errorf("title = %v, want Coordinator Configuration", parsed["title"])
	}
	if parsed["type"] != "object" {
		t.Errorf("type = %v, want object", parsed["type"])
	}
}

func TestGenerateTaskSchema(t *testing.T) {
	schema := GenerateTaskSchema()

	if schema.Title != "Task Definition" {
		t.Errorf("Title = %s, want Task Definition", schema.Title)
	}

	requiredSet := make(map[string]bool)
	for _, r := range schema.Required {
		requiredSet[r] = true
	}
	if !requiredSet["task_id"] {
		t.Error("task_id should be required")
	}
	if !requiredSet["project_id"] {
		t.Error("project_id should be required")
	}

	expectedProps := []string{"criteria", "criteria_mode", "max_iterations", "dependencies", "checkpoint_interval", "stuck_strategies"}
	for _, prop := range expectedProps {
		if _, ok := schema.Properties[prop]; !ok {
			t.Errorf("missing property: %s", prop)
		}
	}

	criteria := schema.Properties["criteria"]
	if criteria.Type != "array" {
		t.Errorf("criteria.Type = %s, want array", criteria.Type)
	}
	if criteria.Items == nil {
		t.Fatal("criteria.Items should not be nil")
	}
	if _, ok := criteria.Items.Properties["config"]; !ok {
		t.Error("criteria item missing config property")
	}
}

func TestTaskSchemaJSON(t *testing.T) {
	jsonStr, err := TaskSchemaJSON()
	if err != nil {
		t.Fatalf("TaskSchemaJSON() error = %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		t.Fatalf("TaskSchemaJSON() returned invalid JSON: %v", err)
	}
	if parsed["title"] != "Task Definition" {
		t.Errorf("title = %v, want Task Definition", parsed["title"])
	}

	if len(jsonStr) > 0 && jsonStr[0] != '{' {
		t.Error("TaskSchemaJSON() should start with {")
	}
	if !containsNewline(jsonStr) {
		t.Error("TaskSchemaJSON() should be indented (contain newlines)")
	}
}

func containsNewline(s string) bool {
	for _, r := range s {
		if r == '\n' {
			return true
		}
	}
	return false
}
