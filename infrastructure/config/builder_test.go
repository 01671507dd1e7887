package config

import (
	"testing"

	domainconfig "github.com/relaysync/conductor/domain/config"
	"github.com/relaysync/conductor/domain/criteria"
)

func TestCoordinatorBuilder_DefaultsToMemoryStore(t *testing.T) {
	cfg := &domainconfig.CoordinatorConfig{Name: "c1", Version: "1.0"}

	builder := NewCoordinatorBuilder(cfg)
	result, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if result.TaskStore == nil {
		t.Fatal("TaskStore should not be nil")
	}
	if result.Locker == nil {
		t.Fatal("Locker should not be nil")
	}
	if result.Broadcast == nil {
		t.Fatal("Broadcast should not be nil")
	}
}

func TestCoordinatorBuilder_DefaultHTTPAddr(t *testing.T) {
	cfg := &domainconfig.CoordinatorConfig{Name: "c1", Version: "1.0"}

	builder := NewCoordinatorBuilder(cfg)
	result, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if result.HTTPAddr != "0.0.0.0:3344" {
		t.Errorf("HTTPAddr = %s, want 0.0.0.0:3344", result.HTTPAddr)
	}
}

func TestCoordinatorBuilder_CustomHTTPAddr(t *testing.T) {
	cfg := &domainconfig.CoordinatorConfig{
		Name:    "c1",
		Version: "1.0",
		HTTP:    domainconfig.HTTPConfig{Host: "127.0.0.1", Port: 9000, CORSOrigin: "https://example.com"},
	}

	builder := NewCoordinatorBuilder(cfg)
	result, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if result.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("HTTPAddr = %s, want 127.0.0.1:9000", result.HTTPAddr)
	}
	if result.CORSOrigin != "https://example.com" {
		t.Errorf("CORSOrigin = %s, want https://example.com", result.CORSOrigin)
	}
}

func TestCoordinatorBuilder_DefaultOutboxMaxAttempts(t *testing.T) {
	cfg := &domainconfig.CoordinatorConfig{Name: "c1", Version: "1.0"}

	builder := NewCoordinatorBuilder(cfg)
	result, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if result.OutboxMaxTries != 10 {
		t.Errorf("OutboxMaxTries = %d, want 10", result.OutboxMaxTries)
	}
}

func TestCoordinatorBuilder_SQLiteBackend(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &domainconfig.CoordinatorConfig{
		Name:    "c1",
		Version: "1.0",
		Storage: domainconfig.StorageConfig{Backend: "sqlite", Path: tmpDir + "/db.sqlite"},
	}

	builder := NewCoordinatorBuilder(cfg)
	result, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if result.TaskStore == nil {
		t.Fatal("TaskStore should not be nil")
	}
}

func TestCoordinatorBuilder_UnknownStorageBackend(t *testing.T) {
	cfg := &domainconfig.CoordinatorConfig{
		Name:    "c1",
		Version: "1.0",
		Storage: domainconfig.StorageConfig{Backend: "mongo"},
	}

	builder := NewCoordinatorBuilder(cfg)
	_, err := builder.Build()
	if err == nil {
		t.Error("Build() should return error for unknown storage backend")
	}
}

func TestCoordinatorBuilder_RedisLockRequiresAddr(t *testing.T) {
	cfg := &domainconfig.CoordinatorConfig{
		Name:    "c1",
		Version: "1.0",
		Lock:    domainconfig.LockConfig{Backend: "redis"},
	}

	builder := NewCoordinatorBuilder(cfg)
	_, err := builder.Build()
	if err == nil {
		t.Error("Build() should return error when redis_addr is missing")
	}
}

func TestCoordinatorBuilder_UnknownLockBackend(t *testing.T) {
	cfg := &domainconfig.CoordinatorConfig{
		Name:    "c1",
		Version: "1.0",
		Lock:    domainconfig.LockConfig{Backend: "zookeeper"},
	}

	builder := NewCoordinatorBuilder(cfg)
	_, err := builder.Build()
	if err == nil {
		t.Error("Build() should return error for unknown lock backend")
	}
}

func TestTaskBuilder_DefaultsToAllMode(t *testing.T) {
	def := &domainconfig.TaskDefinition{
		TaskID:    "t-1",
		ProjectID: "p-1",
		Criteria: []criteria.Criterion{
			{Name: "tests-pass", Weight: 1, Required: true, Config: criteria.Config{Variant: criteria.VariantTestPass, Command: "go test ./..."}},
		},
	}

	result := NewTaskBuilder(def).Build()
	if result.CriteriaMode != criteria.ModeAll {
		t.Errorf("CriteriaMode = %s, want all", result.CriteriaMode)
	}
	if len(result.Criteria) != 1 {
		t.Fatalf("Criteria has %d entries, want 1", len(result.Criteria))
	}
}

func TestTaskBuilder_ExplicitMode(t *testing.T) {
	def := &domainconfig.TaskDefinition{
		TaskID:       "t-1",
		ProjectID:    "p-1",
		CriteriaMode: "weighted",
	}

	result := NewTaskBuilder(def).Build()
	if result.CriteriaMode != criteria.ModeWeighted {
		t.Errorf("CriteriaMode = %s, want weighted", result.CriteriaMode)
	}
}

func TestTaskBuilder_TokenBudget(t *testing.T) {
	def := &domainconfig.TaskDefinition{
		TaskID:    "t-1",
		ProjectID: "p-1",
		MaxTokens: 5000,
	}

	result := NewTaskBuilder(def).Build()
	if result.MaxTokens != 5000 {
		t.Errorf("MaxTokens = %d, want 5000", result.MaxTokens)
	}
}

func TestTaskBuilder_StuckStrategiesAndDependencies(t *testing.T) {
	def := &domainconfig.TaskDefinition{
		TaskID:             "t-1",
		ProjectID:          "p-1",
		Dependencies:       []string{"t-0"},
		CheckpointInterval: 5,
		StuckStrategies:    map[string]string{"no-progress": "simplify"},
	}

	result := NewTaskBuilder(def).Build()
	if len(result.Dependencies) != 1 || result.Dependencies[0] != "t-0" {
		t.Errorf("Dependencies = %v, want [t-0]", result.Dependencies)
	}
	if result.CheckpointEvery != 5 {
		t.Errorf("CheckpointEvery = %d, want 5", result.CheckpointEvery)
	}
	if result.StuckStrategies["no-progress"] != "simplify" {
		t.Errorf("StuckStrategies[no-progress] = %s, want simplify", result.StuckStrategies["no-progress"])
	}
}
