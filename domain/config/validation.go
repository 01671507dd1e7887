package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates coordinator and task configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateCoordinator validates a CoordinatorConfig.
func (v *Validator) ValidateCoordinator(cfg *CoordinatorConfig) ValidationErrors {
	v.errors = nil

	if cfg.Name == "" {
		v.addError("name", "name is required")
	}
	if cfg.Version == "" {
		v.addError("version", "version is required")
	}
	if cfg.HTTP.Port < 0 || cfg.HTTP.Port > 65535 {
		v.addError("http.port", "port must be between 0 and 65535")
	}
	switch cfg.Storage.Backend {
	case "", "memory", "sqlite":
	default:
		v.addError("storage.backend", fmt.Sprintf("unknown backend: %s", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.Path == "" {
		v.addError("storage.path", "path is required for the sqlite backend")
	}
	switch cfg.Lock.Backend {
	case "", "memory", "redis":
	default:
		v.addError("lock.backend", fmt.Sprintf("unknown backend: %s", cfg.Lock.Backend))
	}
	if cfg.Lock.Backend == "redis" && cfg.Lock.RedisAddr == "" {
		v.addError("lock.redis_addr", "redis_addr is required for the redis lock backend")
	}
	switch cfg.Telemetry.Exporter {
	case "", "none", "stdout":
	default:
		v.addError("telemetry.exporter", fmt.Sprintf("unknown exporter: %s", cfg.Telemetry.Exporter))
	}

	return v.errors
}

// ValidateTask validates a TaskDefinition.
func (v *Validator) ValidateTask(def *TaskDefinition) ValidationErrors {
	v.errors = nil

	if def.TaskID == "" {
		v.addError("task_id", "task_id is required")
	}
	if def.ProjectID == "" {
		v.addError("project_id", "project_id is required")
	}
	if def.MaxIterations < 0 {
		v.addError("max_iterations", "max_iterations must be non-negative")
	}
	if def.CheckpointInterval < 0 {
		v.addError("checkpoint_interval", "checkpoint_interval must be non-negative")
	}
	switch def.CriteriaMode {
	case "", "all", "any", "weighted":
	default:
		v.addError("criteria_mode", fmt.Sprintf("unknown mode: %s", def.CriteriaMode))
	}
	for i, c := range def.Criteria {
		path := fmt.Sprintf("criteria[%d]", i)
		if c.Name == "" {
			v.addError(path+".name", "criterion name is required")
		}
	}
	for pattern, strategy := range def.StuckStrategies {
		if pattern == "" {
			v.addError("stuck_strategies", "pattern key must not be empty")
		}
		if strategy == "" {
			v.addError(fmt.Sprintf("stuck_strategies.%s", pattern), "strategy must not be empty")
		}
	}

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
