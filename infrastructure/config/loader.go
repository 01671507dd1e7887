// Package config loads and validates coordinator and task configuration
// documents (config.yaml, .forge/tasks/<id>.yaml).
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	domainconfig "github.com/relaysync/conductor/domain/config"
)

// Loader loads configuration from files.
type Loader struct {
	// ExpandEnv enables environment variable expansion.
	ExpandEnv bool
	// StrictEnv fails if referenced env vars are missing.
	StrictEnv bool
	// Validate enables configuration validation.
	Validate bool
}

// NewLoader creates a new configuration loader with default settings.
func NewLoader() *Loader {
	return &Loader{
		ExpandEnv: true,
		StrictEnv: false,
		Validate:  true,
	}
}

// LoaderOption configures the loader.
type LoaderOption func(*Loader)

// WithEnvExpansion enables or disables environment variable expansion.
func WithEnvExpansion(enabled bool) LoaderOption {
	return func(l *Loader) { l.ExpandEnv = enabled }
}

// WithStrictEnv enables strict environment variable checking.
func WithStrictEnv(enabled bool) LoaderOption {
	return func(l *Loader) { l.StrictEnv = enabled }
}

// WithValidation enables or disables configuration validation.
func WithValidation(enabled bool) LoaderOption {
	return func(l *Loader) { l.Validate = enabled }
}

// NewLoaderWithOptions creates a loader with the specified options.
func NewLoaderWithOptions(opts ...LoaderOption) *Loader {
	l := NewLoader()
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Format represents a configuration file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

func formatFromExt(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", domainconfig.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func (l *Loader) readFile(path string) ([]byte, Format, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", domainconfig.ErrConfigNotFound, path)
		}
		return nil, "", fmt.Errorf("failed to access config file: %w", err)
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("%w: %s is a directory", domainconfig.ErrInvalidFormat, path)
	}
	format, err := formatFromExt(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config file: %w", err)
	}
	return data, format, nil
}

func (l *Loader) prepare(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if l.ExpandEnv {
		expander := &envExpander{strict: l.StrictEnv}
		s, err := expander.Expand(string(data))
		if err != nil {
			return nil, err
		}
		data = []byte(s)
	}
	return data, nil
}

func unmarshalInto(data []byte, format Format, out any) error {
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: %v", domainconfig.ErrInvalidFormat, err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: %v", domainconfig.ErrInvalidFormat, err)
		}
	default:
		return fmt.Errorf("%w: %s", domainconfig.ErrUnsupportedFormat, format)
	}
	return nil
}

// LoadCoordinatorFile loads a CoordinatorConfig from a config.yaml/json file.
func (l *Loader) LoadCoordinatorFile(path string) (*domainconfig.CoordinatorConfig, error) {
	data, format, err := l.readFile(path)
	if err != nil {
		return nil, err
	}
	return l.LoadCoordinatorBytes(data, format)
}

// LoadCoordinatorBytes loads a CoordinatorConfig from raw bytes.
func (l *Loader) LoadCoordinatorBytes(data []byte, format Format) (*domainconfig.CoordinatorConfig, error) {
	data, err := l.prepare(strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}
	cfg := &domainconfig.CoordinatorConfig{}
	if err := unmarshalInto(data, format, cfg); err != nil {
		return nil, err
	}
	if l.Validate {
		if errs := domainconfig.NewValidator().ValidateCoordinator(cfg); errs.HasErrors() {
			return nil, fmt.Errorf("%w: %v", domainconfig.ErrValidationFailed, errs)
		}
	}
	return cfg, nil
}

// LoadTaskFile loads a TaskDefinition from a .forge/tasks/<id>.yaml file.
func (l *Loader) LoadTaskFile(path string) (*domainconfig.TaskDefinition, error) {
	data, format, err := l.readFile(path)
	if err != nil {
		return nil, err
	}
	return l.LoadTaskBytes(data, format)
}

// LoadTaskBytes loads a TaskDefinition from raw bytes.
func (l *Loader) LoadTaskBytes(data []byte, format Format) (*domainconfig.TaskDefinition, error) {
	data, err := l.prepare(strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}
	def := &domainconfig.TaskDefinition{}
	if err := unmarshalInto(data, format, def); err != nil {
		return nil, err
	}
	if l.Validate {
		if errs := domainconfig.NewValidator().ValidateTask(def); errs.HasErrors() {
			return nil, fmt.Errorf("%w: %v", domainconfig.ErrValidationFailed, errs)
		}
	}
	return def, nil
}
