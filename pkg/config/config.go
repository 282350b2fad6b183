// Package config loads and validates the runtime configuration consumed by
// the IPC core: the permissions block, the Mode A block, and ambient knobs.
package config

import (
	"errors"
	"strings"
)

// Config models the silk configuration file.
type Config struct {
	App          AppConfig          `json:"app" yaml:"app"`                               // Application identity surfaced by silk:appInfo.
	Permissions  *PermissionsConfig `json:"permissions,omitempty" yaml:"permissions"`     // Command/path/program policy; nil keeps the baseline.
	ModeA        *ModeAConfig       `json:"mode_a,omitempty" yaml:"mode_a"`               // External handler host; nil or disabled means no bridge.
	Dev          *DevConfig         `json:"dev,omitempty" yaml:"dev"`                     // Development conveniences.
	LogLevel     string             `json:"log_level,omitempty" yaml:"log_level"`         // debug, info, warn, or error. Default info.
	OTELEndpoint string             `json:"otel_endpoint,omitempty" yaml:"otel_endpoint"` // OTLP/HTTP trace endpoint; empty disables export.

	sourceHash string
}

// SourceHash fingerprints the file bytes the config was loaded from. The
// watcher uses it to skip no-op reloads. Empty for default configs.
func (c *Config) SourceHash() string { return c.sourceHash }

// AppConfig identifies the hosting application.
type AppConfig struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// PermissionsConfig mirrors the permissions block of the configuration
// file. A nil slice leaves the corresponding baseline in place; an empty
// slice replaces it with nothing.
type PermissionsConfig struct {
	AllowCommands []string      `json:"allow_commands,omitempty" yaml:"allow_commands"`
	DenyCommands  []string      `json:"deny_commands,omitempty" yaml:"deny_commands"`
	Grants        []GrantConfig `json:"grants,omitempty" yaml:"grants"`
	FS            FSRootsConfig `json:"fs" yaml:"fs"`
	Shell         ShellConfig   `json:"shell" yaml:"shell"`
}

// GrantConfig is a namespace-scoped grant.
type GrantConfig struct {
	Namespace string   `json:"namespace" yaml:"namespace"`
	Commands  []string `json:"commands,omitempty" yaml:"commands"`
}

// FSRootsConfig bounds filesystem access.
type FSRootsConfig struct {
	ReadRoots  []string `json:"read_roots,omitempty" yaml:"read_roots"`
	WriteRoots []string `json:"write_roots,omitempty" yaml:"write_roots"`
}

// ShellConfig bounds program spawning.
type ShellConfig struct {
	AllowPrograms []string `json:"allow_programs,omitempty" yaml:"allow_programs"`
}

// ModeAConfig configures the external handler bridge.
type ModeAConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Argv    []string `json:"argv,omitempty" yaml:"argv"`
}

// DevConfig groups development-only behaviour.
type DevConfig struct {
	WatchConfig bool `json:"watch_config" yaml:"watch_config"` // hot-reload the policy on file change
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		App:      AppConfig{Name: "silk-app", Version: "0.0.0"},
		LogLevel: "info",
	}
}

var logLevels = map[string]struct{}{
	"": {}, "debug": {}, "info": {}, "warn": {}, "error": {},
}

// Validate checks the configuration for logical consistency, aggregating
// every failure so callers can surface them all at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	var errs []error

	if strings.TrimSpace(cfg.App.Name) == "" {
		errs = append(errs, errors.New("app.name is required"))
	}
	if _, ok := logLevels[cfg.LogLevel]; !ok {
		errs = append(errs, errors.New("log_level must be one of debug, info, warn, error"))
	}

	if cfg.ModeA != nil && cfg.ModeA.Enabled && len(cfg.ModeA.Argv) == 0 {
		errs = append(errs, errors.New("mode_a.argv is required when mode_a.enabled is true"))
	}

	if cfg.Permissions != nil {
		for _, g := range cfg.Permissions.Grants {
			if strings.TrimSpace(g.Namespace) == "" {
				errs = append(errs, errors.New("permissions.grants entries need a namespace"))
			}
			if strings.Contains(g.Namespace, ":") {
				errs = append(errs, errors.New("permissions.grants namespaces must not contain ':'"))
			}
		}
		for _, cmd := range cfg.Permissions.AllowCommands {
			if strings.TrimSpace(cmd) == "" {
				errs = append(errs, errors.New("permissions.allow_commands entries must be non-empty"))
			}
		}
		for _, cmd := range cfg.Permissions.DenyCommands {
			if strings.TrimSpace(cmd) == "" {
				errs = append(errs, errors.New("permissions.deny_commands entries must be non-empty"))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
