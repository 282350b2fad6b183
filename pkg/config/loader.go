package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/silk-runtime/silk/pkg/permission"
)

// Loader reads a configuration file and applies environment overrides.
// JSON files may carry comments and trailing commas; YAML is selected by
// extension.
type Loader struct {
	Path string
}

// Load parses, overrides, and validates the configuration. An empty path
// yields the defaults (still subject to env overrides).
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.Path != "" {
		data, err := os.ReadFile(l.Path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", l.Path, err)
		}
		if err := unmarshal(l.Path, data, cfg); err != nil {
			return nil, err
		}
		cfg.sourceHash = hashBytes(data)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return nil
}

// envOverrides are the SILK_* variables recognized at startup.
type envOverrides struct {
	ModeAEnabled *bool    `envconfig:"MODE_A_ENABLED"`
	ModeAArgv    []string `envconfig:"MODE_A_ARGV"`
	LogLevel     string   `envconfig:"LOG_LEVEL"`
	OTELEndpoint string   `envconfig:"OTEL_ENDPOINT"`
}

func applyEnvOverrides(cfg *Config) error {
	var ov envOverrides
	if err := envconfig.Process("silk", &ov); err != nil {
		return fmt.Errorf("config: env overrides: %w", err)
	}
	if ov.ModeAEnabled != nil {
		if cfg.ModeA == nil {
			cfg.ModeA = &ModeAConfig{}
		}
		cfg.ModeA.Enabled = *ov.ModeAEnabled
	}
	if len(ov.ModeAArgv) > 0 {
		if cfg.ModeA == nil {
			cfg.ModeA = &ModeAConfig{}
		}
		cfg.ModeA.Argv = ov.ModeAArgv
	}
	if ov.LogLevel != "" {
		cfg.LogLevel = ov.LogLevel
	}
	if ov.OTELEndpoint != "" {
		cfg.OTELEndpoint = ov.OTELEndpoint
	}
	return nil
}

// PolicySpec translates the permissions block into the engine's spec. A nil
// block keeps every baseline default.
func (c *Config) PolicySpec() permission.Spec {
	if c.Permissions == nil {
		return permission.Spec{}
	}
	spec := permission.Spec{
		Allow:         c.Permissions.AllowCommands,
		Deny:          c.Permissions.DenyCommands,
		FSReadRoots:   c.Permissions.FS.ReadRoots,
		FSWriteRoots:  c.Permissions.FS.WriteRoots,
		ShellPrograms: c.Permissions.Shell.AllowPrograms,
	}
	if c.Permissions.Grants != nil {
		spec.Grants = make([]permission.Grant, len(c.Permissions.Grants))
		for i, g := range c.Permissions.Grants {
			spec.Grants[i] = permission.Grant{Namespace: g.Namespace, Commands: g.Commands}
		}
	}
	return spec
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
