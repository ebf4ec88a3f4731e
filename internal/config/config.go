// Package config loads the peekvfs configuration: defaults, then a YAML file,
// then PEEKVFS_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: PEEKVFS_PORT -> port.
const EnvPrefix = "PEEKVFS_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (PEEKVFS_*). A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validMountTypes = map[MountType]bool{
	MountDir:    true,
	MountSQLite: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.IndexFile == "" {
		return fmt.Errorf("index_file is required")
	}
	if strings.Contains(c.IndexFile, "/") {
		return fmt.Errorf("index_file %q must be a file name", c.IndexFile)
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("event_buffer must be non-negative")
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("session_ttl must be non-negative")
	}
	for _, p := range c.Ignore {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid ignore pattern %q", p)
		}
	}

	if len(c.Mounts) == 0 {
		return fmt.Errorf("at least one mount is required")
	}
	seen := make(map[string]bool)
	for i, m := range c.Mounts {
		if m.Name == "" {
			return fmt.Errorf("mounts[%d]: name is required", i)
		}
		if strings.ContainsAny(m.Name, ":/") {
			return fmt.Errorf("mounts[%d]: name %q must not contain ':' or '/'", i, m.Name)
		}
		if seen[m.Name] {
			return fmt.Errorf("mounts[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
		if !validMountTypes[m.Type] {
			return fmt.Errorf("mounts[%d]: invalid type %q: must be one of dir, sqlite", i, m.Type)
		}
		if m.Path == "" {
			return fmt.Errorf("mounts[%d]: path is required", i)
		}
	}

	return nil
}
