package config

import "time"

// MountType selects the backend of a mount.
type MountType string

const (
	MountDir    MountType = "dir"
	MountSQLite MountType = "sqlite"
)

// MountConfig declares one virtual file system root.
type MountConfig struct {
	Name     string    `yaml:"name" koanf:"name"`
	Type     MountType `yaml:"type" koanf:"type"`
	Path     string    `yaml:"path" koanf:"path"`
	ReadOnly bool      `yaml:"read_only" koanf:"read_only"`
}

// Config is the top-level peekvfs configuration, corresponding to .peekvfs.yml.
type Config struct {
	Port            int           `yaml:"port" koanf:"port"`
	OpenBrowser     bool          `yaml:"open_browser" koanf:"open_browser"`
	StartFile       string        `yaml:"start_file" koanf:"start_file"`
	IndexFile       string        `yaml:"index_file" koanf:"index_file"`
	Editor          bool          `yaml:"editor" koanf:"editor"`
	HandleLinks     bool          `yaml:"handle_links" koanf:"handle_links"`
	StrictLinks     bool          `yaml:"strict_links" koanf:"strict_links"`
	HighlightCode   bool          `yaml:"highlight_code" koanf:"highlight_code"`
	HighlightStyle  string        `yaml:"highlight_style" koanf:"highlight_style"`
	Watch           bool          `yaml:"watch" koanf:"watch"`
	EventBuffer     int           `yaml:"event_buffer" koanf:"event_buffer"`
	SessionTTL      time.Duration `yaml:"session_ttl" koanf:"session_ttl"`
	Ignore          []string      `yaml:"ignore" koanf:"ignore"`
	Mounts          []MountConfig `yaml:"mounts" koanf:"mounts"`
	AllowAllOrigins bool          `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
