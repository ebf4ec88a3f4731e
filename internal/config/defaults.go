package config

import "time"

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = ".peekvfs.yml"

// DefaultPort matches the port peekvfs has always served on.
const DefaultPort = 6419

// DefaultConfig returns a Config serving the working directory as the
// "docs" mount.
func DefaultConfig() *Config {
	return &Config{
		Port:           DefaultPort,
		OpenBrowser:    true,
		IndexFile:      "_index.md",
		Editor:         true,
		HandleLinks:    true,
		HighlightCode:  true,
		HighlightStyle: "github",
		Watch:          true,
		EventBuffer:    50,
		SessionTTL:     30 * time.Minute,
		Mounts: []MountConfig{
			{Name: "docs", Type: MountDir, Path: "."},
		},
	}
}
