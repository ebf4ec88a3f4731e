package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/razvandimescu/peekvfs/internal/vfs"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != DefaultPort {
		t.Errorf("expected default port %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.IndexFile != "_index.md" {
		t.Errorf("expected default index_file %q, got %q", "_index.md", cfg.IndexFile)
	}
	if !cfg.HandleLinks || !cfg.HighlightCode || cfg.StrictLinks {
		t.Errorf("unexpected link/highlight defaults: %+v", cfg)
	}
	if len(cfg.Mounts) != 1 || cfg.Mounts[0].Type != MountDir {
		t.Errorf("expected one dir mount, got %+v", cfg.Mounts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.peekvfs.yml")

	original := DefaultConfig()
	original.Port = 7000
	original.StartFile = "docs:README.md"
	original.StrictLinks = true
	original.SessionTTL = 5 * time.Minute
	original.Ignore = []string{"drafts", "**/tmp"}
	original.Mounts = []MountConfig{
		{Name: "docs", Type: MountDir, Path: "./docs"},
		{Name: "notes", Type: MountSQLite, Path: "notes.db", ReadOnly: true},
	}

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Port != 7000 {
		t.Errorf("port: got %d, want 7000", loaded.Port)
	}
	if loaded.StartFile != original.StartFile {
		t.Errorf("start_file: got %q, want %q", loaded.StartFile, original.StartFile)
	}
	if !loaded.StrictLinks {
		t.Error("strict_links: got false, want true")
	}
	if loaded.SessionTTL != 5*time.Minute {
		t.Errorf("session_ttl: got %v, want 5m", loaded.SessionTTL)
	}
	if len(loaded.Ignore) != 2 || loaded.Ignore[1] != "**/tmp" {
		t.Errorf("ignore: got %v", loaded.Ignore)
	}
	if len(loaded.Mounts) != 2 {
		t.Fatalf("mounts: got %+v", loaded.Mounts)
	}
	if m := loaded.Mounts[1]; m.Name != "notes" || m.Type != MountSQLite || !m.ReadOnly {
		t.Errorf("mounts[1]: got %+v", m)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yml")
	if err := os.WriteFile(path, []byte("port: [unclosed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PEEKVFS_PORT", "9999")
	t.Setenv("PEEKVFS_EDITOR", "false")
	t.Setenv("PEEKVFS_HIGHLIGHT_STYLE", "monokai")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("port: got %d, want 9999", cfg.Port)
	}
	if cfg.Editor {
		t.Error("editor: got true, want false")
	}
	if cfg.HighlightStyle != "monokai" {
		t.Errorf("highlight_style: got %q", cfg.HighlightStyle)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Port = 70000 }, "invalid port"},
		{"empty index", func(c *Config) { c.IndexFile = "" }, "index_file is required"},
		{"index with dir", func(c *Config) { c.IndexFile = "a/_index.md" }, "must be a file name"},
		{"bad pattern", func(c *Config) { c.Ignore = []string{"[unclosed"} }, "invalid ignore pattern"},
		{"no mounts", func(c *Config) { c.Mounts = nil }, "at least one mount"},
		{"unnamed mount", func(c *Config) { c.Mounts[0].Name = "" }, "name is required"},
		{"colon in name", func(c *Config) { c.Mounts[0].Name = "a:b" }, "must not contain"},
		{"bad type", func(c *Config) { c.Mounts[0].Type = "s3" }, "invalid type"},
		{"no path", func(c *Config) { c.Mounts[0].Path = "" }, "path is required"},
		{"duplicate", func(c *Config) {
			c.Mounts = append(c.Mounts, MountConfig{Name: "docs", Type: MountDir, Path: "x"})
		}, "duplicate name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOpenRegistry(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	if err := os.MkdirAll(filepath.Join(docs, "drafts"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docs, "a.md"), []byte("# A"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Ignore = []string{"drafts"}
	cfg.Mounts = []MountConfig{
		{Name: "docs", Type: MountDir, Path: docs},
		{Name: "notes", Type: MountSQLite, Path: filepath.Join(dir, "notes.db")},
	}

	reg, err := cfg.OpenRegistry()
	if err != nil {
		t.Fatalf("OpenRegistry failed: %v", err)
	}
	defer reg.Close()

	if got := reg.Mounts(); len(got) != 2 || got[0] != "docs" || got[1] != "notes" {
		t.Errorf("mounts: got %v", got)
	}

	ctx := context.Background()
	entries, err := reg.OpenDirectory(ctx, vfs.DocumentRef{Mount: "docs", IsDir: true})
	if err != nil {
		t.Fatalf("OpenDirectory failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "a.md" {
		t.Errorf("ignore pattern not applied: %+v", entries)
	}

	if err := reg.SetContent(ctx, "notes", "n.md", "# N"); err != nil {
		t.Fatalf("SetContent on sqlite mount: %v", err)
	}
	if got, err := reg.GetContent(ctx, "notes", "n.md"); err != nil || got != "# N" {
		t.Errorf("GetContent = %q, %v", got, err)
	}
}

func TestOpenRegistryMissingDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mounts = []MountConfig{{Name: "docs", Type: MountDir, Path: filepath.Join(t.TempDir(), "missing")}}
	if _, err := cfg.OpenRegistry(); err == nil {
		t.Error("expected error for missing mount root")
	}
}
