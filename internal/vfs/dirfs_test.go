package vfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create test file %s: %v", p, err)
	}
	return p
}

func newTestDirMount(t *testing.T, readOnly bool, patterns ...string) (*DirMount, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := NewDirMount(dir, readOnly, patterns)
	if err != nil {
		t.Fatalf("NewDirMount: %v", err)
	}
	return m, dir
}

func TestNewDirMountRejectsFile(t *testing.T) {
	dir := t.TempDir()
	p := writeTestFile(t, dir, "a.md", "# A")
	if _, err := NewDirMount(p, false, nil); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("expected ErrNotDirectory, got %v", err)
	}
}

func TestDirMountReadWrite(t *testing.T) {
	ctx := context.Background()
	m, dir := newTestDirMount(t, false)
	writeTestFile(t, dir, "guide/intro.md", "# Intro")

	got, err := m.Read(ctx, "guide/intro.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "# Intro" {
		t.Errorf("Read = %q", got)
	}

	if err := m.Write(ctx, "guide/intro.md", []byte("# Changed")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	onDisk, _ := os.ReadFile(filepath.Join(dir, "guide", "intro.md"))
	if string(onDisk) != "# Changed" {
		t.Errorf("file on disk = %q", onDisk)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "guide"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".peekvfs-tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}

	if _, err := m.Read(ctx, "missing.md"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDirMountReadOnly(t *testing.T) {
	m, dir := newTestDirMount(t, true)
	writeTestFile(t, dir, "a.md", "# A")
	if err := m.Write(context.Background(), "a.md", []byte("x")); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}

func TestDirMountConfinement(t *testing.T) {
	m, _ := newTestDirMount(t, false)

	tests := []string{
		"../outside.md",
		"guide/../../outside.md",
	}
	for _, p := range tests {
		if _, err := m.LocalPath(p); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("LocalPath(%q): expected ErrOutsideRoot, got %v", p, err)
		}
	}

	if _, err := m.LocalPath("guide/../a.md"); err != nil {
		t.Errorf("path staying inside the root should resolve: %v", err)
	}
}

func TestDirMountSymlinkOutsideRoot(t *testing.T) {
	outside := t.TempDir()
	secret := writeTestFile(t, outside, "secret.md", "secret")

	m, dir := newTestDirMount(t, false)
	if err := os.Symlink(secret, filepath.Join(dir, "link.md")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	if _, err := m.Read(context.Background(), "link.md"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("expected ErrOutsideRoot for escaping symlink, got %v", err)
	}

	entries, err := m.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, e := range entries {
		if e.Name == "link.md" {
			t.Error("escaping symlink should not be listed")
		}
	}
}

func TestDirMountList(t *testing.T) {
	m, dir := newTestDirMount(t, false, "*.tmp")
	writeTestFile(t, dir, "b.md", "b")
	writeTestFile(t, dir, "a.md", "a")
	writeTestFile(t, dir, "zdir/x.md", "x")
	writeTestFile(t, dir, "adir/y.md", "y")
	writeTestFile(t, dir, ".hidden.md", "h")
	writeTestFile(t, dir, "node_modules/pkg/readme.md", "n")
	writeTestFile(t, dir, "scratch.tmp", "t")

	entries, err := m.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	got := strings.Join(names, ",")
	want := "adir,zdir,a.md,b.md"
	if got != want {
		t.Errorf("List names = %s, want %s", got, want)
	}

	sub, err := m.List(context.Background(), "adir")
	if err != nil {
		t.Fatalf("List(adir): %v", err)
	}
	if len(sub) != 1 || sub[0].Path != "adir/y.md" || sub[0].IsDir {
		t.Errorf("List(adir) = %+v", sub)
	}
}

func TestDirMountIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, IgnoreFileName, "# comment\ndrafts\n")
	writeTestFile(t, dir, "drafts/wip.md", "wip")
	writeTestFile(t, dir, "final.md", "final")

	m, err := NewDirMount(dir, false, nil)
	if err != nil {
		t.Fatalf("NewDirMount: %v", err)
	}
	entries, err := m.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "final.md" {
		t.Errorf("List = %+v, want only final.md", entries)
	}
}

func TestDirMountExcludedEntriesUnreachable(t *testing.T) {
	ctx := context.Background()
	m, dir := newTestDirMount(t, false, "drafts")
	writeTestFile(t, dir, ".env", "SECRET=1")
	writeTestFile(t, dir, ".git/config", "[core]")
	writeTestFile(t, dir, "node_modules/pkg/readme.md", "n")
	writeTestFile(t, dir, "guide/drafts/wip.md", "wip")
	writeTestFile(t, dir, "guide/intro.md", "# Intro")

	for _, rel := range []string{".env", ".git/config", "node_modules/pkg/readme.md", "guide/drafts/wip.md", "guide/../.env"} {
		if _, err := m.Read(ctx, rel); !errors.Is(err, ErrNotFound) {
			t.Errorf("Read(%s): expected ErrNotFound, got %v", rel, err)
		}
		if f, err := m.Open(ctx, rel); !errors.Is(err, ErrNotFound) {
			if f != nil {
				f.Close()
			}
			t.Errorf("Open(%s): expected ErrNotFound, got %v", rel, err)
		}
		if _, err := m.Stat(ctx, rel); !errors.Is(err, ErrNotFound) {
			t.Errorf("Stat(%s): expected ErrNotFound, got %v", rel, err)
		}
	}
	if _, err := m.List(ctx, "node_modules"); !errors.Is(err, ErrNotFound) {
		t.Errorf("List(node_modules): expected ErrNotFound, got %v", err)
	}
	if err := m.Write(ctx, ".env", []byte("x")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Write(.env): expected ErrNotFound, got %v", err)
	}

	e, err := m.Stat(ctx, "guide/../guide/intro.md")
	if err != nil || e.Path != "guide/intro.md" {
		t.Errorf("Stat of a visible document = %+v, %v", e, err)
	}
}

func TestDirMountStat(t *testing.T) {
	m, dir := newTestDirMount(t, false)
	writeTestFile(t, dir, "docs/_index.md", "# Docs")

	e, err := m.Stat(context.Background(), "docs")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !e.IsDir || e.Name != "docs" {
		t.Errorf("Stat(docs) = %+v", e)
	}
	if _, err := m.Stat(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIgnoreRules(t *testing.T) {
	rules := NewIgnoreRules([]string{"*.log", "build/**", "[invalid"})
	if len(rules.Patterns()) != 2 {
		t.Fatalf("expected invalid pattern to be dropped, got %v", rules.Patterns())
	}

	tests := []struct {
		rel   string
		isDir bool
		want  bool
	}{
		{"debug.log", false, true},
		{"sub/debug.log", false, true},
		{"build/out/a.md", false, true},
		{"vendor", true, true},
		{"vendor", false, false},
		{".git", true, true},
		{"docs/a.md", false, false},
	}
	for _, tt := range tests {
		if got := rules.Excluded(tt.rel, tt.isDir); got != tt.want {
			t.Errorf("Excluded(%q, %v) = %v, want %v", tt.rel, tt.isDir, got, tt.want)
		}
	}

	var none *IgnoreRules
	if none.Excluded("a.md", false) {
		t.Error("nil rules should only apply built-in exclusions")
	}
}

func TestReadIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("x", 300)
	writeTestFile(t, dir, IgnoreFileName, "# comment\n\n*.bak\n"+long+"\nout\n")

	got := ReadIgnoreFile(dir)
	if strings.Join(got, ",") != "*.bak,out" {
		t.Errorf("ReadIgnoreFile = %v", got)
	}
	if ReadIgnoreFile(t.TempDir()) != nil {
		t.Error("missing ignore file should yield no patterns")
	}
}
