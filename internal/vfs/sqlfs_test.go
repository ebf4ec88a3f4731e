package vfs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLMount(t *testing.T) *SQLMount {
	t.Helper()
	m, err := OpenSQLMemory()
	if err != nil {
		t.Fatalf("OpenSQLMemory: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestSQLMountReadWrite(t *testing.T) {
	ctx := context.Background()
	m := newTestSQLMount(t)

	if err := m.Write(ctx, "guide/intro.md", []byte("# Intro")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := m.Write(ctx, "/guide/intro.md", []byte("# Intro v2")); err != nil {
		t.Fatalf("Write (update): %v", err)
	}
	got, err := m.Read(ctx, "guide/intro.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "# Intro v2" {
		t.Errorf("Read = %q", got)
	}
	if _, err := m.Read(ctx, "guide/missing.md"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Read(ctx, "../etc/passwd"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("expected ErrOutsideRoot, got %v", err)
	}
}

func TestSQLMountListAndStat(t *testing.T) {
	ctx := context.Background()
	m := newTestSQLMount(t)
	for _, p := range []string{"readme.md", "docs/_index.md", "docs/other.md", "docs/img/a.png", "docs0.md"} {
		if err := m.Write(ctx, p, []byte(p)); err != nil {
			t.Fatalf("Write(%s): %v", p, err)
		}
	}

	root, err := m.List(ctx, "")
	if err != nil {
		t.Fatalf("List root: %v", err)
	}
	if len(root) != 3 || root[0].Name != "docs" || !root[0].IsDir {
		t.Fatalf("List root = %+v", root)
	}

	docs, err := m.List(ctx, "docs")
	if err != nil {
		t.Fatalf("List docs: %v", err)
	}
	want := []DirectoryEntry{
		{Name: "img", Path: "docs/img", IsDir: true},
		{Name: "_index.md", Path: "docs/_index.md"},
		{Name: "other.md", Path: "docs/other.md"},
	}
	if len(docs) != len(want) {
		t.Fatalf("List docs = %+v", docs)
	}
	for i := range want {
		if docs[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, docs[i], want[i])
		}
	}

	if e, err := m.Stat(ctx, "docs"); err != nil || !e.IsDir {
		t.Errorf("Stat(docs) = %+v, %v", e, err)
	}
	if e, err := m.Stat(ctx, "docs/other.md"); err != nil || e.IsDir {
		t.Errorf("Stat(docs/other.md) = %+v, %v", e, err)
	}
	if _, err := m.Stat(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.List(ctx, "readme.md"); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("expected ErrNotDirectory, got %v", err)
	}
}

func TestSQLMountParentSegments(t *testing.T) {
	ctx := context.Background()
	m := newTestSQLMount(t)
	for _, p := range []string{"other.md", "img/a.png", "guide/intro.md"} {
		if err := m.Write(ctx, p, []byte(p)); err != nil {
			t.Fatalf("Write(%s): %v", p, err)
		}
	}
	reg := NewRegistry()
	reg.Add("db", m)

	ref, err := reg.ResolveDocument(ctx, "db", "guide/../other.md")
	if err != nil {
		t.Fatalf("ResolveDocument: %v", err)
	}
	if ref.Path != "other.md" || ref.IsDir {
		t.Errorf("ResolveDocument = %+v", ref)
	}
	if got, err := m.Read(ctx, JoinSegments("guide", "../img/a.png")); err != nil || string(got) != "img/a.png" {
		t.Errorf("Read(guide/../img/a.png) = %q, %v", got, err)
	}
	if got, err := m.Read(ctx, "./guide/./intro.md"); err != nil || string(got) != "guide/intro.md" {
		t.Errorf("Read(./guide/./intro.md) = %q, %v", got, err)
	}

	for _, p := range []string{"..", "guide/../../other.md", "../db.sqlite"} {
		if _, err := m.Read(ctx, p); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Read(%s): expected ErrOutsideRoot, got %v", p, err)
		}
	}
}

func TestSQLMountImport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeTestFile(t, dir, "a.md", "# A")
	writeTestFile(t, dir, "guide/b.md", "# B")
	writeTestFile(t, dir, ".secret.md", "hidden")
	writeTestFile(t, dir, "node_modules/x.md", "dep")

	m := newTestSQLMount(t)
	n, err := m.Import(ctx, dir, NewIgnoreRules(nil))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d files, want 2", n)
	}
	got, err := m.Read(ctx, "guide/b.md")
	if err != nil || string(got) != "# B" {
		t.Errorf("Read imported = %q, %v", got, err)
	}
}

func TestOpenSQLMountFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "docs.db")
	m, err := OpenSQLMount(path, false)
	if err != nil {
		t.Fatalf("OpenSQLMount: %v", err)
	}
	if err := m.Write(ctx, "a.md", []byte("a")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	m.Close()

	ro, err := OpenSQLMount(path, true)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ro.Close()
	if got, err := ro.Read(ctx, "a.md"); err != nil || string(got) != "a" {
		t.Errorf("Read after reopen = %q, %v", got, err)
	}
	if err := ro.Write(ctx, "a.md", []byte("b")); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}
