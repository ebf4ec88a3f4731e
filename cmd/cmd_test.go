package cmd

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/razvandimescu/peekvfs/internal/config"
	"github.com/razvandimescu/peekvfs/internal/markup"
	"github.com/razvandimescu/peekvfs/internal/vfs"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRenderDocument(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "guide/02_setup.md", "# Setup\n\n[next](03_run.md)\n\n![shot](img/a.png)\n\n```go\nfunc main() {}\n```\n")

	mount, err := vfs.NewDirMount(dir, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	reg := vfs.NewRegistry()
	reg.Add("docs", mount)

	opts := markup.DefaultOptions()
	opts.HandleLinks = false
	pipeline := markup.NewPipeline(markup.NewConverter(opts), reg.AssetURL, opts)

	var buf bytes.Buffer
	if err := renderDocument(context.Background(), &buf, reg, pipeline, "docs", "guide/02_setup.md"); err != nil {
		t.Fatalf("renderDocument failed: %v", err)
	}
	page := buf.String()

	for _, want := range []string{
		"<title>setup</title>",
		`href="03_run.md"`,
		`src="/assets/docs/guide/img/a.png"`,
		".chroma",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page does not contain %q:\n%s", want, page)
		}
	}
	if strings.Contains(page, markup.LinkAttr) {
		t.Error("exported page must not intercept links")
	}

	if err := renderDocument(context.Background(), &buf, reg, pipeline, "docs", "guide"); err == nil {
		t.Error("expected error rendering a directory")
	}
}

func TestRenderDocumentInlinesAssets(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "guide/intro.md", "![shot](img/a.png) ![gone](img/missing.png)\n")
	writeTestFile(t, dir, "guide/img/a.png", "\x89PNG\r\n\x1a\n")

	mount, err := vfs.NewDirMount(dir, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	reg := vfs.NewRegistry()
	reg.Add("docs", mount)

	ctx := context.Background()
	opts := markup.DefaultOptions()
	opts.HandleLinks = false
	pipeline := markup.NewPipeline(markup.NewConverter(opts), inlineAssets(ctx, reg), opts)

	var buf bytes.Buffer
	if err := renderDocument(ctx, &buf, reg, pipeline, "docs", "guide/intro.md"); err != nil {
		t.Fatalf("renderDocument failed: %v", err)
	}
	page := buf.String()
	want := `src="data:image/png;base64,` + base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n")) + `"`
	if !strings.Contains(page, want) {
		t.Errorf("image not embedded, want %s in:\n%s", want, page)
	}
	if !strings.Contains(page, `src="/assets/docs/guide/img/missing.png"`) {
		t.Errorf("missing image should keep its asset url:\n%s", page)
	}
}

func TestApplyTarget(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "README.md", "# Hi")

	cfg := config.DefaultConfig()
	if err := applyTarget(cfg, filepath.Join(dir, "README.md")); err != nil {
		t.Fatalf("applyTarget failed: %v", err)
	}
	if cfg.StartFile != "docs:README.md" {
		t.Errorf("start file = %q", cfg.StartFile)
	}
	if len(cfg.Mounts) != 1 || cfg.Mounts[0].Path != dir {
		t.Errorf("mounts = %+v", cfg.Mounts)
	}

	if err := applyTarget(cfg, filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing target")
	}
}

func TestPrintIgnored(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, vfs.IgnoreFileName, "# comment\ndrafts\n**/tmp\n")

	var buf bytes.Buffer
	printIgnored(&buf, dir)
	out := buf.String()
	for _, want := range []string{"node_modules", "drafts", "**/tmp"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "comment") {
		t.Error("comment lines must not be listed")
	}
}
