package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/razvandimescu/peekvfs/internal/markup"
	"github.com/razvandimescu/peekvfs/internal/vfs"
)

var renderOutput string

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{if .CSS}}<style>{{.CSS}}</style>{{end}}
</head>
<body>
<article class="markdown-body">
{{.Body}}
</article>
</body>
</html>
`))

var renderCmd = &cobra.Command{
	Use:   "render <mount:path>",
	Short: "Render a document as a standalone HTML page",
	Long: `Renders one document of the configured mounts to HTML. Links are left
as written since the page is not served by peekvfs. Images found in the
mounts are embedded as data URIs; missing ones keep their /assets/ URL.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := cfg.OpenRegistry()
		if err != nil {
			return err
		}
		defer reg.Close()

		mount, path, ok := strings.Cut(args[0], ":")
		if !ok {
			mount, path = cfg.Mounts[0].Name, args[0]
		}

		opts := markupOptions(cfg)
		opts.HandleLinks = false
		pipeline := markup.NewPipeline(markup.NewConverter(opts), inlineAssets(cmd.Context(), reg), opts)

		out := io.Writer(os.Stdout)
		if renderOutput != "" {
			f, err := os.Create(renderOutput)
			if err != nil {
				return fmt.Errorf("creating %s: %w", renderOutput, err)
			}
			defer f.Close()
			out = f
		}
		return renderDocument(cmd.Context(), out, reg, pipeline, vfs.Mount(mount), vfs.Normalize(path))
	},
}

func renderDocument(ctx context.Context, w io.Writer, fs vfs.FileSystem, pipeline *markup.Pipeline, mount vfs.Mount, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ref, err := fs.ResolveDocument(ctx, mount, path)
	if err != nil {
		return fmt.Errorf("resolving %s:%s: %w", mount, path, err)
	}
	if ref.IsDir {
		return fmt.Errorf("%s is a directory", ref)
	}
	raw, err := fs.GetContent(ctx, ref.Mount, ref.Path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", ref, err)
	}
	doc, err := pipeline.RenderDocument(raw, ref)
	if err != nil {
		return err
	}
	if doc == nil {
		return markup.ErrUnsupportedEnvironment
	}

	var css string
	if pipeline.Options().HighlightCode {
		if css, err = markup.HighlightCSS(pipeline.Options().HighlightStyle); err != nil {
			return fmt.Errorf("building stylesheet: %w", err)
		}
	}
	return pageTmpl.Execute(w, struct {
		Title string
		CSS   template.CSS
		Body  template.HTML
	}{
		Title: vfs.DisplayName(vfs.Base(ref.Path)),
		CSS:   template.CSS(css),
		Body:  template.HTML(doc.HTML),
	})
}

// maxInlineAsset caps the size of an image embedded into an exported page.
const maxInlineAsset = 8 << 20

type assetOpener interface {
	OpenAsset(ctx context.Context, mount vfs.Mount, path string) (io.ReadCloser, error)
	AssetURL(mount vfs.Mount, path string) string
}

// inlineAssets resolves images to data URIs so exported pages stand alone.
func inlineAssets(ctx context.Context, assets assetOpener) markup.AssetURLFunc {
	if ctx == nil {
		ctx = context.Background()
	}
	return func(mount vfs.Mount, p string) string {
		rc, err := assets.OpenAsset(ctx, mount, p)
		if err != nil {
			log.Printf("Warning: Cannot embed %s:%s: %v", mount, p, err)
			return assets.AssetURL(mount, p)
		}
		defer rc.Close()

		data, err := io.ReadAll(io.LimitReader(rc, maxInlineAsset+1))
		if err != nil || len(data) > maxInlineAsset {
			log.Printf("Warning: Cannot embed %s:%s: too large or unreadable", mount, p)
			return assets.AssetURL(mount, p)
		}
		ctype := mime.TypeByExtension(path.Ext(p))
		if ctype == "" {
			ctype = http.DetectContentType(data)
		}
		return "data:" + ctype + ";base64," + base64.StdEncoding.EncodeToString(data)
	}
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "write the page to a file instead of stdout")
	rootCmd.AddCommand(renderCmd)
}
