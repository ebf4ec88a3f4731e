// Package markup turns raw markdown stored in a virtual file system into
// preview HTML: images are rewritten to asset URLs before parsing and
// anchors are registered for navigation while the document is converted.
package markup

import (
	"bytes"
	"log"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/razvandimescu/peekvfs/internal/vfs"
)

// DefaultHighlightStyle is the chroma style used when none is configured.
const DefaultHighlightStyle = "github"

// Options configures a converter and the pipeline around it.
type Options struct {
	// HandleLinks enables anchor interception.
	HandleLinks bool
	// HighlightCode enables syntax highlighting of fenced code blocks.
	HighlightCode  bool
	HighlightStyle string
	// StrictLinks classifies URLs with HasScheme instead of IsExternal.
	StrictLinks bool
}

// DefaultOptions returns the options peekvfs runs with out of the box.
func DefaultOptions() Options {
	return Options{
		HandleLinks:    true,
		HighlightCode:  true,
		HighlightStyle: DefaultHighlightStyle,
	}
}

// NewConverter creates a configured goldmark converter. Tables come with
// the GFM extension.
func NewConverter(opts Options) goldmark.Markdown {
	exts := []goldmark.Extender{
		extension.GFM,
		&linkDiscovery{},
	}
	if opts.HighlightCode {
		style := opts.HighlightStyle
		if style == "" {
			style = DefaultHighlightStyle
		}
		exts = append(exts, highlighting.NewHighlighting(
			highlighting.WithStyle(style),
			highlighting.WithFormatOptions(
				chromahtml.WithClasses(true),
			),
		))
	}
	return goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)
}

// HighlightCSS returns the stylesheet for the class names emitted by
// highlighted code blocks.
func HighlightCSS(style string) (string, error) {
	s := styles.Get(style)
	if s == nil {
		s = styles.Fallback
	}
	var buf bytes.Buffer
	if err := chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Document is the result of one conversion.
type Document struct {
	HTML string
	// Links holds the hrefs of intercepted anchors; nil when link
	// handling is off.
	Links *LinkTable
}

// Pipeline wraps a converter with image rewriting and link discovery. A
// pipeline is created once per browsing session and reused for every render.
type Pipeline struct {
	md       goldmark.Markdown
	assetURL AssetURLFunc
	opts     Options
}

// NewPipeline wraps md. A nil md leaves the pipeline unavailable and every
// render a no-op.
func NewPipeline(md goldmark.Markdown, assetURL AssetURLFunc, opts Options) *Pipeline {
	if md == nil {
		log.Printf("Warning: %v, preview rendering disabled", ErrUnsupportedEnvironment)
	}
	return &Pipeline{md: md, assetURL: assetURL, opts: opts}
}

// Available reports whether the pipeline has a converter.
func (p *Pipeline) Available() bool {
	return p != nil && p.md != nil
}

// Options returns the options the pipeline was created with.
func (p *Pipeline) Options() Options { return p.opts }

// Rewriter returns the URL rewriter for documents located at base.
func (p *Pipeline) Rewriter(base vfs.DocumentRef, raw string) *Rewriter {
	rw := &Rewriter{Base: base, AssetURL: p.assetURL}
	if raw != "" {
		rw.References = References(raw)
	}
	if p.opts.StrictLinks {
		rw.External = HasScheme
	}
	return rw
}

// Render converts raw, located at base, to HTML.
func (p *Pipeline) Render(raw string, base vfs.DocumentRef) (string, error) {
	doc, err := p.RenderDocument(raw, base)
	if err != nil || doc == nil {
		return "", err
	}
	return doc.HTML, nil
}

// RenderDocument converts raw and returns the HTML with the anchors
// discovered on the way. It returns nil, nil when the pipeline is
// unavailable.
func (p *Pipeline) RenderDocument(raw string, base vfs.DocumentRef) (*Document, error) {
	if !p.Available() {
		return nil, nil
	}

	src := p.Rewriter(base, raw).RewriteImages(raw)

	pc := parser.NewContext()
	doc := &Document{}
	if p.opts.HandleLinks {
		doc.Links = &LinkTable{}
		pc.Set(linkTableKey, doc.Links)
	}

	var buf bytes.Buffer
	if err := p.md.Convert([]byte(src), &buf, parser.WithContext(pc)); err != nil {
		return nil, &RenderError{Ref: base, Err: err}
	}
	if buf.Len() == 0 && strings.TrimSpace(raw) != "" {
		return nil, &RenderError{Ref: base, Err: ErrEmptyOutput}
	}
	doc.HTML = buf.String()
	return doc, nil
}
