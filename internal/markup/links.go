package markup

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// Placeholder replaces the href of every intercepted anchor.
	Placeholder = "javascript:void(0)"

	// LinkAttr carries the LinkTable index of an intercepted anchor.
	LinkAttr = "data-vfs-link"
)

// LinkTable holds the original hrefs of the anchors intercepted during one
// render.
type LinkTable struct {
	hrefs []string
}

// Add stashes href and returns its index.
func (t *LinkTable) Add(href string) int {
	t.hrefs = append(t.hrefs, href)
	return len(t.hrefs) - 1
}

// Href returns the href stashed under the value of a LinkAttr attribute.
func (t *LinkTable) Href(attr string) (string, bool) {
	if t == nil {
		return "", false
	}
	i, err := strconv.Atoi(attr)
	if err != nil || i < 0 || i >= len(t.hrefs) {
		return "", false
	}
	return t.hrefs[i], true
}

func (t *LinkTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.hrefs)
}

// Hrefs returns the stashed hrefs in document order.
func (t *LinkTable) Hrefs() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.hrefs...)
}

var linkTableKey = parser.NewContextKey()

// linkDiscovery intercepts every anchor of a document that is not an
// in-page fragment link. It only acts when the parser context carries a
// LinkTable.
type linkDiscovery struct{}

func (e *linkDiscovery) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&linkDiscoveryTransformer{}, 100),
	))
}

type linkDiscoveryTransformer struct{}

func (t *linkDiscoveryTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	table, ok := pc.Get(linkTableKey).(*LinkTable)
	if !ok || table == nil {
		return
	}
	source := reader.Source()

	// Replacements are applied after the walk; ids are handed out in
	// document order.
	type replacement struct{ old, new ast.Node }
	var replace []replacement

	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch link := n.(type) {
		case *ast.Link:
			href := string(link.Destination)
			if strings.HasPrefix(href, "#") {
				return ast.WalkContinue, nil
			}
			intercept(link, table.Add(href))
		case *ast.AutoLink:
			// Autolinks have no destination to swap, so they become plain links.
			href := string(link.URL(source))
			if link.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(href), "mailto:") {
				href = "mailto:" + href
			}
			plain := ast.NewLink()
			plain.AppendChild(plain, ast.NewString(link.Label(source)))
			intercept(plain, table.Add(href))
			replace = append(replace, replacement{link, plain})
		case *ast.RawHTML:
			var raw []byte
			for i := 0; i < link.Segments.Len(); i++ {
				seg := link.Segments.At(i)
				raw = append(raw, seg.Value(source)...)
			}
			if out, changed := interceptHTML(raw, table); changed {
				replace = append(replace, replacement{link, rawString(out)})
			}
		case *ast.HTMLBlock:
			var raw []byte
			lines := link.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				raw = append(raw, seg.Value(source)...)
			}
			if link.HasClosure() {
				raw = append(raw, link.ClosureLine.Value(source)...)
			}
			if out, changed := interceptHTML(raw, table); changed {
				replace = append(replace, replacement{link, rawString(out)})
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, r := range replace {
		r.old.Parent().ReplaceChild(r.old.Parent(), r.old, r.new)
	}
}

func intercept(link *ast.Link, id int) {
	link.Destination = []byte(Placeholder)
	link.SetAttributeString(LinkAttr, []byte(strconv.Itoa(id)))
}

// rawString is written to the output as is.
func rawString(b []byte) *ast.String {
	s := ast.NewString(b)
	s.SetCode(true)
	return s
}

// interceptHTML rewrites the anchors of a raw HTML fragment the same way
// intercept rewrites markdown links. Everything else is copied byte for
// byte. changed is false when the fragment holds no anchor to intercept.
func interceptHTML(raw []byte, table *LinkTable) (out []byte, changed bool) {
	var buf bytes.Buffer
	z := html.NewTokenizer(bytes.NewReader(raw))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return raw, false
			}
			buf.Write(z.Raw())
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			buf.Write(z.Raw())
			continue
		}
		// Token invalidates the slice returned by Raw.
		tagRaw := append([]byte(nil), z.Raw()...)
		tok := z.Token()
		href, ok := anchorHref(tok)
		if !ok {
			buf.Write(tagRaw)
			continue
		}

		buf.WriteString("<a")
		for _, a := range tok.Attr {
			if a.Key == LinkAttr {
				continue
			}
			v := a.Val
			if a.Key == "href" {
				v = Placeholder
			}
			fmt.Fprintf(&buf, ` %s="%s"`, a.Key, html.EscapeString(v))
		}
		fmt.Fprintf(&buf, ` %s="%d"`, LinkAttr, table.Add(href))
		if tt == html.SelfClosingTagToken {
			buf.WriteString(" /")
		}
		buf.WriteByte('>')
		changed = true
	}
	if !changed {
		return raw, false
	}
	return buf.Bytes(), true
}

func anchorHref(tok html.Token) (string, bool) {
	if tok.DataAtom != atom.A {
		return "", false
	}
	for _, a := range tok.Attr {
		if a.Key == "href" {
			return a.Val, !strings.HasPrefix(a.Val, "#")
		}
	}
	return "", false
}
