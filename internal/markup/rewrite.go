package markup

import (
	"regexp"
	"strings"

	"github.com/razvandimescu/peekvfs/internal/vfs"
)

var (
	// ![alt](url =WxH "title"), title in single or double quotes.
	inlineImageRe = regexp.MustCompile(`!\[(.*?)]\s?\([ \t]*<?(\S+?)>?(?: =([*\d]+[A-Za-z%]{0,4})x([*\d]+[A-Za-z%]{0,4}))?[ \t]*(?:(?:"(.*?)"|'(.*?)')[ \t]*)?\)`)

	// ![alt][id], optionally split over a line break.
	referenceImageRe = regexp.MustCompile(`!\[([^\]]*?)] ?(?:\n *)?\[(.*?)]`)

	// [id]: url =WxH "title"
	referenceDefRe = regexp.MustCompile(`(?m)^ {0,3}\[([^\]]+)]:[ \t]*<?(\S+?)>?(?:[ \t]+=([*\d]+[A-Za-z%]{0,4})x([*\d]+[A-Za-z%]{0,4}))?(?:[ \t]+(?:"([^"\n]*)"|'([^'\n]*)'|\(([^)\n]*)\)))?[ \t]*$`)

	schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

	attrEscaper = strings.NewReplacer(`"`, "&quot;", "*", "&#42;", "_", "&#95;")
)

// AssetURLFunc turns a virtual asset path into a URL a preview can load.
type AssetURLFunc func(mount vfs.Mount, path string) string

// IsExternal reports whether u points outside the virtual file system. Any
// URL containing "http" counts, so a relative file named "my-http-notes.md"
// is misclassified. HasScheme is the strict alternative.
func IsExternal(u string) bool {
	return strings.Contains(strings.ToLower(u), "http")
}

// HasScheme reports whether u starts with a URL scheme followed by "://".
func HasScheme(u string) bool {
	return schemeRe.MatchString(u)
}

// ImageReference is one image parsed from markup.
type ImageReference struct {
	AltText string
	URL     string
	Width   string
	Height  string
	Title   string
}

// Reference is a link definition of a document, keyed by its lowercased id.
type Reference struct {
	URL    string
	Title  string
	Width  string
	Height string
}

// References collects the "[id]: url" definitions of raw.
func References(raw string) map[string]Reference {
	refs := make(map[string]Reference)
	for _, m := range referenceDefRe.FindAllStringSubmatch(raw, -1) {
		id := strings.ToLower(m[1])
		if _, ok := refs[id]; ok {
			continue
		}
		refs[id] = Reference{
			URL:    m[2],
			Width:  m[3],
			Height: m[4],
			Title:  firstNonEmpty(m[5], m[6], m[7]),
		}
	}
	return refs
}

// Rewriter resolves image and link URLs of one document against its
// location in the virtual file system.
type Rewriter struct {
	Base       vfs.DocumentRef
	AssetURL   AssetURLFunc
	References map[string]Reference
	// External classifies URLs; IsExternal when nil.
	External func(string) bool
}

// RewriteImages replaces every inline and reference-style image of raw with
// an <img> tag whose relative URLs are resolved against base.
func RewriteImages(raw string, base vfs.DocumentRef, assetURL AssetURLFunc) string {
	rw := &Rewriter{Base: base, AssetURL: assetURL}
	return rw.RewriteImages(raw)
}

func (rw *Rewriter) RewriteImages(raw string) string {
	raw = replaceSubmatches(inlineImageRe, raw, func(whole string, m []string) string {
		return rw.imageTag(whole, "", ImageReference{
			AltText: m[1],
			URL:     m[2],
			Width:   m[3],
			Height:  m[4],
			Title:   firstNonEmpty(m[5], m[6]),
		})
	})
	return replaceSubmatches(referenceImageRe, raw, func(whole string, m []string) string {
		return rw.imageTag(whole, m[2], ImageReference{AltText: m[1]})
	})
}

func (rw *Rewriter) imageTag(whole, linkID string, img ImageReference) string {
	if img.URL == "" {
		id := strings.ToLower(linkID)
		if id == "" {
			id = strings.Join(strings.Fields(strings.ToLower(img.AltText)), " ")
		}
		ref, ok := rw.References[id]
		if !ok {
			return whole
		}
		img.URL = ref.URL
		if ref.Title != "" {
			img.Title = ref.Title
		}
		if ref.Width != "" && ref.Height != "" {
			img.Width, img.Height = ref.Width, ref.Height
		}
	}

	var b strings.Builder
	b.WriteString(`<img src="`)
	b.WriteString(rw.resolveImage(img.URL))
	b.WriteString(`" alt="`)
	b.WriteString(attrEscaper.Replace(img.AltText))
	b.WriteByte('"')
	if img.Title != "" {
		b.WriteString(` title="`)
		b.WriteString(attrEscaper.Replace(img.Title))
		b.WriteByte('"')
	}
	if img.Width != "" && img.Height != "" {
		b.WriteString(` width="`)
		b.WriteString(dimension(img.Width))
		b.WriteString(`" height="`)
		b.WriteString(dimension(img.Height))
		b.WriteByte('"')
	}
	b.WriteString(" />")
	return b.String()
}

func (rw *Rewriter) resolveImage(u string) string {
	if rw.external(u) || rw.AssetURL == nil {
		return u
	}
	return rw.AssetURL(rw.Base.Mount, vfs.JoinSegments(vfs.Dir(rw.Base.Path), u))
}

func (rw *Rewriter) external(u string) bool {
	if rw.External != nil {
		return rw.External(u)
	}
	return IsExternal(u)
}

// LinkKind tells external links from links into the virtual file system.
type LinkKind int

const (
	LinkExternal LinkKind = iota
	LinkRelative
)

func (k LinkKind) String() string {
	if k == LinkExternal {
		return "external"
	}
	return "relative"
}

// LinkTarget is the resolution of an anchor's href.
type LinkTarget struct {
	Kind LinkKind
	URL  string
	// Path is the joined virtual path of a relative link.
	Path string
}

// DocumentPath returns Path without any query or fragment.
func (t LinkTarget) DocumentPath() string {
	p := t.Path
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return p
}

// ResolveLinkTarget classifies href with IsExternal. Relative hrefs are
// joined segment by segment onto the directory of base; "." and ".." are
// not collapsed here.
func ResolveLinkTarget(href string, base vfs.DocumentRef) LinkTarget {
	rw := &Rewriter{Base: base}
	return rw.ResolveLinkTarget(href)
}

func (rw *Rewriter) ResolveLinkTarget(href string) LinkTarget {
	if rw.external(href) {
		return LinkTarget{Kind: LinkExternal, URL: href}
	}
	return LinkTarget{
		Kind: LinkRelative,
		URL:  href,
		Path: vfs.JoinSegments(vfs.Dir(rw.Base.Path), href),
	}
}

func dimension(v string) string {
	if v == "*" {
		return "auto"
	}
	return v
}

func replaceSubmatches(re *regexp.Regexp, s string, fn func(whole string, m []string) string) string {
	idx := re.FindAllStringSubmatchIndex(s, -1)
	if len(idx) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range idx {
		m := make([]string, len(loc)/2)
		for i := range m {
			if loc[2*i] >= 0 {
				m[i] = s[loc[2*i]:loc[2*i+1]]
			}
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(fn(m[0], m))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
