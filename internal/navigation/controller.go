// Package navigation decides which document a browsing session shows. It
// reacts to selections and to clicks on intercepted anchors, follows the
// index document convention for directories and drops results of
// navigations that were overtaken by a newer one.
package navigation

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/razvandimescu/peekvfs/internal/markup"
	"github.com/razvandimescu/peekvfs/internal/rendercache"
	"github.com/razvandimescu/peekvfs/internal/vfs"
)

// DefaultIndexFile is rendered when a directory is selected.
const DefaultIndexFile = "_index.md"

type State int

const (
	Idle State = iota
	Loading
	Displaying
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Displaying:
		return "displaying"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Status is a snapshot of the controller.
type Status struct {
	State State
	// Target is the document being loaded, or the one that failed.
	Target vfs.DocumentRef
	// Active is the document on display.
	Active     vfs.DocumentRef
	Companions []vfs.DirectoryEntry
	Err        error
}

// View shows rendered documents.
type View interface {
	// Present displays a freshly loaded document. Companions are the
	// siblings of an index document, nil otherwise.
	Present(ref vfs.DocumentRef, entry *rendercache.Entry, companions []vfs.DirectoryEntry)
	// Links returns the anchors intercepted in what is displayed now.
	Links() *markup.LinkTable
}

// Element is a node of a rendered document that can be clicked.
// Parent returns nil at the root.
type Element interface {
	Attr(key string) (string, bool)
	Parent() Element
}

type Config struct {
	FS        vfs.FileSystem
	Pipeline  *markup.Pipeline
	Cache     *rendercache.Cache
	View      View
	IndexFile string

	// OnExternalLink receives the raw URL of clicked external links.
	OnExternalLink func(url string)
	// OnStateChange is called after every transition.
	OnStateChange func(Status)
}

// Controller is the only writer of the active document of a session.
type Controller struct {
	cfg Config

	mu         sync.Mutex
	state      State
	target     vfs.DocumentRef
	active     vfs.DocumentRef
	companions []vfs.DirectoryEntry
	err        error
	gen        uint64
}

func New(cfg Config) *Controller {
	if cfg.IndexFile == "" {
		cfg.IndexFile = DefaultIndexFile
	}
	if cfg.Cache == nil {
		cfg.Cache = rendercache.New()
	}
	return &Controller{cfg: cfg}
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	return Status{
		State:      c.state,
		Target:     c.target,
		Active:     c.active,
		Companions: append([]vfs.DirectoryEntry(nil), c.companions...),
		Err:        c.err,
	}
}

// Active returns the document on display, if any.
func (c *Controller) Active() (vfs.DocumentRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, !c.active.IsZero()
}

// Select navigates to ref. Directories show their index document, or
// nothing at all when they have none.
func (c *Controller) Select(ctx context.Context, ref vfs.DocumentRef) error {
	if !c.cfg.Pipeline.Available() {
		return nil
	}
	if !ref.IsDir {
		return c.load(ctx, ref, nil)
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	entries, err := c.cfg.FS.OpenDirectory(ctx, ref)
	if err != nil {
		return c.fail(gen, ref, &FetchError{Ref: ref, Err: err})
	}

	var (
		index      *vfs.DirectoryEntry
		companions []vfs.DirectoryEntry
	)
	for i := range entries {
		if index == nil && !entries[i].IsDir && entries[i].Name == c.cfg.IndexFile {
			index = &entries[i]
			continue
		}
		companions = append(companions, entries[i])
	}
	if index == nil {
		return nil
	}
	return c.load(ctx, index.Ref(ref.Mount), companions)
}

// Open resolves path within mount and selects it.
func (c *Controller) Open(ctx context.Context, mount vfs.Mount, path string) error {
	ref, err := c.cfg.FS.ResolveDocument(ctx, mount, path)
	if err != nil {
		rerr := &ResolutionError{Href: path, Path: path, Err: err}
		log.Printf("Warning: %v", rerr)
		return rerr
	}
	return c.Select(ctx, ref)
}

// Click dispatches a click on el. It walks up from el to the first
// intercepted anchor; handled is false when there is none.
func (c *Controller) Click(ctx context.Context, el Element) (handled bool, err error) {
	links := c.cfg.View.Links()
	for e := el; e != nil; e = e.Parent() {
		id, ok := e.Attr(markup.LinkAttr)
		if !ok {
			continue
		}
		href, ok := links.Href(id)
		if !ok {
			continue
		}
		return true, c.FollowLink(ctx, href)
	}
	return false, nil
}

// FollowLink navigates to href as if an anchor of the active document
// pointing there was clicked.
func (c *Controller) FollowLink(ctx context.Context, href string) error {
	c.mu.Lock()
	base := c.active
	c.mu.Unlock()

	target := c.cfg.Pipeline.Rewriter(base, "").ResolveLinkTarget(href)
	if target.Kind == markup.LinkExternal {
		if c.cfg.OnExternalLink != nil {
			c.cfg.OnExternalLink(target.URL)
		}
		return nil
	}

	ref, err := c.cfg.FS.ResolveDocument(ctx, base.Mount, target.DocumentPath())
	if err != nil {
		rerr := &ResolutionError{Href: href, Path: target.Path, Err: err}
		log.Printf("Warning: %v", rerr)
		return rerr
	}
	return c.Select(ctx, ref)
}

// Reload forgets the cached render and loads the active document again.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	active, companions := c.active, c.companions
	c.mu.Unlock()
	if active.IsZero() {
		return nil
	}
	c.cfg.Cache.Drop()
	return c.load(ctx, active, companions)
}

func (c *Controller) load(ctx context.Context, target vfs.DocumentRef, companions []vfs.DirectoryEntry) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = Loading
	c.target = target
	c.err = nil
	st := c.statusLocked()
	c.mu.Unlock()
	c.notify(st)

	fetch := func(ctx context.Context) (string, error) {
		raw, err := c.cfg.FS.GetContent(ctx, target.Mount, target.Path)
		if err != nil {
			return "", &FetchError{Ref: target, Err: err}
		}
		return raw, nil
	}
	render := func(raw string) (*markup.Document, error) {
		return c.cfg.Pipeline.RenderDocument(raw, target)
	}
	entry, hit, err := c.cfg.Cache.Render(ctx, target, fetch, render)
	if err != nil {
		return c.fail(gen, target, err)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		log.Printf("Navigation to %s superseded, discarding result", target)
		return nil
	}
	// Only the latest navigation may replace the cached entry; it can hold
	// the unsaved buffer of the document being edited.
	if !hit {
		c.cfg.Cache.Store(entry)
	}
	c.state = Displaying
	c.active = target
	c.companions = companions
	c.cfg.View.Present(target, entry, companions)
	st = c.statusLocked()
	c.mu.Unlock()

	c.notify(st)
	return nil
}

// fail records a failed navigation started at generation gen. What is on
// display stays. Failures of navigations overtaken by a newer one are only
// logged.
func (c *Controller) fail(gen uint64, target vfs.DocumentRef, err error) error {
	var rerr *markup.RenderError
	if errors.As(err, &rerr) {
		log.Printf("Warning: Cannot render %s: %v", target, err)
	} else {
		log.Printf("Warning: Cannot load %s: %v", target, err)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return err
	}
	c.state = Failed
	c.target = target
	c.err = err
	st := c.statusLocked()
	c.mu.Unlock()

	c.notify(st)
	return err
}

func (c *Controller) notify(st Status) {
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(st)
	}
}
