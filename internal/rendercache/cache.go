// Package rendercache keeps the last rendered document of a browsing
// session so that re-selecting it costs neither a fetch nor a conversion.
package rendercache

import (
	"context"
	"sync"

	"github.com/razvandimescu/peekvfs/internal/markup"
	"github.com/razvandimescu/peekvfs/internal/vfs"
)

// Entry is a rendered document.
type Entry struct {
	Ref        vfs.DocumentRef
	RawContent string
	HTML       string
	// Doc is the full conversion result; nil when the pipeline is
	// unavailable.
	Doc *markup.Document
}

// FetchFunc loads the raw content of the document being rendered.
type FetchFunc func(ctx context.Context) (string, error)

// RenderFunc converts raw content.
type RenderFunc func(raw string) (*markup.Document, error)

// Cache holds a single entry.
type Cache struct {
	mu    sync.Mutex
	entry *Entry
}

func New() *Cache {
	return &Cache{}
}

// GetOrRender returns the cached entry when it belongs to ref. Otherwise it
// fetches and renders, and the result replaces the cached entry. Failed
// fetches or renders leave the cache untouched.
func (c *Cache) GetOrRender(ctx context.Context, ref vfs.DocumentRef, fetch FetchFunc, render RenderFunc) (*Entry, bool, error) {
	e, hit, err := c.Render(ctx, ref, fetch, render)
	if err != nil {
		return nil, false, err
	}
	if !hit {
		c.Store(e)
	}
	return e, hit, nil
}

// Render is GetOrRender without storing a fresh result. Callers that may
// throw the result away call Store once they keep it.
func (c *Cache) Render(ctx context.Context, ref vfs.DocumentRef, fetch FetchFunc, render RenderFunc) (*Entry, bool, error) {
	if e, ok := c.lookup(ref); ok {
		return e, true, nil
	}

	raw, err := fetch(ctx)
	if err != nil {
		return nil, false, err
	}
	doc, err := render(raw)
	if err != nil {
		return nil, false, err
	}
	return newEntry(ref, raw, doc), false, nil
}

func (c *Cache) lookup(ref vfs.DocumentRef) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil || !c.entry.Ref.Same(ref) {
		return nil, false
	}
	e := *c.entry
	return &e, true
}

// Invalidate replaces the raw content of the entry for ref and re-renders
// it without fetching.
func (c *Cache) Invalidate(ref vfs.DocumentRef, raw string, render RenderFunc) (*Entry, error) {
	doc, err := render(raw)
	if err != nil {
		return nil, err
	}
	e := newEntry(ref, raw, doc)
	c.Store(e)
	return e, nil
}

// Store replaces the cached entry.
func (c *Cache) Store(e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *e
	c.entry = &cp
}

// Current returns a copy of the cached entry, if any.
func (c *Cache) Current() (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return nil, false
	}
	e := *c.entry
	return &e, true
}

// Drop forgets the cached entry so the next GetOrRender fetches again.
func (c *Cache) Drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = nil
}

func newEntry(ref vfs.DocumentRef, raw string, doc *markup.Document) *Entry {
	e := &Entry{Ref: ref, RawContent: raw, Doc: doc}
	if doc != nil {
		e.HTML = doc.HTML
	}
	return e
}
