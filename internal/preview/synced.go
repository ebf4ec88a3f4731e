// Package preview keeps the preview of a browsing session and its optional
// editor in step. Navigation pushes documents into both; edits re-render
// the preview from the editor buffer without touching the file system.
package preview

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/razvandimescu/peekvfs/internal/markup"
	"github.com/razvandimescu/peekvfs/internal/rendercache"
	"github.com/razvandimescu/peekvfs/internal/vfs"
)

var (
	ErrNoDocument   = errors.New("no document displayed")
	ErrEditorClosed = errors.New("editor is not open")
)

// Rendered is what the preview surface shows.
type Rendered struct {
	Ref        vfs.DocumentRef
	HTML       string
	Companions []vfs.DirectoryEntry
	// Live marks renders of the editor buffer.
	Live bool
}

// Surface displays rendered HTML.
type Surface interface {
	Show(r Rendered)
}

// Editor is a text editing widget. SetText may report the new text back
// through Synced.HandleChange before it returns.
type Editor interface {
	SetText(ref vfs.DocumentRef, text string)
}

type Config struct {
	FS       vfs.FileSystem
	Pipeline *markup.Pipeline
	Cache    *rendercache.Cache
	Surface  Surface
}

// Synced owns the preview surface and at most one editor.
type Synced struct {
	cfg Config

	mu         sync.Mutex
	ref        vfs.DocumentRef
	saved      string // content as last fetched or saved
	buffer     string
	html       string
	links      *markup.LinkTable
	companions []vfs.DirectoryEntry
	editor     Editor
	// settingValue is set while the editor buffer is written by us, or
	// the preview is re-rendered from an edit.
	settingValue bool
}

func New(cfg Config) *Synced {
	if cfg.Cache == nil {
		cfg.Cache = rendercache.New()
	}
	return &Synced{cfg: cfg}
}

// Present shows a document loaded by navigation. An open editor switches
// to the new document.
func (s *Synced) Present(ref vfs.DocumentRef, entry *rendercache.Entry, companions []vfs.DirectoryEntry) {
	s.mu.Lock()
	// Re-selecting the document being edited hands back the edited buffer.
	if !ref.Same(s.ref) || s.editor == nil {
		s.saved = entry.RawContent
	}
	s.ref = ref
	s.buffer = entry.RawContent
	s.html = entry.HTML
	s.links = nil
	if entry.Doc != nil {
		s.links = entry.Doc.Links
	}
	s.companions = companions
	r := Rendered{Ref: ref, HTML: entry.HTML, Companions: companions}
	s.cfg.Surface.Show(r)
	s.mu.Unlock()

	s.setEditorText(ref, entry.RawContent)
}

// Links returns the anchors intercepted in the displayed HTML.
func (s *Synced) Links() *markup.LinkTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links
}

// Current returns what is on display.
func (s *Synced) Current() Rendered {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Rendered{Ref: s.ref, HTML: s.html, Companions: s.companions, Live: s.buffer != s.saved}
}

// OpenEditor attaches ed and seeds it with the content of the displayed
// document.
func (s *Synced) OpenEditor(ed Editor) error {
	s.mu.Lock()
	if s.ref.IsZero() {
		s.mu.Unlock()
		return ErrNoDocument
	}
	s.editor = ed
	ref, text := s.ref, s.buffer
	s.mu.Unlock()

	s.setEditorText(ref, text)
	return nil
}

// EditorOpen reports whether an editor is attached.
func (s *Synced) EditorOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor != nil
}

// Buffer returns the editor buffer.
func (s *Synced) Buffer() (vfs.DocumentRef, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref, s.buffer, s.editor != nil
}

// Dirty reports whether the buffer holds unsaved edits.
func (s *Synced) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor != nil && s.buffer != s.saved
}

// CloseEditor detaches the editor and discards unsaved edits; the preview
// goes back to the saved content.
func (s *Synced) CloseEditor() {
	s.mu.Lock()
	s.editor = nil
	dirty := s.buffer != s.saved
	ref, saved := s.ref, s.saved
	s.buffer = saved
	s.mu.Unlock()

	if dirty {
		s.render(ref, saved, false)
	}
}

// HandleChange is the change notification of the editor. The buffer is
// rendered into the preview without fetching. Changes caused by our own
// writes to the editor are ignored.
func (s *Synced) HandleChange(text string) {
	s.mu.Lock()
	if s.settingValue || s.editor == nil || !s.cfg.Pipeline.Available() {
		s.mu.Unlock()
		return
	}
	s.buffer = text
	ref := s.ref
	s.mu.Unlock()

	s.render(ref, text, true)
}

func (s *Synced) render(ref vfs.DocumentRef, text string, live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ref.Same(ref) || !s.cfg.Pipeline.Available() {
		return
	}
	s.settingValue = true
	defer func() { s.settingValue = false }()

	entry, err := s.cfg.Cache.Invalidate(ref, text, func(raw string) (*markup.Document, error) {
		return s.cfg.Pipeline.RenderDocument(raw, ref)
	})
	if err != nil {
		log.Printf("Warning: Cannot render %s: %v", ref, err)
		return
	}
	s.html = entry.HTML
	s.links = nil
	if entry.Doc != nil {
		s.links = entry.Doc.Links
	}
	s.cfg.Surface.Show(Rendered{Ref: ref, HTML: entry.HTML, Companions: s.companions, Live: live})
}

// Save persists the editor buffer.
func (s *Synced) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.editor == nil {
		s.mu.Unlock()
		return ErrEditorClosed
	}
	ref, text := s.ref, s.buffer
	s.mu.Unlock()

	if err := s.cfg.FS.SetContent(ctx, ref.Mount, ref.Path, text); err != nil {
		return err
	}

	s.mu.Lock()
	if s.ref.Same(ref) {
		s.saved = text
	}
	s.mu.Unlock()
	return nil
}

func (s *Synced) setEditorText(ref vfs.DocumentRef, text string) {
	s.mu.Lock()
	ed := s.editor
	if ed == nil || s.settingValue {
		s.mu.Unlock()
		return
	}
	s.settingValue = true
	s.mu.Unlock()

	ed.SetText(ref, text)

	s.mu.Lock()
	s.settingValue = false
	s.mu.Unlock()
}
