// Package session wires one browsing session: a converter pipeline, the
// render cache, the navigation controller and the synced preview, plus
// the event log its clients follow.
package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/razvandimescu/peekvfs/internal/markup"
	"github.com/razvandimescu/peekvfs/internal/navigation"
	"github.com/razvandimescu/peekvfs/internal/preview"
	"github.com/razvandimescu/peekvfs/internal/rendercache"
	"github.com/razvandimescu/peekvfs/internal/vfs"
)

var ErrEditorDisabled = errors.New("editor is disabled")

// Options configures new sessions.
type Options struct {
	Markup    markup.Options
	IndexFile string
	// StartFile is selected when a session starts, as "mount:path" or a
	// path in the first mount.
	StartFile string
	// Editor enables the editor panel.
	Editor bool
	// EventBuffer is the number of events kept for replay.
	EventBuffer int
	// Watch reloads the displayed document when it changes on disk.
	Watch bool
}

// TreeEntry is a listed child of a directory.
type TreeEntry struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
}

// Snapshot describes a session for its clients.
type Snapshot struct {
	ID         string          `json:"id"`
	State      string          `json:"state"`
	Target     vfs.DocumentRef `json:"target"`
	Active     vfs.DocumentRef `json:"active"`
	Companions []TreeEntry     `json:"companions"`
	Error      string          `json:"error,omitempty"`
	HTML       string          `json:"html"`
	EditorOpen bool            `json:"editor_open"`
	Dirty      bool            `json:"dirty"`
	Mounts     []vfs.Mount     `json:"mounts"`
	LastEvent  uint64          `json:"last_event"`
}

type localPather interface {
	LocalPath(ref vfs.DocumentRef) (string, bool)
}

type mountLister interface {
	Mounts() []vfs.Mount
}

// Session is one browsing session.
type Session struct {
	ID      string
	Created time.Time

	fs       vfs.FileSystem
	opts     Options
	pipeline *markup.Pipeline
	cache    *rendercache.Cache
	preview  *preview.Synced
	nav      *navigation.Controller
	events   *eventLog

	watcher  vfs.FileWatcher
	watchMu  sync.Mutex
	watching string

	lastUsed time.Time
	usedMu   sync.Mutex
}

// New creates a session on fs. The converter is created here and reused for
// every render of the session.
func New(fs vfs.FileSystem, opts Options) *Session {
	return newSession(fs, opts, markup.NewConverter(opts.Markup))
}

func newSession(fs vfs.FileSystem, opts Options, md goldmark.Markdown) *Session {
	s := &Session{
		ID:       uuid.New().String(),
		Created:  time.Now(),
		lastUsed: time.Now(),
		fs:       fs,
		opts:     opts,
		cache:    rendercache.New(),
		events:   newEventLog(opts.EventBuffer),
	}
	s.pipeline = markup.NewPipeline(md, fs.AssetURL, opts.Markup)
	s.preview = preview.New(preview.Config{
		FS:       fs,
		Pipeline: s.pipeline,
		Cache:    s.cache,
		Surface:  s,
	})
	s.nav = navigation.New(navigation.Config{
		FS:             fs,
		Pipeline:       s.pipeline,
		Cache:          s.cache,
		View:           s.preview,
		IndexFile:      opts.IndexFile,
		OnExternalLink: s.externalLink,
		OnStateChange:  s.stateChanged,
	})
	return s
}

// Start selects the start file, if one is configured.
func (s *Session) Start(ctx context.Context) error {
	if s.opts.StartFile == "" {
		return nil
	}
	mount, path := s.ParseRef(s.opts.StartFile)
	return s.nav.Open(ctx, mount, path)
}

// ParseRef splits "mount:path". A bare path belongs to the first mount.
func (s *Session) ParseRef(v string) (vfs.Mount, string) {
	if m, p, ok := strings.Cut(v, ":"); ok && !strings.Contains(m, "/") {
		return vfs.Mount(m), vfs.Normalize(p)
	}
	var mount vfs.Mount
	if ml, ok := s.fs.(mountLister); ok {
		if mounts := ml.Mounts(); len(mounts) > 0 {
			mount = mounts[0]
		}
	}
	return mount, vfs.Normalize(strings.TrimPrefix(v, "./"))
}

// Show implements preview.Surface by publishing a rendered event.
func (s *Session) Show(r preview.Rendered) {
	s.events.publish(EventRendered, renderedEvent{
		Ref:        r.Ref,
		HTML:       r.HTML,
		Companions: companionEntries(r.Companions),
		Live:       r.Live,
	})
	if !r.Live {
		s.watch(r.Ref)
	}
}

type renderedEvent struct {
	Ref        vfs.DocumentRef `json:"ref"`
	HTML       string          `json:"html"`
	Companions []TreeEntry     `json:"companions"`
	Live       bool            `json:"live"`
}

func (s *Session) externalLink(url string) {
	log.Printf("External link clicked: %s", url)
	s.events.publish(EventExternalLink, map[string]string{"url": url})
}

func (s *Session) stateChanged(st navigation.Status) {
	evt := map[string]any{
		"state":  st.State.String(),
		"target": st.Target,
		"active": st.Active,
	}
	if st.Err != nil {
		evt["error"] = st.Err.Error()
	}
	s.events.publish(EventState, evt)
}

// Select navigates to ref.
func (s *Session) Select(ctx context.Context, ref vfs.DocumentRef) error {
	s.touch()
	return s.nav.Select(ctx, ref)
}

// Open resolves path within mount and navigates to it.
func (s *Session) Open(ctx context.Context, mount vfs.Mount, path string) error {
	s.touch()
	return s.nav.Open(ctx, mount, path)
}

// Click dispatches a click on a rendered element.
func (s *Session) Click(ctx context.Context, el navigation.Element) (bool, error) {
	s.touch()
	return s.nav.Click(ctx, el)
}

// FollowLink navigates to href relative to the active document.
func (s *Session) FollowLink(ctx context.Context, href string) error {
	s.touch()
	return s.nav.FollowLink(ctx, href)
}

// Tree lists a directory with display labels.
func (s *Session) Tree(ctx context.Context, ref vfs.DocumentRef) ([]TreeEntry, error) {
	s.touch()
	ref.IsDir = true
	entries, err := s.fs.OpenDirectory(ctx, ref)
	if err != nil {
		return nil, err
	}
	return companionEntries(entries), nil
}

func companionEntries(entries []vfs.DirectoryEntry) []TreeEntry {
	out := make([]TreeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, TreeEntry{Name: e.Name, Label: vfs.DisplayName(e.Name), Path: e.Path, IsDir: e.IsDir})
	}
	return out
}

// OpenEditor opens the editor panel on the displayed document.
func (s *Session) OpenEditor() error {
	if !s.opts.Editor {
		return ErrEditorDisabled
	}
	s.touch()
	return s.preview.OpenEditor(remoteEditor{s})
}

// CloseEditor closes the editor panel, discarding unsaved edits.
func (s *Session) CloseEditor() {
	s.touch()
	s.preview.CloseEditor()
}

// EditorChange feeds the editor buffer into the preview.
func (s *Session) EditorChange(text string) {
	s.touch()
	s.preview.HandleChange(text)
}

// EditorCommand applies an editor command to text and renders the result.
func (s *Session) EditorCommand(id, text string, start, end int) (preview.Edit, error) {
	if !s.preview.EditorOpen() {
		return preview.Edit{}, preview.ErrEditorClosed
	}
	edit, err := preview.ApplyCommand(id, text, start, end)
	if err != nil {
		return preview.Edit{}, err
	}
	s.EditorChange(edit.Text)
	return edit, nil
}

// Save persists the editor buffer through the file system.
func (s *Session) Save(ctx context.Context) error {
	s.touch()
	return s.preview.Save(ctx)
}

// remoteEditor forwards buffer replacements to the browser editor.
type remoteEditor struct{ s *Session }

func (e remoteEditor) SetText(ref vfs.DocumentRef, text string) {
	e.s.events.publish(EventEditorText, map[string]any{"ref": ref, "text": text})
}

// Snapshot returns the state of the session.
func (s *Session) Snapshot() Snapshot {
	st := s.nav.Status()
	cur := s.preview.Current()
	snap := Snapshot{
		ID:         s.ID,
		State:      st.State.String(),
		Target:     st.Target,
		Active:     st.Active,
		Companions: companionEntries(st.Companions),
		HTML:       cur.HTML,
		EditorOpen: s.preview.EditorOpen(),
		Dirty:      s.preview.Dirty(),
	}
	if st.Err != nil {
		snap.Error = st.Err.Error()
	}
	if ml, ok := s.fs.(mountLister); ok {
		snap.Mounts = ml.Mounts()
	}
	if evts := s.events.after(0); len(evts) > 0 {
		snap.LastEvent = evts[len(evts)-1].ID
	}
	return snap
}

// Editor returns the editor buffer of the session.
func (s *Session) Editor() (ref vfs.DocumentRef, text string, open bool) {
	return s.preview.Buffer()
}

// Subscribe follows the events of the session. Replay holds retained
// events after lastID; cancel must be called when done.
func (s *Session) Subscribe(lastID uint64) (replay []Event, events <-chan Event, cancel func()) {
	replay, ch, cancel := s.events.subscribe(lastID)
	return replay, ch, cancel
}

// Close stops watching and disconnects all subscribers.
func (s *Session) Close() {
	s.watcher.Stop()
	s.events.closeAll()
}

func (s *Session) watch(ref vfs.DocumentRef) {
	if !s.opts.Watch {
		return
	}
	lp, ok := s.fs.(localPather)
	if !ok {
		return
	}
	abs, ok := lp.LocalPath(ref)

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if !ok {
		s.watcher.Stop()
		s.watching = ""
		return
	}
	if abs == s.watching {
		return
	}
	if err := s.watcher.Watch(abs, func() { s.fileModified(ref) }); err != nil {
		log.Printf("Warning: Cannot watch %s: %v", abs, err)
		s.watching = ""
		return
	}
	s.watching = abs
}

func (s *Session) fileModified(ref vfs.DocumentRef) {
	s.events.publish(EventFileModified, map[string]any{"ref": ref})
	if s.preview.EditorOpen() {
		return
	}
	active, ok := s.nav.Active()
	if !ok || !active.Same(ref) {
		return
	}
	if err := s.nav.Reload(context.Background()); err != nil {
		log.Printf("Warning: Cannot reload %s: %v", ref, err)
	}
}

func (s *Session) touch() {
	s.usedMu.Lock()
	s.lastUsed = time.Now()
	s.usedMu.Unlock()
}

// LastUsed returns when a client last acted on the session.
func (s *Session) LastUsed() time.Time {
	s.usedMu.Lock()
	defer s.usedMu.Unlock()
	return s.lastUsed
}
