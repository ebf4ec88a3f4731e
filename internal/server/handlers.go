package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/razvandimescu/peekvfs/internal/markup"
	"github.com/razvandimescu/peekvfs/internal/navigation"
	"github.com/razvandimescu/peekvfs/internal/preview"
	"github.com/razvandimescu/peekvfs/internal/session"
	"github.com/razvandimescu/peekvfs/internal/vfs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps err to a status code. Navigation failures have already
// been logged and pushed to the session's clients.
func writeFailure(w http.ResponseWriter, err error) {
	var rerr *markup.RenderError
	switch {
	case errors.Is(err, session.ErrUnknownSession),
		errors.Is(err, vfs.ErrNotFound),
		errors.Is(err, vfs.ErrUnknownMount):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, vfs.ErrOutsideRoot),
		errors.Is(err, vfs.ErrReadOnly),
		errors.Is(err, session.ErrEditorDisabled):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, preview.ErrNoDocument),
		errors.Is(err, preview.ErrEditorClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &rerr), errors.Is(err, markup.ErrEmptyOutput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create(r.Context())
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.session(w, r); !ok {
		return
	}
	s.sessions.Close(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ref := vfs.DocumentRef{
		Mount: vfs.Mount(r.URL.Query().Get("mount")),
		Path:  vfs.Normalize(r.URL.Query().Get("path")),
		IsDir: true,
	}
	if ref.Mount == "" {
		ref.Mount, _ = sess.ParseRef(ref.Path)
	}
	entries, err := sess.Tree(r.Context(), ref)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// selectRequest names a document either as a "mount:path" ref or by its
// parts.
type selectRequest struct {
	Ref   string    `json:"ref"`
	Mount vfs.Mount `json:"mount"`
	Path  string    `json:"path"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mount, path := req.Mount, vfs.Normalize(req.Path)
	if req.Ref != "" {
		mount, path = sess.ParseRef(req.Ref)
	} else if mount == "" {
		mount, path = sess.ParseRef(path)
	}
	if err := sess.Open(r.Context(), mount, path); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// clickRequest carries the attributes of the clicked element followed by
// those of its ancestors, innermost first.
type clickRequest struct {
	Chain []map[string]string `json:"chain"`
}

// element is a clicked DOM node rebuilt from a clickRequest.
type element struct {
	attrs  map[string]string
	parent *element
}

func (e *element) Attr(key string) (string, bool) {
	v, ok := e.attrs[key]
	return v, ok
}

func (e *element) Parent() navigation.Element {
	if e.parent == nil {
		return nil
	}
	return e.parent
}

func buildElement(chain []map[string]string) navigation.Element {
	var parent *element
	for i := len(chain) - 1; i >= 0; i-- {
		parent = &element{attrs: chain[i], parent: parent}
	}
	if parent == nil {
		return nil
	}
	return parent
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req clickRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	el := buildElement(req.Chain)
	if el == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"handled": false})
		return
	}
	handled, err := sess.Click(r.Context(), el)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"handled": handled})
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Href string `json:"href"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := sess.FollowLink(r.Context(), req.Href); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleEditorOpen(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.OpenEditor(); err != nil {
		writeFailure(w, err)
		return
	}
	ref, text, _ := sess.Editor()
	writeJSON(w, http.StatusOK, map[string]any{"ref": ref, "text": text})
}

func (s *Server) handleEditorClose(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.CloseEditor()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleEditorChange(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sess.EditorChange(req.Text)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEditorSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Save(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

type commandRequest struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	SelectionStart int    `json:"selection_start"`
	SelectionEnd   int    `json:"selection_end"`
}

func (s *Server) handleEditorCommand(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req commandRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	edit, err := sess.EditorCommand(req.ID, req.Text, req.SelectionStart, req.SelectionEnd)
	if err != nil {
		if errors.Is(err, preview.ErrEditorClosed) {
			writeFailure(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, edit)
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, preview.Commands())
}
