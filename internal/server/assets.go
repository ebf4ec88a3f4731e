package server

import (
	"embed"
	"io"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/razvandimescu/peekvfs/internal/markup"
	"github.com/razvandimescu/peekvfs/internal/vfs"
)

//go:embed theme/*
var themeFS embed.FS

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	content, err := themeFS.ReadFile("theme/index.html")
	if err != nil {
		http.Error(w, "Theme not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(content); err != nil {
		log.Printf("Failed to write index response: %v", err)
	}
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	sub, err := fs.Sub(themeFS, "theme")
	if err != nil {
		http.Error(w, "Theme not found", http.StatusInternalServerError)
		return
	}
	http.StripPrefix("/static/", http.FileServer(http.FS(sub))).ServeHTTP(w, r)
}

func (s *Server) serveHighlightCSS(w http.ResponseWriter, r *http.Request) {
	css, err := markup.HighlightCSS(s.cfg.HighlightStyle)
	if err != nil {
		http.Error(w, "Failed to build stylesheet", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	io.WriteString(w, css)
}

// serveAsset streams a file of a mount, typically an image referenced from
// a rendered document.
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	mount := vfs.Mount(chi.URLParam(r, "mount"))
	rel := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(rel); err == nil {
			rel = unescaped
		}
	}
	rel = vfs.Normalize(rel)
	if rel == "" || strings.Contains("/"+rel+"/", "/../") {
		http.Error(w, "Invalid path", http.StatusForbidden)
		return
	}

	rc, err := s.assets.OpenAsset(r.Context(), mount, rel)
	if err != nil {
		writeFailure(w, err)
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(path.Ext(rel)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("Failed to stream asset %s:%s: %v", mount, rel, err)
	}
}
