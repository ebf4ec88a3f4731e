// Package server is the HTTP embedding of peekvfs: a browser UI, a JSON API
// driving browsing sessions and a websocket pushing their events.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/razvandimescu/peekvfs/internal/markup"
	"github.com/razvandimescu/peekvfs/internal/session"
	"github.com/razvandimescu/peekvfs/internal/vfs"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
	// HighlightStyle is the chroma style served as /highlight.css.
	HighlightStyle string
	// SessionTTL expires sessions without a connected client.
	SessionTTL time.Duration
}

// AssetOpener streams the bytes behind an asset URL.
type AssetOpener interface {
	OpenAsset(ctx context.Context, mount vfs.Mount, path string) (io.ReadCloser, error)
}

type Server struct {
	cfg        Config
	sessions   *session.Manager
	assets     AssetOpener
	router     chi.Router
	httpServer *http.Server
}

func New(cfg Config, sessions *session.Manager, assets AssetOpener) *Server {
	if cfg.HighlightStyle == "" {
		cfg.HighlightStyle = markup.DefaultHighlightStyle
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		assets:   assets,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	timeout := middleware.Timeout(60 * time.Second)

	r.Group(func(r chi.Router) {
		r.Use(timeout)
		r.Get("/", s.serveIndex)
		r.Get("/static/*", s.serveStatic)
		r.Get("/highlight.css", s.serveHighlightCSS)
		r.Get("/assets/{mount}/*", s.serveAsset)
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/api/commands", s.handleCommands)
	})

	r.Route("/api/sessions", func(r chi.Router) {
		r.With(timeout, s.withCSRFCheck).Post("/", s.handleCreateSession)

		r.Route("/{id}", func(r chi.Router) {
			// The websocket outlives any request timeout.
			r.Get("/ws", s.handleWebSocket)

			r.Group(func(r chi.Router) {
				r.Use(timeout)
				r.Get("/", s.handleSnapshot)
				r.Get("/tree", s.handleTree)
			})

			r.Group(func(r chi.Router) {
				r.Use(timeout, s.withCSRFCheck)
				r.Delete("/", s.handleCloseSession)
				r.Post("/select", s.handleSelect)
				r.Post("/click", s.handleClick)
				r.Post("/follow", s.handleFollow)
				r.Post("/editor/open", s.handleEditorOpen)
				r.Post("/editor/close", s.handleEditorClose)
				r.Post("/editor/change", s.handleEditorChange)
				r.Post("/editor/save", s.handleEditorSave)
				r.Post("/editor/command", s.handleEditorCommand)
			})
		})
	})

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port and expires idle sessions
// until the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.sessions.RunExpiry(ctx, time.Minute, s.cfg.SessionTTL)

	log.Printf("peekvfs listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and ends all sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.sessions.CloseAll()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// withCSRFCheck rejects cross-origin state-changing requests by validating
// the Origin header.
func (s *Server) withCSRFCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && !s.allowedOrigin(r, origin) {
			log.Printf("CSRF: rejected cross-origin %s from %s", r.Method, origin)
			writeError(w, http.StatusForbidden, "cross-origin request")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(r *http.Request, origin string) bool {
	if s.cfg.AllowAll {
		return true
	}
	switch origin {
	case fmt.Sprintf("http://localhost:%d", s.cfg.Port),
		fmt.Sprintf("http://127.0.0.1:%d", s.cfg.Port),
		"http://" + r.Host:
		return true
	}
	return false
}
