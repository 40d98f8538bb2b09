// Package web exposes the import pipeline over a small JSON API for the
// surrounding application: create a session, upload a file, supply a manual
// mapping when auto-mapping fails, review the draft partition and commit.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lardosa/contacerta/internal/config"
	"github.com/lardosa/contacerta/internal/importer"
	ownmw "github.com/lardosa/contacerta/internal/web/middleware"
)

// Server is the HTTP server for the import API.
type Server struct {
	service *importer.Service
	router  *chi.Mux
	server  *http.Server
	maxBody int64
	limiter *importer.ParseLimiter
}

// NewServer creates a Server around an import service.
func NewServer(service *importer.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		router:  chi.NewRouter(),
		maxBody: cfg.Import.MaxFileSize,
		limiter: importer.NewParseLimiter(cfg.Import.MaxConcurrentParses, cfg.Import.ParseSlotWait),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(ownmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api/imports", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleSessionState)
			r.Post("/file", s.handleUploadFile)
			r.Post("/mapping", s.handleSetMapping)
			r.Get("/review", s.handleReview)
			r.Post("/commit", s.handleCommit)
			r.Delete("/", s.handleDiscard)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
