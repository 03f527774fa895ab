package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gowbic/internal"
	"gowbic/ports"
)

// Server exposes sweep results over a read-only JSON API. It consumes the
// reader port exclusively, so nothing reachable from HTTP can write to the
// ledger or start a sweep.
type Server struct {
	router *chi.Mux
	reader ports.ReaderPort
	logger *internal.Logger
}

// NewServer creates the results API server
func NewServer(reader ports.ReaderPort) *Server {
	s := &Server{
		router: chi.NewRouter(),
		reader: reader,
		logger: internal.NewDefaultLogger("api"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures HTTP middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/sweeps", s.handleListSweeps)
	s.router.Get("/api/sweeps/{id}", s.handleGetSweep)
	s.router.Get("/api/sweeps/{id}/ranking", s.handleGetRanking)
	s.router.Get("/api/sweeps/{id}/artifacts", s.handleSweepArtifacts)
}

// Router returns the HTTP handler for mounting or testing
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server on the given port
func (s *Server) Start(port string) error {
	addr := ":" + port
	log.Printf("[API] serving sweep results on %s", addr)
	return http.ListenAndServe(addr, s.router)
}
