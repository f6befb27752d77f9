package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/audit"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/docstore"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/export"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/pipeline"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/query"
)

// Config holds server configuration.
type Config struct {
	Port     int
	DataDir  string // directory for the SQLite DB, document content and reports
	AllowAll bool   // allow all CORS origins (dev mode)
}

// Deps are the wired application components the server exposes over HTTP.
type Deps struct {
	Documents *docstore.Store
	Tasks     *pipeline.Pipeline
	Queries   *query.Router
	Exporter  *export.Exporter
	AuditLog  *audit.Log
}

// Server is the investigation assistant HTTP server.
type Server struct {
	cfg        Config
	deps       Deps
	hub        *EventHub
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all dependencies wired. The returned server's
// event hub is installed as the pipeline notifier, so task stage changes
// reach websocket subscribers as they happen.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		hub:  NewEventHub(),
	}
	deps.Tasks.SetNotifier(s.hub)

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	docstore.RegisterRoutes(r, s.deps.Documents)
	pipeline.RegisterRoutes(r, s.deps.Tasks)
	query.RegisterRoutes(r, s.deps.Queries)
	audit.RegisterRoutes(r, s.deps.AuditLog)
	export.RegisterRoutes(r, s.deps.Exporter)

	r.Get("/ws/events", s.hub.HandleWebSocket)

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("investigation server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server, waiting for in-flight task
// executions to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Tasks.Wait()
	s.hub.Close()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
