// Package api exposes the matcher and the evaluation functions over HTTP.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/api/handlers"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/api/middleware"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/matcher"
)

// Config holds API server configuration.
type Config struct {
	AllowedOrigins []string
	Port           int
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: middleware.DefaultCORSConfig().AllowedOrigins,
	}
}

// Server is the HTTP API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	matcher    *matcher.Matcher
	runs       handlers.RunStore
	config     Config
}

// NewServer creates a new API server. If runs is nil the run history
// endpoints are not mounted.
func NewServer(cfg Config, m *matcher.Matcher, runs handlers.RunStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = matcher.Default()
	}

	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		logger:  logger.With("component", "api"),
		matcher: m,
		runs:    runs,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.config.AllowedOrigins
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger))
}

func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	s.router.Get("/health", handlers.NewHealthHandler().ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		matching := handlers.NewMatchingHandler(s.matcher, s.logger)
		r.Post("/score", matching.Score)
		r.Post("/select", matching.Select)
		r.Post("/classify", matching.Classify)

		evaluation := handlers.NewEvaluationHandler()
		r.Post("/aggregate", evaluation.Aggregate)
		r.Post("/benchmark", evaluation.Benchmark)

		if s.runs != nil {
			runs := handlers.NewRunsHandler(s.runs, s.logger)
			r.Get("/runs", runs.List)
			r.Get("/runs/{id}", runs.Get)
		}
	})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// StartTLS serves HTTPS with cert until Shutdown is called.
func (s *Server) StartTLS(cert tls.Certificate) error {
	s.httpServer.TLSConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	s.logger.Info("starting API server", "addr", s.httpServer.Addr, "tls", true)

	if err := s.httpServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
