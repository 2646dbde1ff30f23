// Package server provides the status HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/state"
	"github.com/ayusman/mudra/internal/store"
)

// Config holds the server configuration.
type Config struct {
	Addr     string
	Registry *state.Registry
	Store    *store.Store // nil disables history and snapshot routes
}

// Server is the status API server.
type Server struct {
	config     Config
	router     *chi.Mux
	httpServer *http.Server
	start      time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	r := chi.NewRouter()

	s := &Server{
		config: config,
		router: r,
		start:  time.Now(),
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RequestLogger(&chiMiddleware.DefaultLogFormatter{
		Logger:  log.StandardLogger(),
		NoColor: true,
	}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/health", s.handleHealth)

	var history api.History
	if s.config.Store != nil {
		history = s.config.Store.Events()
	}

	if s.config.Registry != nil {
		cameras := api.NewCameraHandler(s.config.Registry, history)
		s.router.Get("/api/cameras", cameras.List)
		s.router.Get("/api/cameras/{name}", cameras.Get)
		s.router.Get("/api/cameras/{name}/history", cameras.History)
	}

	if s.config.Store != nil {
		snapshots := api.NewSnapshotHandler(s.config.Store.Snapshots())
		s.router.Get("/api/snapshots", snapshots.List)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe serves on the configured address until Shutdown is called.
func (s *Server) ListenAndServe() error {
	log.WithField("addr", s.httpServer.Addr).Info("status API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status API: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status API: %w", err)
	}
	return nil
}
