// Package server provides the HTTP API for uploading, anonymizing and
// downloading CVs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/jonathan/cv-anonymizer/internal/pipeline"
	"github.com/jonathan/cv-anonymizer/internal/upload"
)

// DefaultMaxInFlight bounds concurrent requests when Options leaves it unset
const DefaultMaxInFlight = 8

// Options configures the server
type Options struct {
	Port           int
	Controller     *pipeline.Controller
	Store          *pipeline.Store
	Validator      *upload.Validator
	Logger         zerolog.Logger
	MaxInFlight    int
	AllowedOrigins []string
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	controller *pipeline.Controller
	store      *pipeline.Store
	validator  *upload.Validator
	logger     zerolog.Logger
}

// New creates a new server instance
func New(opts Options) *Server {
	s := &Server{
		controller: opts.Controller,
		store:      opts.Store,
		validator:  opts.Validator,
		logger:     opts.Logger.With().Str("component", "server").Logger(),
	}
	if s.controller == nil {
		s.controller = pipeline.NewController(pipeline.Options{Logger: opts.Logger})
	}
	if s.store == nil {
		s.store = pipeline.NewStore(pipeline.DefaultSessionTTL)
	}
	if s.validator == nil {
		s.validator = upload.NewValidator(upload.DefaultMaxBytes)
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.routes(opts),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // uploads run OCR and analysis inline
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger(s.logger))
	r.Use(Recoverer(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/sessions", func(r chi.Router) {
		r.With(middleware.Throttle(opts.MaxInFlight)).Post("/", s.handleCreateSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/cancel", s.handleCancel)

			r.Get("/policies", s.handleGetPolicies)
			r.Put("/policies", s.handlePutPolicies)

			r.Get("/preview", s.handlePreview)
			r.Put("/record", s.handlePutRecord)
			r.Delete("/record", s.handleResetRecord)

			r.With(middleware.Throttle(opts.MaxInFlight)).Get("/document.{ext}", s.handleDocument)
		})
	})

	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
// Expired sessions are pruned in the background while the server runs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go s.store.Run(pruneCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.store.Len(),
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("error encoding JSON response")
	}
}
