package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewRouter returns the API routes. origins lists the origins allowed by
// CORS; with none, cross-origin requests are not answered with CORS headers.
func NewRouter(h *Handler, logger *slog.Logger, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, loggerMiddleware(logger), middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/search", func(r chi.Router) {
			r.Post("/", h.StartSearch)
			r.Get("/", h.SearchStatus)
			r.Delete("/", h.StopSearch)
		})
		r.Route("/reports", func(r chi.Router) {
			r.Get("/", h.ListReports)
			r.Post("/", h.ImportReport)
			r.Get("/{reportID}", h.GetReport)
			r.Delete("/{reportID}", h.DeleteReport)
			r.Get("/{reportID}/export", h.ExportReport)
		})
		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", h.ListAddresses)
			r.Post("/", h.AddAddress)
			r.Put("/{addressID}", h.UpdateAddress)
			r.Delete("/{addressID}", h.DeleteAddress)
		})
		r.Get("/stats", h.Stats)
	})
	return r
}

// NewServer creates a server listening on addr.
func NewServer(addr string, h *Handler, logger *slog.Logger, origins []string) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h, logger, origins),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP API", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP API")
	return s.httpServer.Shutdown(ctx)
}
