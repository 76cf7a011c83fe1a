// Package httpapi exposes the provider search and import job operations over
// a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/partscout/partscout/internal/database"
	"github.com/partscout/partscout/internal/logging"
	"github.com/partscout/partscout/internal/orchestrator"
	"github.com/partscout/partscout/internal/providers"
)

type Server struct {
	registry  *providers.Registry
	searchSvc SearchService
	jobSvc    JobService
	logger    *logging.Logger
	server    *http.Server
}

func New(registry *providers.Registry, searchSvc SearchService, jobSvc JobService, logger *logging.Logger) *Server {
	return &Server{
		registry:  registry,
		searchSvc: searchSvc,
		jobSvc:    jobSvc,
		logger:    logger,
	}
}

func (s *Server) Start(addr string) error {
	mux := s.routes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.logger.Info("HTTP API server starting", logging.WithField("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	providerAPI := NewProviderAPI(s.registry, s.logger)
	providerAPI.RegisterRoutes(mux, s.corsMiddleware)

	searchAPI := NewSearchAPI(s.searchSvc, s.logger)
	searchAPI.RegisterRoutes(mux, s.corsMiddleware)

	jobAPI := NewJobAPI(s.jobSvc, s.logger)
	jobAPI.RegisterRoutes(mux, s.corsMiddleware)

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// requestUser returns the caller identity from the X-User header. Upstream
// authentication is expected to set it; absent means anonymous.
func requestUser(r *http.Request) string {
	if user := r.Header.Get("X-User"); user != "" {
		return user
	}
	return "anonymous"
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	if v == nil {
		w.WriteHeader(statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// errorStatus maps service errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, providers.ErrInvalidArgument),
		errors.Is(err, orchestrator.ErrNoPartsSelected),
		errors.Is(err, orchestrator.ErrNoValidParts):
		return http.StatusBadRequest
	case errors.Is(err, providers.ErrNotFound),
		errors.Is(err, database.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, providers.ErrAuthentication):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
