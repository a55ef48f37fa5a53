package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/address-geocoder/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker = sharedobs.ReadinessChecker

// AllReady combines checkers and reports every failure.
func AllReady(checkers ...ReadinessChecker) ReadinessChecker {
	return allReady(checkers)
}

type allReady []ReadinessChecker

func (a allReady) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range a {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Server exposes health, readiness, metrics and geocode HTTP endpoints.
type Server struct {
	httpServer *http.Server
	geocoder   domain.Geocoder
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /geocode routes. A nil geocoder disables /geocode.
func NewServer(addr string, ready ReadinessChecker, geocoder domain.Geocoder, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second, // room for rate-limit retries
			IdleTimeout:  60 * time.Second,
		},
		geocoder: geocoder,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if geocoder != nil {
		mux.HandleFunc("GET /geocode", s.handleGeocode)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	addr := domain.Address{
		Street:  strings.TrimSpace(q.Get("street")),
		City:    strings.TrimSpace(q.Get("city")),
		State:   strings.TrimSpace(q.Get("state")),
		Zip:     strings.TrimSpace(q.Get("zip")),
		Country: strings.TrimSpace(q.Get("country")),
	}
	if addr == (domain.Address{}) {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": "at least one of street, city, state, zip, country is required",
		})
		return
	}

	result := s.geocoder.Lookup(r.Context(), addr)
	s.logger.Debug("geocode request served",
		"outcome", result.Outcome,
		"backend", result.Backend,
		"status", result.Status,
	)
	sharedobs.WriteJSON(w, statusFor(result.Outcome), result)
}

func statusFor(o domain.Outcome) int {
	switch o {
	case domain.OutcomeSuccess:
		return http.StatusOK
	case domain.OutcomeRateLimited:
		return http.StatusTooManyRequests
	case domain.OutcomeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusNotFound
	}
}
