// Package http serves the search API alongside health, readiness and
// metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/truck-provider-search/internal/domain"
	"github.com/couchcryptid/truck-provider-search/internal/observability"
	"github.com/couchcryptid/truck-provider-search/internal/search"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ReadinessFunc adapts a function to ReadinessChecker.
type ReadinessFunc func(ctx context.Context) error

func (f ReadinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

// Searcher runs provider searches.
type Searcher interface {
	Search(ctx context.Context, req search.Request) domain.SearchResultPage
}

// Suggester returns city suggestions for a partial term.
type Suggester interface {
	Suggest(ctx context.Context, term string) []domain.Place
}

// Locator resolves coordinates to a place.
type Locator interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (domain.Place, bool)
}

// Handlers groups the collaborators behind the API routes.
type Handlers struct {
	Search  Searcher
	Suggest Suggester
	Locate  Locator
	Ready   ReadinessChecker
}

// Server exposes the search API plus /healthz, /readyz and /metrics.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with every route registered.
func NewServer(addr string, h Handlers, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      metricsMiddleware(metrics, corsMiddleware(mux)),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /api/search", handleSearch(h.Search))
	mux.HandleFunc("GET /api/cities", handleCities(h.Suggest))
	mux.HandleFunc("GET /api/locate", handleLocate(h.Locate))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(h.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleSearch always answers 200 with a SearchResultPage. Unparseable page
// and radius values fall back to the engine defaults.
func handleSearch(s Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := s.Search(r.Context(), search.Request{
			Location: q.Get("location"),
			Service:  q.Get("service"),
			Page:     atoiOrZero(q.Get("page")),
			RadiusKm: atoiOrZero(q.Get("radius")),
		})
		writeJSON(w, http.StatusOK, page)
	}
}

func handleCities(s Suggester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		places := s.Suggest(r.Context(), r.URL.Query().Get("term"))
		if places == nil {
			places = []domain.Place{}
		}
		writeJSON(w, http.StatusOK, places)
	}
}

func handleLocate(l Locator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(q.Get("lat")), 64)
		lng, errLng := strconv.ParseFloat(strings.TrimSpace(q.Get("lng")), 64)
		if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lng must be valid coordinates"})
			return
		}

		place, ok := l.ReverseGeocode(r.Context(), lat, lng)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no city found at these coordinates"})
			return
		}
		writeJSON(w, http.StatusOK, place)
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
