// Package statusserver implements the optional read-only HTTP surface the
// "status" CLI command starts: health/readiness probes, Prometheus metrics,
// and a cache-introspection endpoint, built on the same chi + httprate +
// cors + client_golang stack the teacher's RPC server uses, stripped of the
// pieces this tool has no server-side use for (the Connect RPC handler
// itself, gRPC reflection, OpenTelemetry export).
package statusserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/ibc-tools/escrow-auditor/internal/descriptorcache"
	"github.com/ibc-tools/escrow-auditor/internal/logging"
)

// Config controls the status server's listen address, CORS policy, and rate
// limiting, following the teacher's own ServerConfig shape.
type Config struct {
	Address        string
	AllowedOrigins []string
	RatePerMinute  int
}

// DefaultConfig returns sensible defaults for a local operator-facing
// status server.
func DefaultConfig() Config {
	return Config{
		Address:        "localhost:8090",
		AllowedOrigins: []string{"*"},
		RatePerMinute:  120,
	}
}

// CacheInspector exposes enough of the descriptor/version cache for the
// /cache endpoint without giving the HTTP surface write access to it.
type CacheInspector interface {
	Occupancy() descriptorcache.Occupancy
}

// Server wraps the HTTP server and its chi mux.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// NewServer builds a Server exposing /health, /ready, /metrics, and /cache.
func NewServer(cfg Config, cache CacheInspector) *Server {
	log := logging.New("statusserver")
	mux := chi.NewMux()

	mux.Use(zerologMiddleware(log))
	mux.Use(zerologRecoverer(log))
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Compress(5))
	mux.Use(middleware.Timeout(30 * time.Second))

	if cfg.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(cfg.RatePerMinute, time.Minute))
	}

	mux.Handle("/metrics", promhttp.Handler())

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	mux.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.Get("/cache", func(w http.ResponseWriter, r *http.Request) {
		if cache == nil {
			writeJSON(w, http.StatusOK, descriptorcache.Occupancy{})
			return
		}
		writeJSON(w, http.StatusOK, cache.Occupancy())
	})

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(mux)

	return &Server{
		log: log,
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           corsHandler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// zerologMiddleware logs each request via the injected logger, matching the
// teacher's own request-logging middleware in solver/rpc/serve.go.
func zerologMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// zerologRecoverer recovers from panics in a handler and logs them instead
// of crashing the process, matching the teacher's zerologRecoverer.
func zerologRecoverer(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					log.Error().Interface("panic", rvr).Str("path", r.URL.Path).Msg("recovered from panic")
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Start begins serving; it blocks until the server stops or errors.
func (s *Server) Start() error {
	s.log.Info().Str("address", s.httpServer.Addr).Msg("status server starting")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
