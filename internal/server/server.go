// Package server exposes the pipeline over HTTP: the metrics endpoint
// consumed by downstream summarizers plus the operator surface for the
// cache, breaker and rate limiter.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/finbrief/edgar-pipeline/internal/cache"
	"github.com/finbrief/edgar-pipeline/internal/clients/edgar"
	"github.com/finbrief/edgar-pipeline/internal/modules/fundamentals"
	"github.com/finbrief/edgar-pipeline/internal/observability"
	"github.com/finbrief/edgar-pipeline/internal/reliability"
)

// Config holds server configuration
type Config struct {
	Port    int
	DevMode bool
	Log     zerolog.Logger

	Fundamentals *fundamentals.Service
	Edgar        *edgar.Client
	Cache        *cache.TwoTier
	Breaker      *reliability.Breaker
	Limiter      *reliability.RateLimiter
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	fundamentals *fundamentals.Service
	edgar        *edgar.Client
	cache        *cache.TwoTier
	breaker      *reliability.Breaker
	limiter      *reliability.RateLimiter

	startedAt time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		fundamentals: cfg.Fundamentals,
		edgar:        cfg.Edgar,
		cache:        cfg.Cache,
		breaker:      cfg.Breaker,
		limiter:      cfg.Limiter,
		startedAt:    time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	// Pipeline requests can legitimately take a while when EDGAR is slow and
	// retries kick in; the timeout must exceed the worst-case retry sequence.
	s.router.Use(middleware.Timeout(90 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", observability.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", s.handleCacheStats)
			r.Post("/clear", s.handleCacheClear)
		})

		r.Route("/breaker", func(r chi.Router) {
			r.Get("/status", s.handleBreakerStatus)
			r.Post("/reset", s.handleBreakerReset)
		})

		r.Route("/ratelimit", func(r chi.Router) {
			r.Get("/status", s.handleRateLimitStatus)
		})

		r.Route("/companies", func(r chi.Router) {
			r.Get("/{cik}/filings/{accession}/metrics", s.handleStandardizedMetrics)
		})

		r.Get("/documents", s.handleFilingDocument)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
