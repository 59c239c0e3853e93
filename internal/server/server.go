// Package server provides the HTTP server and routing for folio.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/di"
	allocationhandlers "github.com/aristath/folio/internal/modules/allocation/handlers"
	marketdatahandlers "github.com/aristath/folio/internal/modules/marketdata/handlers"
	portfoliohandlers "github.com/aristath/folio/internal/modules/portfolio/handlers"
	rebalancinghandlers "github.com/aristath/folio/internal/modules/rebalancing/handlers"
	snapshothandlers "github.com/aristath/folio/internal/modules/snapshots/handlers"
	valuationhandlers "github.com/aristath/folio/internal/modules/valuation/handlers"
)

// Config holds server configuration
type Config struct {
	Log            zerolog.Logger
	Container      *di.Container
	Port           int
	DevMode        bool
	AllowedOrigins []string
	DataDir        string
	Version        string
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg,
		container: cfg.Container,
		systemHandlers: NewSystemHandlers(
			cfg.Container.DB,
			cfg.Container.Scheduler,
			cfg.DataDir,
			cfg.Version,
			cfg.Log,
		),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // manual refresh and snapshot can be slow
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	allowCredentials := true
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" {
			// browsers reject credentials with a wildcard origin
			allowCredentials = false
		}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	}))

	if !s.cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	c := s.container

	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
		})

		valuationhandlers.NewHandler(c.ValuationService, c.Clock, s.log).RegisterRoutes(r)
		snapshothandlers.NewHandler(c.Recorder, c.HistoryReader, s.log).RegisterRoutes(r)
		allocationhandlers.NewHandler(c.AllocationService, s.log).RegisterRoutes(r)
		rebalancinghandlers.NewHandler(c.RebalanceService, s.log).RegisterRoutes(r)
		marketdatahandlers.NewHandler(c.Refresher, s.log).RegisterRoutes(r)
		portfoliohandlers.NewHandler(c.PortfolioRepo, c.Importer, s.log).RegisterRoutes(r)
	})
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

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
