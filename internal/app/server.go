package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/ragline/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/ragline/internal/api/middlewares"
	"github.com/markdave123-py/ragline/internal/config"
	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragline/internal/logger"
	"github.com/markdave123-py/ragline/internal/metrics"
	"github.com/markdave123-py/ragline/internal/services"
)

// Deps are the capabilities the HTTP layer needs.
type Deps struct {
	Objects  core.ObjectClient
	Ingestor ingestion_engine.Ingestor
	Queue    handlers.Enqueuer
	Query    *services.QueryService
	Metrics  *metrics.Metrics
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, d Deps) *Server {
	ingestHandler := handlers.NewIngestHandler(d.Ingestor)
	docHandler := handlers.NewDocumentHandler(d.Objects, d.Queue, cfg.BucketName)
	chatHandler := handlers.NewChatHandler(d.Query)

	ingestTimeout := cfg.IngestTimeout
	if ingestTimeout <= 0 {
		ingestTimeout = 5 * time.Minute
	}
	accessLog := slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: accessLog, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(d.Metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !slices.Contains(cfg.CORSOrigins, "*"),
	}))

	r.Get("/health", handlers.Health(cfg.RunningEnv))
	if cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		// manual ingestion and uploads only exist on the local stack
		api.Group(func(local chi.Router) {
			local.Use(appMiddleware.LocalOnly(cfg.IsLocal()))
			local.Use(middleware.Timeout(ingestTimeout))
			local.Post("/ingest", ingestHandler.ManualIngest)
			local.Post("/documents", docHandler.UploadDocument)
		})

		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWT(cfg.JWTSecret))
			protected.Use(middleware.Timeout(60 * time.Second))
			protected.Post("/query", chatHandler.Query)
		})
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpSrv, logger: logger.WithComponent("http")}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
