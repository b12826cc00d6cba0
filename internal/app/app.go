// internal/app/app.go
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/markdave123-py/ragline/internal/config"
	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragline/internal/core/retry"
	"github.com/markdave123-py/ragline/internal/embedcache"
	"github.com/markdave123-py/ragline/internal/events"
	"github.com/markdave123-py/ragline/internal/logger"
	"github.com/markdave123-py/ragline/internal/metrics"
	"github.com/markdave123-py/ragline/internal/services"
)

type App struct {
	Config   *config.Config
	Metrics  *metrics.Metrics
	Objects  core.ObjectClient
	Ingestor *ingestion_engine.DocumentIngestor
	Queue    *ingestion_engine.IngestQueue
	Query    *services.QueryService
	Server   *Server

	closers []io.Closer
	logger  *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	app := &App{Config: cfg, Metrics: metrics.New(), logger: logger.WithComponent("app")}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()
	app.logger.Info("starting", "env", cfg.RunningEnv)

	objects, err := NewObjectClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	app.Objects = objects
	app.logger.Info("object client initialized and ready")

	index, err := NewVectorIndex(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	app.track(index)
	app.logger.Info("vector index initialized and ready")

	embedder, err := NewEmbedder(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	app.track(embedder)

	chat, err := NewLLM(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	app.track(chat)

	var limiter *rate.Limiter
	if cfg.EmbedRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.EmbedRateLimit), max(1, cfg.EmbedConcurrency))
	}
	embedGateway := ingestion_engine.NewEmbeddingGateway(embedder, retry.DefaultPolicy(), limiter, app.Metrics)
	indexGateway := ingestion_engine.NewIndexGateway(index, retry.DefaultPolicy(), cfg.IndexBatchSize, app.Metrics)

	var reporter core.OutcomeReporter = events.NewLogReporter()
	if len(cfg.KafkaBrokers) > 0 {
		kr := events.NewKafkaReporter(cfg.KafkaBrokers, cfg.KafkaOutcomeTopic)
		app.track(kr)
		reporter = kr
	}

	loader := ingestion_engine.NewContentLoader(objects, ingestion_engine.NewPDFExtractor(), ingestion_engine.NewDocconvExtractor(false))
	ingCfg := ingestion_engine.DefaultIngestConfig()
	ingCfg.EmbedConcurrency = cfg.EmbedConcurrency
	ingCfg.Category = cfg.IngestCategory

	app.Ingestor, err = ingestion_engine.NewDocumentIngestor(loader, embedGateway, indexGateway, reporter, ingCfg, app.Metrics)
	if err != nil {
		return nil, err
	}
	app.Queue = ingestion_engine.NewIngestQueue(app.Ingestor, cfg.IngestQueueSize, cfg.IngestTimeout)

	var queryEmbedder core.EmbeddingProvider = embedGateway
	if cfg.RedisAddr != "" {
		store, err := embedcache.NewRedisStore(appCtx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			// the cache is optional; queries still work without it
			app.logger.Warn("embedding cache disabled", "error", err)
		} else {
			app.track(store)
			queryEmbedder = embedcache.New(embedGateway, store, cfg.EmbedCacheTTL, app.Metrics)
		}
	}
	app.Query = services.NewQueryService(queryEmbedder, indexGateway, chat)

	app.Server = NewServer(cfg, Deps{
		Objects:  objects,
		Ingestor: app.Ingestor,
		Queue:    app.Queue,
		Query:    app.Query,
		Metrics:  app.Metrics,
	})
	return app, nil
}

// track remembers v for Close when it holds resources.
func (a *App) track(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

// Close releases backend clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("closing backends", "error", err)
		return err
	}
	return nil
}
