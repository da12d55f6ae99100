package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator/image"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator/lexical"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator/text"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/config"
	dbRedis "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/db/redis"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
	logpkg "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/logger"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/match/combine"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/metrics"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/repository/embcache"
	imagerepo "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/repository/image"
	postrepo "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/repository/post"
	textrepo "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/repository/text"
	chiTransport "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/transport/chi"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/transport/fetch"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/transport/inference"
	openaiEmb "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/transport/openai"
	embeddinguc "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/usecase/embedding"
	healthuc "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/usecase/health"
	ingestuc "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/usecase/ingest"
	searchuc "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/usecase/search"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/version"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting semsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Bool("semantic_text", cfg.Embedding.Enabled()),
		zap.Bool("images", cfg.Image.Enabled()),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register encoder, search and ingest metrics explicitly (no init())
	metrics.Register()

	// Comparators
	var (
		textCmp      *text.Comparator
		imageCmp     *image.Comparator
		textChecker  healthuc.EmbeddingChecker
		imageChecker healthuc.EmbeddingChecker
	)
	if cfg.Embedding.Enabled() {
		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
		textCmp = text.New(buildEmbedder(base, cfg.Embedding, store, cfg.Storage.KeyPrefix, logger))
		textChecker = base
		logger.Info("Text embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
		)
	}
	if cfg.Image.Enabled() {
		backbone := inference.New(inference.Config{
			BaseURL: cfg.Image.BackboneURL,
			Model:   cfg.Image.Model,
			Timeout: time.Duration(cfg.Image.TimeoutSec) * time.Second,
			Logger:  logger,
		})
		imageCmp = image.New(
			embeddinguc.NewInstrumentedBackbone(backbone, cfg.Image.Model, logger),
			cfg.Image.Dimensions,
		)
		imageChecker = backbone
		logger.Info("Image backbone created",
			zap.String("url", cfg.Image.BackboneURL),
			zap.String("model", cfg.Image.Model),
		)
	}

	// Repositories
	texts, err := textrepo.Open(cfg.Storage.TextPath)
	if err != nil {
		logger.Fatal("Failed to open text store", zap.Error(err))
	}
	images, err := imagerepo.Open(cfg.Storage.ImageDir, cfg.Storage.ImageInMemory, logger)
	if err != nil {
		logger.Fatal("Failed to open image store", zap.Error(err))
	}
	defer func() { _ = images.Close() }()
	posts := postrepo.New(store, cfg.Storage.KeyPrefix)

	fetcher := fetch.New(fetch.Config{
		Timeout:  time.Duration(cfg.Fetch.TimeoutSec) * time.Second,
		MaxBytes: cfg.Fetch.MaxBytes,
	})

	// Use case services. Comparators are passed as interfaces only when
	// configured, a typed nil pointer would look configured.
	cmps := searchuc.Comparators{Lexical: lexical.New()}
	deps := ingestuc.Deps{Texts: texts, Images: images, Posts: posts, Fetcher: fetcher}
	if textCmp != nil {
		cmps.Text = textCmp
		deps.TextEncoder = textCmp
	}
	if imageCmp != nil {
		cmps.Image = imageCmp
		deps.ImageEncoder = imageCmp
	}

	combiner := combine.New(combine.Weights{
		Message: cfg.Search.Post.MessageWeight,
		Image:   cfg.Search.Post.ImageWeight,
	}, *cfg.Search.Post.Threshold)

	searchSvc := searchuc.New(texts, images, posts, fetcher, cmps, combiner, logger)
	ingestSvc, err := ingestuc.New(deps, ingestuc.Config{
		PoolSize:     cfg.Ingest.PoolSize,
		MaxBatchSize: cfg.Ingest.MaxBatchSize,
		MaxJobs:      cfg.Ingest.MaxJobs,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create ingestion pool", zap.Error(err))
	}
	defer ingestSvc.Release()

	healthSvc := healthuc.New(store, textChecker).WithChecker("image_backbone", imageChecker)

	server := chiTransport.NewServer(searchSvc, ingestSvc, images, healthSvc, logger).
		WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes).
		WithTextThreshold(cfg.Search.TextThreshold)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware("/metrics"))
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	base domain.Embedder,
	cfg config.EmbeddingConfig,
	store *dbRedis.Store,
	prefix string,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if !cfg.NoCache {
		embedder = embcache.New(base, store, prefix, cfg.Model, metrics.EmbeddingCacheTotal, logger).
			WithTTL(time.Duration(cfg.CacheTTLSec) * time.Second)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger)

	// Instruction prefix (outermost, so the cache key includes it)
	if cfg.Instruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.Instruction)
	}
	return embedder
}
