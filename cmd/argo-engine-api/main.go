// Package main provides the Argo engine API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/oceanlens/argo-engine/internal/analysis"
	"github.com/oceanlens/argo-engine/internal/cache"
	"github.com/oceanlens/argo-engine/internal/config"
	"github.com/oceanlens/argo-engine/internal/engine"
	"github.com/oceanlens/argo-engine/internal/observability"
	"github.com/oceanlens/argo-engine/internal/query"
	"github.com/oceanlens/argo-engine/internal/storage"
)

func main() {
	// Local .env files are optional
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("cache", cfg.Cache.Driver).
		Msg("Starting Argo engine API")

	ctx := context.Background()

	db, err := storage.Open(ctx, storage.OpenConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.DatabaseDSN(),
		MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open database")
		os.Exit(1)
	}
	defer db.Close()

	if cfg.IsDevelopment() {
		if err := storage.EnsureSchema(ctx, db, cfg.Database.Driver); err != nil {
			logger.Error().Err(err).Msg("Failed to ensure schema")
			os.Exit(1)
		}
	}

	repos := storage.NewRepositories(db)

	var cacheClient cache.Client
	if cfg.Cache.Enabled {
		switch cfg.Cache.Driver {
		case "redis":
			cacheClient, err = cache.NewRedisClient(cache.RedisConfig{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
				PoolSize: cfg.Cache.Redis.PoolSize,
			})
			if err != nil {
				logger.Warn().Err(err).Msg("Redis unavailable, falling back to in-memory cache")
				cacheClient = cache.NewMemoryClient(cfg.Cache.MaxEntries)
			}
		default:
			cacheClient = cache.NewMemoryClient(cfg.Cache.MaxEntries)
		}
	}

	normalizer := query.NewNormalizer()
	extractors := []query.Extractor{}
	if cfg.Extractor.Enabled {
		extractors = append(extractors, query.NewRemoteExtractor(query.RemoteExtractorConfig{
			URL:     cfg.Extractor.URL,
			Timeout: cfg.Extractor.Timeout,
		}))
	}
	extractors = append(extractors, query.NewKeywordExtractor(normalizer))
	chain := query.NewChain(logger, normalizer, extractors...)

	eng := engine.New(logger, repos.Floats, repos.Profiles, repos.Measurements, chain, cacheClient, engine.Config{
		ResultLimit:        cfg.Engine.ResultLimit,
		DetectAnomalies:    true,
		CacheResults:       cfg.Cache.Enabled,
		CacheTTL:           cfg.Cache.TTL,
		MaxRecommendations: cfg.Engine.MaxRecommendations,
		Detector: analysis.DetectorConfig{
			BaselineWindow:     cfg.Engine.BaselineWindow,
			BaselineSampleCap:  cfg.Engine.BaselineSampleCap,
			MinBaselineSamples: cfg.Engine.MinBaselineSamples,
			ZScoreThreshold:    cfg.Engine.ZScoreThreshold,
		},
	})

	router := NewRouter(logger, cfg, eng, db)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
