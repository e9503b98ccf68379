package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finbrief/edgar-pipeline/internal/cache"
	"github.com/finbrief/edgar-pipeline/internal/clients/edgar"
	"github.com/finbrief/edgar-pipeline/internal/config"
	"github.com/finbrief/edgar-pipeline/internal/modules/fundamentals"
	"github.com/finbrief/edgar-pipeline/internal/reliability"
	"github.com/finbrief/edgar-pipeline/internal/scheduler"
	"github.com/finbrief/edgar-pipeline/internal/server"
	"github.com/finbrief/edgar-pipeline/pkg/logger"
)

func main() {
	// Load configuration first so the logger honors LOG_LEVEL
	cfg, err := config.Load()
	if err != nil {
		bootstrap := logger.New(logger.Config{Level: "info", Pretty: true})
		bootstrap.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting EDGAR pipeline")

	// Cache tiers: L2 is optional and its absence is not an error
	l1 := cache.NewLRU(cfg.CacheL1Capacity)
	var l2 cache.Level2
	var redisCache *cache.RedisCache
	if cfg.RedisAddr != "" {
		redisCache = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "edgar:", cfg.CacheOpTimeout, log)
		defer redisCache.Close()
		l2 = redisCache

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if !redisCache.Healthy(ctx) {
			log.Warn().Str("addr", cfg.RedisAddr).Msg("Redis unreachable at startup, L2 will serve misses until it recovers")
		}
		cancel()
	} else {
		log.Info().Msg("No REDIS_ADDR configured, running with L1 cache only")
	}
	docCache := cache.NewTwoTier(l1, l2, cfg.CacheTTL, log)

	// Resilience stack guarding the EDGAR upstream
	limiter := reliability.NewRateLimiter(cfg.RequestsPerSec, log)
	breaker := reliability.NewBreaker(reliability.BreakerConfig{
		FailureThreshold:    cfg.FailureThreshold,
		SuccessThreshold:    cfg.SuccessThreshold,
		RecoveryTimeout:     cfg.RecoveryTimeout,
		HalfOpenMaxRequests: cfg.HalfOpenMaxRequests,
	}, edgar.IsUpstreamFailure, log)

	fetcher := edgar.NewFetcher(limiter, breaker, edgar.FetcherConfig{
		UserAgent:      cfg.EdgarUserAgent,
		MaxRetries:     cfg.MaxRetries,
		BackoffBase:    cfg.BackoffBase,
		AttemptTimeout: cfg.AttemptTimeout,
	}, log)
	edgarClient := edgar.NewClient(fetcher, cfg.FactsBaseURL, cfg.ArchivesBaseURL, log)

	// Fundamentals pipeline
	svc := fundamentals.NewService(edgarClient, docCache, fundamentals.ServiceConfig{
		OverallTimeout: cfg.OverallTimeout,
	}, log)

	// Background jobs
	sched := scheduler.New(log)
	if err := sched.AddJob("@every 10m", scheduler.NewCacheMaintenanceJob(docCache, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache maintenance job")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		Log:          log,
		Fundamentals: svc,
		Edgar:        edgarClient,
		Cache:        docCache,
		Breaker:      breaker,
		Limiter:      limiter,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
