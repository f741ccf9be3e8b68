package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"harvester/internal/api"
	"harvester/internal/batch"
	"harvester/internal/checkpoint"
	"harvester/internal/config"
	"harvester/internal/extract"
	"harvester/internal/feed"
	"harvester/internal/images"
	"harvester/internal/monitoring"
	"harvester/internal/pipeline"
	"harvester/internal/proxy"
	"harvester/internal/render"
	"harvester/internal/storage"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	metrics := monitoring.NewMetrics()
	proxyManager := proxy.NewManager(proxyList(cfg.ProxyURL))

	// Durable store: Postgres when configured, local files otherwise
	var store checkpoint.Store
	var pgStore *storage.PostgresStore
	if cfg.PostgresURL != "" {
		pgStore, err = storage.NewPostgresStore(cfg.PostgresURL, cfg.RunName)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		store = storage.NewFileStore(cfg.OutputPath, cfg.CheckpointPath)
	}

	var redisStore *storage.RedisStore
	if cfg.RedisAddr != "" {
		redisStore = storage.NewRedisStore(cfg.RedisAddr, time.Duration(cfg.RedisTTLHrs)*time.Hour)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller, err := checkpoint.NewController(ctx, store, cfg.FlushEvery,
		cfg.MaxRetries, time.Duration(cfg.RetryWaitMs)*time.Millisecond, logger)
	if err != nil {
		logger.Fatal("could not initialize checkpoint controller", zap.Error(err))
	}

	feedClient := feed.NewClient(feed.Options{
		BaseURL:      cfg.APIBaseURL,
		SearchURL:    cfg.SearchURL,
		Query:        cfg.SearchQuery,
		DepartmentID: cfg.SearchDepartmentID,
		Timeout:      time.Duration(cfg.FetchTimeout) * time.Second,
		MaxRetries:   cfg.MaxRetries,
		RetryWait:    time.Duration(cfg.RetryWaitMs) * time.Millisecond,
		UserAgent:    proxyManager.GetUserAgent,
	}, logger)

	session, err := render.NewSession(render.Options{
		NavTimeout: time.Duration(cfg.NavTimeout) * time.Second,
		Settle:     time.Duration(cfg.SettleMs) * time.Millisecond,
		ProxyURL:   proxyManager.GetProxy(),
		UserAgent:  proxyManager.GetUserAgent(),
	}, logger)
	if err != nil {
		logger.Fatal("could not start rendering session", zap.Error(err))
	}
	defer session.Close()

	imageManager := images.NewManager(images.Options{
		RootDir:       cfg.ImageRootDir,
		MaxAdditional: cfg.MaxAdditionalImages,
		Timeout:       time.Duration(cfg.FetchTimeout) * time.Second,
		MaxRetries:    cfg.MaxRetries,
		RetryWait:     time.Duration(cfg.RetryWaitMs) * time.Millisecond,
		UserAgent:     proxyManager.GetUserAgent,
	}, metrics, logger)

	pipe := pipeline.New(feedClient, session, imageManager, pipeline.Options{
		PageURLTemplate: cfg.PageURLTemplate,
		TabNames:        cfg.TabNames,
		TabOpts: extract.TabOptions{
			Timeout:      time.Duration(cfg.TabTimeout) * time.Second,
			PollInterval: time.Duration(cfg.TabPollMs) * time.Millisecond,
			StableReads:  cfg.TabStableReads,
		},
		DescOpts: extract.DescriptionOptions{
			MinLength: cfg.MinDescLen,
			MinWords:  cfg.MinDescWords,
		},
	}, metrics, logger)

	var completed batch.CompletedSet
	if redisStore != nil {
		completed = redisStore
	}
	runner := batch.NewRunner(pipe, controller, completed,
		time.Duration(cfg.PoliteDelayMs)*time.Millisecond, metrics, logger)

	// Status/metrics server runs alongside the batch
	server := api.NewServer(cfg, runner, pgStore, redisStore, metrics, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	logger.Info("status server started", zap.String("port", cfg.ServerPort))

	ids, err := feedClient.SearchIDs(ctx)
	if err != nil {
		logger.Fatal("could not enumerate object IDs", zap.Error(err))
	}
	if cfg.Limit > 0 && len(ids) > cfg.Limit {
		ids = ids[:cfg.Limit]
	}

	runErr := runner.Run(ctx, ids, cfg.StartOffset)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("status server forced to shutdown", zap.Error(err))
	}

	switch {
	case runErr == nil:
		logger.Info("harvest finished")
	case errors.Is(runErr, context.Canceled):
		logger.Info("harvest interrupted, progress checkpointed")
	default:
		logger.Fatal("harvest failed", zap.Error(runErr))
	}
}

func proxyList(url string) []string {
	if url == "" {
		return nil
	}
	return []string{url}
}
