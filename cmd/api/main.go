package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"member-archive/internal/api"
	"member-archive/internal/archive"
	"member-archive/internal/config"
	"member-archive/internal/logging"
	"member-archive/internal/redis"
	"member-archive/internal/scrape"
	"member-archive/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_service", "service", "member-archive-api", "http_addr", cfg.HTTPAddr)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("store_open_failed", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	// redis is optional: without it the API serves uncached
	var redisClient *redis.Client
	if cfg.RedisDSN != "" {
		redisClient, err = redis.New(cfg.RedisDSN)
		if err != nil {
			logger.Error("redis_connect_failed", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("redis_not_configured", "msg", "response caching and trigger throttling disabled")
	}

	engine := scrape.NewEngine(logger, scrape.EngineConfig{
		APIID:       cfg.TelegramAPIID,
		APIHash:     cfg.TelegramAPIHash,
		SessionFile: cfg.SessionFile,
		QueryDelay:  time.Duration(cfg.ScrapeDelayMs) * time.Millisecond,
	})

	orch := scrape.NewOrchestrator(logger, st, engine, scrape.OrchestratorOptions{
		ExportDir:  cfg.ExportDir,
		ExportBase: cfg.ExportBase,
		Uploader:   archive.Build(logger, cfg.ArchiveEndpoint, cfg.ArchiveBucket, cfg.ArchiveKeysRaw),
	})

	srv := api.NewServer(logger, st, redisClient, orch, cfg)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_server_ready", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis_close_error", "error", err)
		} else {
			logger.Info("redis_closed")
		}
	}

	if err := engine.Close(); err != nil {
		logger.Warn("engine_close_error", "error", err)
	}

	if err := st.Close(); err != nil {
		logger.Warn("store_close_error", "error", err)
	} else {
		logger.Info("store_closed")
	}

	logger.Info("api_stopped")
}
